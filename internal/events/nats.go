package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect dials a NATS server with reconnects that never give up.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// Publisher is the subset of *nats.Conn used by NATSPublisher.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes punch events as JSON to "<prefix>.<side>".
type NATSPublisher struct {
	conn   Publisher
	prefix string
}

// NewNATSPublisher creates a publisher on conn.
func NewNATSPublisher(conn Publisher, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an event for side is published on.
func (p *NATSPublisher) Subject(side string) string {
	return p.prefix + "." + side
}

// Publish implements Sink.
func (p *NATSPublisher) Publish(e PunchEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal punch event: %w", err)
	}
	subject := p.Subject(e.Side.String())
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
