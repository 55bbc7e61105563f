package plugin

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ayusman/jabcam/internal/events"
	"github.com/ayusman/jabcam/internal/logging"
)

// DefaultQueueSize is the number of punches that may wait for dispatch.
const DefaultQueueSize = 32

var (
	// ErrQueueFull is returned by Publish when the dispatch queue is full.
	ErrQueueFull = errors.New("plugin dispatch queue full")

	// ErrDispatcherClosed is returned by Publish after Close.
	ErrDispatcherClosed = errors.New("plugin dispatcher closed")
)

// Runner executes one plugin request.
type Runner interface {
	Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error)
}

// Resolver finds the plugin that serves an action.
type Resolver interface {
	Resolve(name, action string) (*Plugin, error)
}

// DispatcherStats counts dispatch outcomes.
type DispatcherStats struct {
	Queued    int64 `json:"queued"`
	Dropped   int64 `json:"dropped"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// Dispatcher is an events.Sink that runs the plugins bound to the punching
// side. Publish never blocks: events are queued and executed by a single
// worker goroutine, in order.
type Dispatcher struct {
	resolver Resolver
	runner   Runner
	sources  []BindingSource
	logger   *slog.Logger

	queue  chan events.PunchEvent
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	queued, dropped, succeeded, failed atomic.Int64
}

// NewDispatcher starts a dispatcher. Bindings are looked up in every
// source, in order, for each event.
func NewDispatcher(resolver Resolver, runner Runner, queueSize int, logger *slog.Logger, sources ...BindingSource) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		resolver: resolver,
		runner:   runner,
		sources:  sources,
		logger:   logging.OrDiscard(logger).With("component", "dispatcher"),
		queue:    make(chan events.PunchEvent, queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	d.wg.Add(1)
	go d.run()
	return d
}

// Publish queues e for dispatch.
func (d *Dispatcher) Publish(e events.PunchEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- e:
		d.queued.Add(1)
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// Stats returns a snapshot of the dispatch counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Queued:    d.queued.Load(),
		Dropped:   d.dropped.Load(),
		Succeeded: d.succeeded.Load(),
		Failed:    d.failed.Load(),
	}
}

// Close stops accepting events, waits for queued ones to run and returns.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	return nil
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for e := range d.queue {
		d.dispatch(e)
	}
}

func (d *Dispatcher) dispatch(e events.PunchEvent) {
	for _, src := range d.sources {
		bindings, err := src.Bindings(e.Side)
		if err != nil {
			d.logger.Error("binding lookup failed", "side", e.Side, "error", err)
			continue
		}
		for _, b := range bindings {
			d.execute(b, e)
		}
	}
}

func (d *Dispatcher) execute(b Binding, e events.PunchEvent) {
	log := d.logger.With("plugin", b.Plugin, "action", b.Action, "side", e.Side)

	p, err := d.resolver.Resolve(b.Plugin, b.Action)
	if err != nil {
		d.failed.Add(1)
		log.Warn("binding skipped", "error", err)
		return
	}

	req := &Request{
		Action: b.Action,
		Side:   e.Side.String(),
		Params: b.Params,
		Punch:  &e,
	}

	resp, err := d.runner.Execute(d.ctx, p, req)
	switch {
	case err != nil:
		d.failed.Add(1)
		log.Error("plugin execution failed", "error", err)
	case !resp.Success:
		d.failed.Add(1)
		log.Warn("plugin reported failure", "error", resp.Error)
	default:
		d.succeeded.Add(1)
		log.Debug("plugin executed", "punch", e.ID)
	}
}
