package events

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/jabcam/internal/punch"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(side punch.HandSide) PunchEvent {
	return PunchEvent{
		ID:        "p1",
		SessionID: "s1",
		Mode:      "free-play",
		Side:      side,
		Speed:     900,
		SpeedAvg:  210,
		Timestamp: 1.5,
	}
}

func TestPunchEvent_JSON(t *testing.T) {
	data, err := json.Marshal(event(punch.Right))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"side":"right"`)

	var back PunchEvent
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, punch.Right, back.Side)
	assert.Equal(t, 210.0, back.SpeedAvg)
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	var a, b Recorder
	errBoom := errors.New("boom")
	failing := SinkFunc(func(PunchEvent) error { return errBoom })

	m := Multi{&a, failing, nil, &b}
	err := m.Publish(event(punch.Left))

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len(), "later sinks still receive the event")
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi{}.Publish(event(punch.Left)))
	assert.NoError(t, Discard.Publish(event(punch.Left)))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Publish(event(punch.Left))
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, r.Len())
	got := r.Events()
	got[0].ID = "changed"
	assert.Equal(t, "p1", r.Events()[0].ID, "Events returns a copy")

	r.Reset()
	assert.Zero(t, r.Len())
}

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestNATSPublisher(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "jabcam.punch")

	require.NoError(t, p.Publish(event(punch.Left)))
	require.NoError(t, p.Publish(event(punch.Right)))

	assert.Equal(t, []string{"jabcam.punch.left", "jabcam.punch.right"}, conn.subjects)

	var got PunchEvent
	require.NoError(t, json.Unmarshal(conn.payloads[0], &got))
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, punch.Left, got.Side)
}

func TestNATSPublisher_Error(t *testing.T) {
	conn := &fakeConn{err: errors.New("disconnected")}
	p := NewNATSPublisher(conn, "x")

	err := p.Publish(event(punch.Left))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x.left")
}

// newHubServer serves websocket clients that register with hub until
// they disconnect.
func newHubServer(t *testing.T, hub *Hub) string {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Add(conn)
		defer func() {
			hub.Remove(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHub_BroadcastsToClients(t *testing.T) {
	hub := NewHub(nil)
	url := newHubServer(t, hub)

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(event(punch.Right)))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)

	var got PunchEvent
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, punch.Right, got.Side)
	assert.Equal(t, 900.0, got.Speed)
}

func TestHub_ConcurrentPublishers(t *testing.T) {
	hub := NewHub(nil)
	url := newHubServer(t, hub)

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	var (
		mu       sync.Mutex
		received int
		bad      int
	)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			client.SetReadDeadline(time.Now().Add(time.Second))
			_, msg, err := client.ReadMessage()
			if err != nil {
				return
			}
			var e PunchEvent
			mu.Lock()
			if json.Unmarshal(msg, &e) != nil {
				bad++
			}
			received++
			mu.Unlock()
		}
	}()

	// The background session and every feed session publish from their
	// own goroutines.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(side punch.HandSide) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				assert.NoError(t, hub.Publish(event(side)))
			}
		}(punch.Sides[i%2])
	}
	wg.Wait()

	client.Close()
	<-readDone

	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, received)
	assert.Zero(t, bad, "every frame must be one whole event")
}

func TestHub_RemoveWhilePublishing(t *testing.T) {
	hub := NewHub(nil)
	url := newHubServer(t, hub)

	for i := 0; i < 3; i++ {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer c.Close()
	}
	require.Eventually(t, func() bool { return hub.Clients() == 3 }, time.Second, 10*time.Millisecond)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = hub.Publish(event(punch.Left))
			}
		}
	}()

	hub.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(hub.conns))
	for c := range hub.conns {
		conns = append(conns, c)
	}
	hub.mu.Unlock()
	for _, c := range conns {
		hub.Remove(c)
		hub.Remove(c)
	}

	close(stop)
	wg.Wait()
	assert.Equal(t, 0, hub.Clients())
}
