package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/leafsii/post-api/internal/config"
	"github.com/leafsii/post-api/internal/posts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	active atomic.Int64
}

func (m *countingMetrics) IncrementConnections(ctx context.Context) { m.active.Add(1) }
func (m *countingMetrics) DecrementConnections(ctx context.Context) { m.active.Add(-1) }

type failingBroker struct {
	*MemoryBroker
}

func (failingBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return errors.New("broker down")
}

func startHub(t *testing.T, broker Broker) (*Hub, *countingMetrics, string) {
	t.Helper()
	metrics := &countingMetrics{}
	hub := NewHub(broker, "posts:events", nil, nil, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.done
	})

	return hub, metrics, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) posts.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev posts.Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func TestHubDeliversEvents(t *testing.T) {
	hub, metrics, url := startHub(t, NewMemoryBroker())

	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), metrics.active.Load())

	hub.Notify(context.Background(), posts.Event{Type: posts.EventCreated, ID: "abc", Timestamp: 1})

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, posts.EventCreated, ev.Type)
		assert.Equal(t, "abc", ev.ID)
	}
}

func TestHubFallsBackToLocalDelivery(t *testing.T) {
	hub, _, url := startHub(t, failingBroker{NewMemoryBroker()})

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Notify(context.Background(), posts.Event{Type: posts.EventDeleted, ID: "x"})

	ev := readEvent(t, conn)
	assert.Equal(t, posts.EventDeleted, ev.Type)
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, metrics, url := startHub(t, NewMemoryBroker())

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, metrics.active.Load())
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub := NewHub(NewMemoryBroker(), "c", []string{"https://app.example"}, nil, nil)

	ok := httptest.NewRequest(http.MethodGet, "/", nil)
	ok.Header.Set("Origin", "https://app.example")
	assert.True(t, hub.upgrader.CheckOrigin(ok))

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set("Origin", "https://evil.example")
	assert.False(t, hub.upgrader.CheckOrigin(bad))

	none := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, hub.upgrader.CheckOrigin(none))
}

func TestMemoryBroker(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, "chan")
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "chan", []byte("one")))
	require.NoError(t, b.Publish(context.Background(), "other", []byte("two")))

	select {
	case msg := <-ch:
		assert.Equal(t, "one", string(msg))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	b.mu.RLock()
	defer b.mu.RUnlock()
	assert.Empty(t, b.subscribers)
}

func TestNewBroker(t *testing.T) {
	b, err := NewBroker(config.EventsConfig{Backend: "memory"}, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryBroker{}, b)

	b, err = NewBroker(config.EventsConfig{Backend: "redis"}, "redis://127.0.0.1:6379/0")
	require.NoError(t, err)
	assert.IsType(t, &RedisBroker{}, b)
	require.NoError(t, b.Close())

	_, err = NewBroker(config.EventsConfig{Backend: "kafka"}, "")
	assert.Error(t, err)
}
