package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wishly/internal/config"
	"github.com/iliyamo/wishly/internal/queue"
	"github.com/iliyamo/wishly/pkg/logger"
)

func testServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	cfg := config.RealtimeConfig{PingInterval: 50 * time.Millisecond, PongWait: time.Second, WriteTimeout: time.Second, SendBuffer: 8}
	srv := NewServer(hub, cfg, nil, logger.Discard().WithField("test", t.Name()))
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = srv.Serve(w, r, strings.TrimPrefix(r.URL.Path, "/ws/"))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server, wishlistID string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + wishlistID
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestServerAnswersHeartbeatAndForwardsEvents(t *testing.T) {
	hub := NewHub(8, nil, nil)
	ts := testServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "w1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var pong queue.Event
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, queue.Pong, pong.Type)

	waitFor(t, func() bool { return hub.Count("w1") == 1 })
	hub.Broadcast(queue.ContributionEvent("w1", "bike", 5000, 1, 50))

	var ev queue.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, queue.ContributionAdded, ev.Type)
	require.NotNil(t, ev.ContributionCount)
	assert.Equal(t, 1, *ev.ContributionCount)
}

func TestServerUnsubscribesOnDisconnect(t *testing.T) {
	hub := NewHub(8, nil, nil)
	ts := testServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "w1"), nil)
	require.NoError(t, err)
	waitFor(t, func() bool { return hub.Count("w1") == 1 })
	require.NoError(t, conn.Close())
	waitFor(t, func() bool { return hub.Count("w1") == 0 })
}

func TestSubscriberResyncsAndDispatches(t *testing.T) {
	hub := NewHub(8, nil, nil)
	ts := testServer(t, hub)

	var resyncs atomic.Int32
	var mu sync.Mutex
	var got []queue.EventType

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := NewSubscriber(SubscriberConfig{
		URL:          wsURL(ts, "w1"),
		PingInterval: 20 * time.Millisecond,
		PongTimeout:  time.Second,
		Resync:       func(context.Context) error { resyncs.Add(1); return nil },
		OnEvent: func(ev queue.Event) {
			mu.Lock()
			got = append(got, ev.Type)
			mu.Unlock()
		},
		Log: logger.Discard().WithField("test", t.Name()),
	})
	errc := make(chan error, 1)
	go func() { errc <- sub.Run(ctx) }()

	waitFor(t, func() bool { return hub.Count("w1") == 1 && resyncs.Load() == 1 })
	hub.Broadcast(queue.ReservedEvent("w1", "lamp", true))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == queue.ItemReserved
	})

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestSubscriberReconnectsWithResync(t *testing.T) {
	hub := NewHub(8, nil, nil)
	ts := testServer(t, hub)

	var resyncs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := NewSubscriber(SubscriberConfig{
		URL:            wsURL(ts, "w1"),
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
		Resync:         func(context.Context) error { resyncs.Add(1); return nil },
		Log:            logger.Discard().WithField("test", t.Name()),
	})
	go func() { _ = sub.Run(ctx) }()

	waitFor(t, func() bool { return resyncs.Load() == 1 && hub.Count("w1") == 1 })
	hub.CloseRoom("w1")
	waitFor(t, func() bool { return resyncs.Load() >= 2 && hub.Count("w1") == 1 })
}

func TestSubscriberGivesUpAfterRetries(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/w1"
	ts.Close()

	var statuses []Status
	sub := NewSubscriber(SubscriberConfig{
		URL:            url,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		MaxRetries:     3,
		OnStatus:       func(s Status) { statuses = append(statuses, s) },
		Log:            logger.Discard().WithField("test", t.Name()),
	})
	err := sub.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChannelDisconnected))
	require.NotEmpty(t, statuses)
	assert.Equal(t, StatusPaused, statuses[len(statuses)-1])
	assert.Equal(t, 3, countStatus(statuses, StatusReconnecting))
}

func countStatus(list []Status, s Status) int {
	n := 0
	for _, x := range list {
		if x == s {
			n++
		}
	}
	return n
}
