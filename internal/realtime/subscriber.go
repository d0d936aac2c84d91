package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/queue"
)

// ErrChannelDisconnected is returned by Subscriber.Run once every
// reconnect attempt has failed.  Callers show "live updates paused,
// refresh to see latest" and stop.
var ErrChannelDisconnected = errors.New("live updates paused: channel disconnected")

var errPongTimeout = errors.New("no pong before timeout")

// Status is reported to SubscriberConfig.OnStatus as the connection changes.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusPaused       Status = "paused"
)

// SubscriberConfig configures a Subscriber.  Zero durations and counts take
// the defaults of the web client: ping every 30s, reconnect after 1s, 2s,
// 4s, 8s, 16s and give up after 5 attempts.
type SubscriberConfig struct {
	URL            string
	PingInterval   time.Duration
	PongTimeout    time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxRetries     int
	Dialer         *websocket.Dialer

	// Resync fetches the authoritative view.  It runs after every
	// successful dial, before any event is dispatched.
	Resync func(ctx context.Context) error
	// OnEvent receives wishlist events in arrival order, one at a time.
	OnEvent  func(queue.Event)
	OnStatus func(Status)
	Log      *logrus.Entry
}

func (c *SubscriberConfig) defaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 10 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 16 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Log == nil {
		c.Log = logrus.NewEntry(logrus.StandardLogger())
	}
}

// Subscriber keeps one websocket subscription alive.  Delivery is at most
// once; correctness comes from the resync after each reconnect.
type Subscriber struct {
	cfg SubscriberConfig
}

func NewSubscriber(cfg SubscriberConfig) *Subscriber {
	cfg.defaults()
	return &Subscriber{cfg: cfg}
}

// Run connects and dispatches events until ctx is cancelled, returning
// ctx.Err(), or until the retry budget is spent, returning an error that
// wraps ErrChannelDisconnected.  A connection that got as far as a
// successful resync resets the budget.
func (s *Subscriber) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxRetries)), ctx)
	policy.Reset()

	for {
		established, err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if established {
			policy.Reset()
		}
		next := policy.NextBackOff()
		if next == backoff.Stop {
			s.status(StatusPaused)
			return fmt.Errorf("%w: %v", ErrChannelDisconnected, err)
		}
		s.status(StatusReconnecting)
		s.cfg.Log.WithError(err).WithField("retry_in", next).Warn("realtime: connection lost")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next):
		}
	}
}

func (s *Subscriber) status(st Status) {
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(st)
	}
}

// session runs one connection.  established reports whether the dial and
// the resync both succeeded.
func (s *Subscriber) session(ctx context.Context) (established bool, err error) {
	conn, _, err := s.cfg.Dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if s.cfg.Resync != nil {
		if err := s.cfg.Resync(ctx); err != nil {
			return false, fmt.Errorf("resync: %w", err)
		}
	}
	s.status(StatusConnected)

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-done:
				return
			}
		}
	}()

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()
	var pongDeadline <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return true, ctx.Err()
		case err := <-readErr:
			return true, err
		case data := <-frames:
			var ev queue.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				s.cfg.Log.WithError(err).Debug("realtime: ignoring malformed frame")
				continue
			}
			switch ev.Type {
			case queue.Pong:
				pongDeadline = nil
			case queue.Ping:
			default:
				if s.cfg.OnEvent != nil {
					s.cfg.OnEvent(ev)
				}
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.PongTimeout))
			if err := conn.WriteJSON(map[string]string{"type": string(queue.Ping)}); err != nil {
				return true, err
			}
			if pongDeadline == nil {
				pongDeadline = time.After(s.cfg.PongTimeout)
			}
		case <-pongDeadline:
			return true, errPongTimeout
		}
	}
}
