package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/metrics"
	"github.com/iliyamo/wishly/internal/queue"
)

// EventNotifier is told about every committed change.
type EventNotifier interface {
	Notify(ctx context.Context, ev queue.Event)
}

// Broadcaster delivers an event to this instance's subscribers.
type Broadcaster interface {
	Broadcast(ev queue.Event) (delivered, dropped int)
}

// EventPublisher relays an event to the other instances.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Invalidator drops cached read models of a wishlist.
type Invalidator interface {
	Invalidate(ctx context.Context, wishlistID string) error
}

const (
	publishTimeout = 2 * time.Second
	outboxSize     = 256
)

var errOutboxFull = errors.New("broker outbox full")

// Notifier runs after a mutation has committed.  It invalidates the
// snapshot cache, broadcasts to local subscribers and queues the event for
// the broker.  One goroutine drains the queue; when it is full the event is
// dropped.  Nothing it does can fail or slow down the mutation.
type Notifier struct {
	cache     Invalidator
	hub       Broadcaster
	publisher EventPublisher
	metrics   *metrics.Metrics
	log       *logrus.Entry

	outbox    chan queue.Event
	wg        sync.WaitGroup // queued, not yet published
	closeOnce sync.Once
}

// NewNotifier wires the notifier.  cache and publisher may be nil.
func NewNotifier(cache Invalidator, hub Broadcaster, publisher EventPublisher, m *metrics.Metrics, log *logrus.Entry) *Notifier {
	n := &Notifier{cache: cache, hub: hub, publisher: publisher, metrics: m, log: log}
	if publisher != nil {
		n.outbox = make(chan queue.Event, outboxSize)
		go n.publishLoop()
	}
	return n
}

func (n *Notifier) Notify(ctx context.Context, ev queue.Event) {
	ctx = context.WithoutCancel(ctx)
	log := n.log.WithFields(logrus.Fields{"wishlist_id": ev.WishlistID, "type": ev.Type})

	if n.cache != nil {
		if err := n.cache.Invalidate(ctx, ev.WishlistID); err != nil {
			log.WithError(err).Warn("notify: cache invalidation failed")
		}
	}
	if n.hub != nil {
		n.hub.Broadcast(ev)
		n.metrics.Event("local", nil)
	}
	if n.outbox == nil {
		return
	}
	n.wg.Add(1)
	select {
	case n.outbox <- ev:
	default:
		n.wg.Done()
		n.metrics.Event("amqp", errOutboxFull)
		log.Warn("notify: broker outbox full, event dropped")
	}
}

func (n *Notifier) publishLoop() {
	for ev := range n.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := n.publisher.Publish(ctx, ev)
		cancel()
		n.metrics.Event("amqp", err)
		if err != nil {
			n.log.WithError(err).WithFields(logrus.Fields{"wishlist_id": ev.WishlistID, "type": ev.Type}).
				Warn("notify: publish to broker failed")
		}
		n.wg.Done()
	}
}

// Wait blocks until every queued event has been handed to the broker.
func (n *Notifier) Wait() { n.wg.Wait() }

// Close drains the outbox and stops the publish goroutine.  Notify must
// not be called afterwards.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		n.wg.Wait()
		if n.outbox != nil {
			close(n.outbox)
		}
	})
}
