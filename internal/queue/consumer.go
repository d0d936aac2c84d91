package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Relay consumes the events exchange through an exclusive, auto-deleted
// queue and hands every event published by another instance to Deliver.
// Messages are auto-acknowledged: a relay that falls behind loses events
// rather than replaying them, which matches the at-most-once contract of
// the realtime channel.
type Relay struct {
	URL        string
	Exchange   string
	InstanceID string
	Deliver    func(Event)
	Log        *logrus.Entry
}

// Run keeps the relay connected until ctx is cancelled.  Broker outages
// are retried with exponential backoff and never end the loop.
func (r *Relay) Run(ctx context.Context) error {
	for {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Second
		b.MaxInterval = 30 * time.Second
		b.MaxElapsedTime = 0

		var conn *amqp.Connection
		dial := func() error {
			c, err := amqp.Dial(r.URL)
			if err != nil {
				return err
			}
			conn = c
			return nil
		}
		notify := func(err error, next time.Duration) {
			r.Log.WithError(err).WithField("next_retry_in", next).Warn("event relay: failed to dial broker")
		}
		if err := backoff.RetryNotify(dial, backoff.WithContext(b, ctx), notify); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err := r.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		r.Log.WithError(err).Warn("event relay: consume loop ended; reconnecting")
	}
}

func (r *Relay) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareExchange(ch, r.Exchange); err != nil {
		return err
	}
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", r.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	r.Log.WithFields(logrus.Fields{"exchange": r.Exchange, "queue": q.Name}).Info("event relay consuming")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if d.AppId != "" && d.AppId == r.InstanceID {
				continue
			}
			ev, err := decodeEvent(d.Body)
			if err != nil {
				r.Log.WithError(err).Warn("event relay: dropping malformed message")
				continue
			}
			r.Deliver(ev)
		}
	}
}

func decodeEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.WishlistID == "" {
		return Event{}, errors.New("event without type or wishlist id")
	}
	return ev, nil
}
