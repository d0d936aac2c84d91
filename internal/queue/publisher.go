package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// ErrBrokerUnavailable is returned without dialing while the publisher is
// waiting out the pause after a failed dial.
var ErrBrokerUnavailable = errors.New("broker unavailable")

const (
	defaultDialTimeout = 2 * time.Second
	defaultRedialPause = 5 * time.Second
)

// Publisher sends wishlist events to a fanout exchange so every server
// instance can forward them to its own websocket subscribers.  The
// connection is opened lazily and dropped on the first failure.  A failed
// dial is not retried for redialPause, so a dead broker costs one dial
// timeout rather than one per event.  Messages are transient: realtime
// delivery is best effort and clients resync on reconnect.
type Publisher struct {
	url        string
	exchange   string
	instanceID string
	log        *logrus.Entry

	dialTimeout time.Duration
	redialPause time.Duration

	mu         sync.Mutex
	conn       *amqp.Connection
	ch         *amqp.Channel
	nextDialAt time.Time
}

// NewPublisher returns a Publisher for exchange.  instanceID is stamped on
// every message as AppId so the local relay can skip its own events.
func NewPublisher(url, exchange, instanceID string, log *logrus.Entry) *Publisher {
	return &Publisher{
		url: url, exchange: exchange, instanceID: instanceID, log: log,
		dialTimeout: defaultDialTimeout, redialPause: defaultRedialPause,
	}
}

// Publish marshals ev and publishes it.  Errors are returned so the caller
// can count them; they never mean the wishlist change failed.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureLocked(ctx); err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx,
		p.exchange, // fanout exchange
		"",         // routing key ignored by fanout
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Timestamp:    time.Now().UTC(),
			AppId:        p.instanceID,
			Type:         string(ev.Type),
			Body:         body,
		})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *Publisher) ensureLocked(ctx context.Context) error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.resetLocked()
	if time.Now().Before(p.nextDialAt) {
		return ErrBrokerUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := p.dialTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:      amqp.DefaultDial(timeout),
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		p.nextDialAt = time.Now().Add(p.redialPause)
		return fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel open: %w", err)
	}
	if err := declareExchange(ch, p.exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	p.log.WithField("exchange", p.exchange).Info("event publisher connected")
	return nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	if err := ch.ExchangeDeclare(
		name,     // name
		"fanout", // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}
