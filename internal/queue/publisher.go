package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/seat-booking-server/internal/monitoring"
)

// Publisher hands booking events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev BookingEvent) error
}

// Noop drops every event.  It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, BookingEvent) error { return nil }

// AMQPPublisher publishes persistent JSON messages to the durable queue
// named after the event type.  The connection is dialed on first use and
// redialed after any failure.
type AMQPPublisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string) *AMQPPublisher { return &AMQPPublisher{url: url} }

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	for _, q := range Queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("declare %s: %w", q, err)
		}
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Publish sends ev to the queue named by ev.Type.
func (p *AMQPPublisher) Publish(ctx context.Context, ev BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close tears down the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

// ErrBacklogFull is returned by Async.Publish when the buffer is full and
// the event was dropped.
var ErrBacklogFull = errors.New("event backlog full")

// Async decouples request handling from the broker: Publish only enqueues,
// and a single worker forwards events to the wrapped publisher.  Failures
// are logged and counted, never returned to the caller of Publish.
type Async struct {
	next    Publisher
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	events chan BookingEvent
	done   chan struct{}
}

// NewAsync starts the forwarding worker.  Call Close to drain and stop it.
func NewAsync(next Publisher, buffer int, log *slog.Logger) *Async {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		next:    next,
		log:     log,
		timeout: 5 * time.Second,
		events:  make(chan BookingEvent, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.events {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.next.Publish(ctx, ev)
		cancel()
		if err != nil {
			monitoring.RecordPublish(ev.Type, "error")
			a.log.Warn("publish booking event failed", "type", ev.Type, "booking_id", ev.BookingID, "error", err)
			continue
		}
		monitoring.RecordPublish(ev.Type, "ok")
	}
}

// Publish enqueues ev without blocking.
func (a *Async) Publish(_ context.Context, ev BookingEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return errors.New("publisher closed")
	}
	select {
	case a.events <- ev:
		return nil
	default:
		monitoring.RecordPublish(ev.Type, "dropped")
		a.log.Warn("dropping booking event", "type", ev.Type, "booking_id", ev.BookingID)
		return ErrBacklogFull
	}
}

// Close stops accepting events, forwards the backlog and waits for the
// worker to finish.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()
	<-a.done
}
