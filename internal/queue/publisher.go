package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/booking"
	"github.com/iliyamo/parkease/internal/model"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements booking.Notifier by queueing events and publishing
// them from a background loop.  When the broker is unreachable or the queue
// is full, events go to the fallback notifier instead so the local user
// still sees them.
type Publisher struct {
	events   chan Event
	fallback booking.Notifier
	log      logrus.FieldLogger
	dial     func() (channel, func(), error)
	now      func() time.Time
}

// NewPublisher returns a Publisher for url.  Call Run to start publishing.
func NewPublisher(url string, fallback booking.Notifier, log logrus.FieldLogger) *Publisher {
	p := &Publisher{
		events:   make(chan Event, 256),
		fallback: fallback,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
	p.dial = func() (channel, func(), error) { return dialPublisher(url) }
	return p
}

func dialPublisher(url string) (channel, func(), error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, func() { _ = conn.Close() }, nil
}

// declare sets up the exchange and the durable audit queue.  Both calls are
// idempotent.
func declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(AuditQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(AuditQueue, "", Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	return nil
}

// BookingChanged implements booking.Notifier.
func (p *Publisher) BookingChanged(ctx context.Context, b model.Booking) {
	p.enqueue(ctx, BookingEvent(b, p.now()))
}

// Notify implements booking.Notifier.
func (p *Publisher) Notify(ctx context.Context, userID uint64, msg string) {
	p.enqueue(ctx, NotificationEvent(userID, msg, p.now()))
}

func (p *Publisher) enqueue(ctx context.Context, ev Event) {
	select {
	case p.events <- ev:
	default:
		p.log.WithField("event_id", ev.ID).Warn("event queue full, delivering locally")
		p.deliverLocal(ctx, ev)
	}
}

func (p *Publisher) deliverLocal(ctx context.Context, ev Event) {
	if p.fallback != nil {
		Dispatch(ctx, p.fallback, ev)
	}
}

// Run publishes queued events until ctx is cancelled, redialling with
// backoff when the broker connection fails.
func (p *Publisher) Run(ctx context.Context) {
	var (
		ch      channel
		closer  func()
		backoff = time.Second
		retryAt time.Time
	)
	defer func() {
		if ch != nil {
			_ = ch.Close()
			closer()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			if ch == nil && p.now().After(retryAt) {
				var err error
				ch, closer, err = p.dial()
				if err != nil {
					p.log.WithError(err).Warnf("publisher: broker unavailable; retrying in %s", backoff)
					retryAt = p.now().Add(backoff)
					if backoff < 30*time.Second {
						backoff *= 2
					}
					ch = nil
				} else {
					backoff = time.Second
				}
			}
			if ch == nil {
				p.deliverLocal(ctx, ev)
				continue
			}
			if err := p.publish(ctx, ch, ev); err != nil {
				p.log.WithError(err).Warn("publisher: publish failed; delivering locally")
				p.deliverLocal(ctx, ev)
				_ = ch.Close()
				closer()
				ch = nil
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, ch channel, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(ctx, Exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    ev.ID,
		Timestamp:    ev.OccurredAt,
		Type:         string(ev.Kind),
		Body:         body,
	})
}

// Dispatch hands ev to n.
func Dispatch(ctx context.Context, n booking.Notifier, ev Event) {
	switch ev.Kind {
	case KindBooking:
		if ev.Booking != nil {
			n.BookingChanged(ctx, *ev.Booking)
		}
	case KindNotification:
		n.Notify(ctx, ev.UserID, ev.Message)
	}
}
