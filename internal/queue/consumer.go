package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/booking"
)

// Handler processes one decoded event.  Returning an error rejects the
// delivery without requeueing.
type Handler func(ctx context.Context, ev Event) error

// Binding selects the queue a consumer reads.  An empty Queue asks the
// broker for an exclusive, auto-deleted queue bound to the exchange.
type Binding struct {
	Queue string
	Name  string
}

// RelayBinding is the per-instance queue used for push fan-out.
var RelayBinding = Binding{Name: "relay"}

// AuditBinding is the shared durable audit queue.
var AuditBinding = Binding{Queue: AuditQueue, Name: "audit"}

// Consume connects to the broker and feeds deliveries on b to h until ctx
// is cancelled.  It reconnects with exponential backoff.
func Consume(ctx context.Context, url string, b Binding, h Handler, log logrus.FieldLogger) {
	log = log.WithField("consumer", b.Name)
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).Warnf("failed to dial broker; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, b, h, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, b Binding, h Handler, log logrus.FieldLogger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("set QoS failed")
	}
	if err := declare(ch); err != nil {
		return err
	}
	queue := b.Queue
	if queue == "" {
		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return fmt.Errorf("queue declare: %w", err)
		}
		if err := ch.QueueBind(q.Name, "", Exchange, false, nil); err != nil {
			return fmt.Errorf("queue bind: %w", err)
		}
		queue = q.Name
	}

	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleDelivery(ctx, d.Body, h); err != nil {
				log.WithError(err).WithField("message_id", d.MessageId).Warn("handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleDelivery(ctx context.Context, body []byte, h Handler) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return h(ctx, ev)
}

// Relay returns a Handler that forwards events to n, normally the local
// push hub.
func Relay(n booking.Notifier) Handler {
	return func(ctx context.Context, ev Event) error {
		if ev.Kind != KindBooking && ev.Kind != KindNotification {
			return fmt.Errorf("unknown event kind %q", ev.Kind)
		}
		Dispatch(ctx, n, ev)
		return nil
	}
}
