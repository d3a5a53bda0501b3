package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parkease/internal/model"
)

type recorder struct {
	mu       sync.Mutex
	bookings []model.Booking
	notes    []string
}

func (r *recorder) BookingChanged(_ context.Context, b model.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = append(r.bookings, b)
}

func (r *recorder) Notify(_ context.Context, _ uint64, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, msg)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bookings) + len(r.notes)
}

type fakeChannel struct {
	mu   sync.Mutex
	msgs []amqp.Publishing
	fail error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, _ string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if exchange != Exchange {
		return errors.New("wrong exchange")
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) published() []amqp.Publishing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]amqp.Publishing(nil), f.msgs...)
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestPublisherPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher("amqp://unused", nil, quiet())
	p.dial = func() (channel, func(), error) { return ch, func() {}, nil }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.BookingChanged(ctx, model.Booking{ID: 7, UserID: 3, Status: model.BookingReserved, Version: 1})
	p.Notify(ctx, 3, "Slot S-SMALL-1 reserved.")

	require.Eventually(t, func() bool { return len(ch.published()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := ch.published()
	assert.Equal(t, amqp.Persistent, msgs[0].DeliveryMode)
	assert.Equal(t, "application/json", msgs[0].ContentType)
	assert.Equal(t, string(KindBooking), msgs[0].Type)

	var ev Event
	require.NoError(t, json.Unmarshal(msgs[0].Body, &ev))
	assert.Equal(t, uint64(3), ev.UserID)
	require.NotNil(t, ev.Booking)
	assert.Equal(t, uint64(7), ev.Booking.ID)
	assert.Equal(t, msgs[0].MessageId, ev.ID)

	require.NoError(t, json.Unmarshal(msgs[1].Body, &ev))
	assert.Equal(t, KindNotification, ev.Kind)
	assert.Equal(t, "Slot S-SMALL-1 reserved.", ev.Message)
}

func TestPublisherFallsBackWhenBrokerDown(t *testing.T) {
	local := &recorder{}
	p := NewPublisher("amqp://unused", local, quiet())
	p.dial = func() (channel, func(), error) { return nil, nil, errors.New("connection refused") }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Notify(ctx, 1, "hello")
	p.BookingChanged(ctx, model.Booking{ID: 1, UserID: 1})

	require.Eventually(t, func() bool { return local.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestPublisherFallsBackOnPublishError(t *testing.T) {
	local := &recorder{}
	ch := &fakeChannel{fail: errors.New("channel closed")}
	p := NewPublisher("amqp://unused", local, quiet())
	p.dial = func() (channel, func(), error) { return ch, func() {}, nil }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Notify(ctx, 1, "hello")
	require.Eventually(t, func() bool { return local.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPublisherFullQueueDeliversLocally(t *testing.T) {
	local := &recorder{}
	p := NewPublisher("amqp://unused", local, quiet())
	p.events = make(chan Event) // unbuffered and nobody running

	p.Notify(context.Background(), 1, "hello")
	assert.Equal(t, []string{"hello"}, local.notes)
}

func TestRelayDispatches(t *testing.T) {
	r := &recorder{}
	h := Relay(r)

	body, err := json.Marshal(BookingEvent(model.Booking{ID: 9, UserID: 2}, time.Now()))
	require.NoError(t, err)
	require.NoError(t, handleDelivery(context.Background(), body, h))

	body, err = json.Marshal(NotificationEvent(2, "bye", time.Now()))
	require.NoError(t, err)
	require.NoError(t, handleDelivery(context.Background(), body, h))

	require.Len(t, r.bookings, 1)
	assert.Equal(t, uint64(9), r.bookings[0].ID)
	assert.Equal(t, []string{"bye"}, r.notes)
}

func TestRelayRejectsGarbage(t *testing.T) {
	h := Relay(&recorder{})
	assert.Error(t, handleDelivery(context.Background(), []byte("{"), h))
	assert.Error(t, handleDelivery(context.Background(), []byte(`{"kind":"other"}`), h))
}

func TestAuditLogWritesBookingLines(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLog(&buf)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	b := model.Booking{ID: 5, UserID: 2, AreaID: 1, SlotID: 4, SlotNumber: "S-SMALL-4",
		Status: model.BookingCompleted, Version: 3, FinalParkingFee: 5000, AmountPaid: 5000}
	require.NoError(t, a.Handle(context.Background(), BookingEvent(b, at)))
	require.NoError(t, a.Handle(context.Background(), NotificationEvent(2, "ignored", at)))

	line := buf.String()
	assert.Contains(t, line, "[2026-03-01T10:00:00Z] Booking COMPLETED")
	assert.Contains(t, line, "booking_id=5")
	assert.Contains(t, line, `slot="S-SMALL-4"`)
	assert.Contains(t, line, "parking_fee=50.00")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}
