// Package queue carries booking events over RabbitMQ.  Every instance
// publishes to one fanout exchange; each instance relays what it receives
// to its local push hub and a durable audit queue feeds the booking log.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/parkease/internal/model"
)

const (
	// Exchange is the durable fanout exchange all events go through.
	Exchange = "parkease.booking.events"
	// AuditQueue is the durable queue the audit logger consumes.
	AuditQueue = "booking.audit"
)

// Kind distinguishes the two event payloads.
type Kind string

const (
	KindBooking      Kind = "booking"
	KindNotification Kind = "notification"
)

// Event is the message body.  Booking is set for KindBooking, Message for
// KindNotification.
type Event struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	UserID     uint64         `json:"user_id"`
	Booking    *model.Booking `json:"booking,omitempty"`
	Message    string         `json:"message,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// BookingEvent wraps a committed booking snapshot.
func BookingEvent(b model.Booking, at time.Time) Event {
	return Event{ID: uuid.NewString(), Kind: KindBooking, UserID: b.UserID, Booking: &b, OccurredAt: at}
}

// NotificationEvent wraps a user notification.
func NotificationEvent(userID uint64, msg string, at time.Time) Event {
	return Event{ID: uuid.NewString(), Kind: KindNotification, UserID: userID, Message: msg, OccurredAt: at}
}
