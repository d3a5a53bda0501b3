// Package push delivers booking snapshots and notifications to the
// websocket sessions of one user.  Delivery is best effort: offline users
// receive nothing and reconcile by polling the active-booking endpoint.
package push

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/model"
)

// Topic names a per-user stream.
type Topic string

const (
	TopicBookingUpdates Topic = "booking-updates"
	TopicNotifications  Topic = "notifications"
)

// Message is one frame sent to a client.
type Message struct {
	Topic   Topic          `json:"topic"`
	Booking *model.Booking `json:"booking,omitempty"`
	Body    string         `json:"body,omitempty"`
	SentAt  time.Time      `json:"sentAt"`
}

// maxTracked bounds the per-booking version memory; terminal bookings are
// forgotten first.
const maxTracked = 4096

// Hub fans messages out to the sessions of each user and drops booking
// snapshots older than the last one it delivered.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uint64]map[string]*Client
	last     map[uint64]model.Booking
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewHub returns an empty Hub.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		sessions: map[uint64]map[string]*Client{},
		last:     map[uint64]model.Booking{},
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register attaches c to its user.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := h.sessions[c.userID]
	if m == nil {
		m = map[string]*Client{}
		h.sessions[c.userID] = m
	}
	m[c.id] = c
	h.log.WithFields(logrus.Fields{"user_id": c.userID, "session": c.id, "sessions": len(m)}).Debug("push session registered")
}

// Unregister detaches c and closes its outbound queue.  It is safe to call
// more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c *Client) {
	m := h.sessions[c.userID]
	if _, ok := m[c.id]; !ok {
		return
	}
	delete(m, c.id)
	if len(m) == 0 {
		delete(h.sessions, c.userID)
	}
	c.closeSend()
}

// Sessions returns how many sessions the user has open.
func (h *Hub) Sessions(userID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Publish delivers msg to every session of userID and returns how many
// accepted it.  A session whose queue is full is disconnected.
func (h *Hub) Publish(userID uint64, msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.publishLocked(userID, msg)
}

func (h *Hub) publishLocked(userID uint64, msg Message) int {
	if msg.SentAt.IsZero() {
		msg.SentAt = h.now()
	}
	n := 0
	for _, c := range h.sessions[userID] {
		select {
		case c.send <- msg:
			n++
		default:
			h.log.WithFields(logrus.Fields{"user_id": userID, "session": c.id}).Warn("push queue full, dropping session")
			h.unregisterLocked(c)
		}
	}
	return n
}

// BookingChanged publishes b on booking-updates unless a newer snapshot of
// the same booking was already delivered.  The version check and the
// enqueue happen under one lock so concurrent callers cannot reorder them.
func (h *Hub) BookingChanged(_ context.Context, b model.Booking) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.acceptLocked(b) {
		h.log.WithFields(logrus.Fields{"booking_id": b.ID, "version": b.Version}).Debug("stale booking snapshot dropped")
		return
	}
	h.publishLocked(b.UserID, Message{Topic: TopicBookingUpdates, Booking: &b})
}

// Notify publishes a free-text notification.
func (h *Hub) Notify(_ context.Context, userID uint64, body string) {
	h.Publish(userID, Message{Topic: TopicNotifications, Body: body})
}

func (h *Hub) acceptLocked(b model.Booking) bool {
	if prev, ok := h.last[b.ID]; ok && !b.Newer(prev) {
		return false
	}
	h.last[b.ID] = b
	if len(h.last) > maxTracked {
		for id, s := range h.last {
			if s.Status.Terminal() {
				delete(h.last, id)
			}
		}
	}
	return true
}
