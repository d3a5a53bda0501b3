package queue

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// AuditLog appends one line per booking event to w, usually a rotating
// file.  Notifications are skipped.
type AuditLog struct {
	mu sync.Mutex
	w  io.Writer
}

// NewAuditLog writes to w.
func NewAuditLog(w io.Writer) *AuditLog { return &AuditLog{w: w} }

// Handle implements Handler.
func (a *AuditLog) Handle(_ context.Context, ev Event) error {
	if ev.Kind != KindBooking || ev.Booking == nil {
		return nil
	}
	b := ev.Booking
	line := fmt.Sprintf("[%s] Booking %s | booking_id=%d | user_id=%d | area_id=%d | slot_id=%d | slot=%q | version=%d | reservation_fee=%s | parking_fee=%s | paid=%s | pending=%s\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), b.Status, b.ID, b.UserID, b.AreaID, b.SlotID, b.SlotNumber, b.Version,
		b.FinalReservationFee, b.FinalParkingFee, b.AmountPaid, b.AmountPending)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := io.WriteString(a.w, line); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
