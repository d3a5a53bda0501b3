package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/parkease/internal/booking"
	"github.com/iliyamo/parkease/internal/model"
)

// BookingRepo reads and writes bookings.  Transitions are guarded by a
// status compare-and-swap in UpdateBooking; the generated live_user and
// live_slot unique keys back the one-live-booking rules.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingCols = `b.id, b.user_id, b.vehicle_id, b.slot_id, b.area_id, b.status,
	b.reservation_time, b.arrival_time, b.booking_time, b.exit_time,
	b.final_reservation_fee, b.final_parking_fee, b.amount_paid, b.amount_pending,
	b.version, b.updated_at`

// bookingView adds the read-model joins to bookingCols.
const bookingView = `SELECT ` + bookingCols + `, s.slot_number, a.name, v.register_number
	FROM bookings b
	JOIN slots s ON s.id = b.slot_id
	JOIN parking_areas a ON a.id = b.area_id
	JOIN vehicles v ON v.id = b.vehicle_id`

func scanBooking(s scanner, view bool) (model.Booking, error) {
	var (
		b                         model.Booking
		reserved, arrived, exited sql.NullTime
	)
	dest := []any{
		&b.ID, &b.UserID, &b.VehicleID, &b.SlotID, &b.AreaID, &b.Status,
		&reserved, &arrived, &b.BookingTime, &exited,
		&b.FinalReservationFee, &b.FinalParkingFee, &b.AmountPaid, &b.AmountPending,
		&b.Version, &b.UpdatedAt,
	}
	if view {
		dest = append(dest, &b.SlotNumber, &b.AreaName, &b.RegisterNumber)
	}
	if err := s.Scan(dest...); err != nil {
		return model.Booking{}, err
	}
	b.ReservationTime = timePtr(reserved)
	b.ArrivalTime = timePtr(arrived)
	b.ExitTime = timePtr(exited)
	b.BookingTime = b.BookingTime.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

func collectBookings(rows *sql.Rows, view bool) ([]model.Booking, error) {
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows, view)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Get returns one booking with its read-model fields.
func (r *BookingRepo) Get(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, bookingView+" WHERE b.id = ?", id), true)
	if err != nil {
		return model.Booking{}, notFound(err, booking.ErrBookingNotFound)
	}
	return b, nil
}

// Live returns the user's single RESERVED or ACTIVE_PARKING booking.
func (r *BookingRepo) Live(ctx context.Context, userID uint64) (model.Booking, bool, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		bookingView+" WHERE b.live_user = ? LIMIT 1", userID), true)
	if err == sql.ErrNoRows {
		return model.Booking{}, false, nil
	}
	if err != nil {
		return model.Booking{}, false, err
	}
	return b, true, nil
}

// ListByUser returns live or terminal bookings newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64, live bool) ([]model.Booking, error) {
	cond := " WHERE b.user_id = ? AND b.status NOT IN ('RESERVED','ACTIVE_PARKING')"
	if live {
		cond = " WHERE b.user_id = ? AND b.status IN ('RESERVED','ACTIVE_PARKING')"
	}
	rows, err := r.db.QueryContext(ctx, bookingView+cond+" ORDER BY b.id DESC", userID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows, true)
}

// OverdueReservations lists RESERVED bookings reserved at or before cutoff,
// oldest first.
func (r *BookingRepo) OverdueReservations(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM bookings WHERE status = 'RESERVED' AND reservation_time <= ? ORDER BY reservation_time LIMIT ?`,
		cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func bookingForUpdate(ctx context.Context, q querier, id uint64) (model.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, "SELECT "+bookingCols+" FROM bookings b WHERE b.id = ? FOR UPDATE", id), false)
	if err != nil {
		return model.Booking{}, notFound(err, booking.ErrBookingNotFound)
	}
	return b, nil
}

func liveBookingForUpdate(ctx context.Context, q querier, userID uint64) (model.Booking, bool, error) {
	b, err := scanBooking(q.QueryRowContext(ctx,
		"SELECT "+bookingCols+" FROM bookings b WHERE b.live_user = ? FOR UPDATE", userID), false)
	if err == sql.ErrNoRows {
		return model.Booking{}, false, nil
	}
	if err != nil {
		return model.Booking{}, false, err
	}
	return b, true, nil
}

func insertBooking(ctx context.Context, q querier, b *model.Booking) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO bookings (user_id, vehicle_id, slot_id, area_id, status, reservation_time, arrival_time,
		 booking_time, version, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		b.UserID, b.VehicleID, b.SlotID, b.AreaID, b.Status, nullTime(b.ReservationTime), nullTime(b.ArrivalTime),
		b.BookingTime.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		switch {
		case duplicateOn(err, "uq_booking_live_slot"):
			return booking.ErrSlotUnavailable
		case isDuplicate(err):
			return booking.ErrActiveBookingExists
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.Version = 1
	return nil
}

func updateBooking(ctx context.Context, q querier, b *model.Booking, from model.BookingStatus) error {
	res, err := q.ExecContext(ctx,
		`UPDATE bookings SET status = ?, arrival_time = ?, exit_time = ?,
		 final_reservation_fee = ?, final_parking_fee = ?, amount_paid = ?, amount_pending = ?,
		 version = version + 1, updated_at = ?
		 WHERE id = ? AND status = ?`,
		b.Status, nullTime(b.ArrivalTime), nullTime(b.ExitTime),
		b.FinalReservationFee, b.FinalParkingFee, b.AmountPaid, b.AmountPending,
		b.UpdatedAt.UTC(), b.ID, from)
	if err != nil {
		return fmt.Errorf("update booking %d: %w", b.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: booking %d is not %s", booking.ErrBookingConflict, b.ID, from)
	}
	b.Version++
	return nil
}
