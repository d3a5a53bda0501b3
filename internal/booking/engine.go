// Package booking implements the booking lifecycle:
//
//	RESERVED ──arrive──▶ ACTIVE_PARKING ──end──▶ COMPLETED
//	    │
//	    └──(cutoff passes)──▶ CANCELLED_NO_SHOW
//
// Park-now bookings start in ACTIVE_PARKING.  Every transition changes the
// booking, the slot and (when money moves) the wallet in one transaction;
// subscribers are told only after it commits.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/model"
	"github.com/iliyamo/parkease/internal/wallet"
)

const sweepBatch = 100

// Engine coordinates booking transitions.
type Engine struct {
	store    Store
	policy   Policy
	notifier Notifier
	log      logrus.FieldLogger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the receiver of committed changes.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(e *Engine) { e.log = l } }

// NewEngine returns an Engine over store.
func NewEngine(store Store, policy Policy, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		policy:   policy,
		notifier: nopNotifier{},
		log:      logrus.StandardLogger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Policy returns the policy in effect.
func (e *Engine) Policy() Policy { return e.policy }

// CreateRequest asks for a new booking.  AreaID, when set, must match the
// slot's area.
type CreateRequest struct {
	UserID    uint64
	VehicleID uint64
	SlotID    uint64
	AreaID    uint64
	// Start is RESERVED for a reservation or ACTIVE_PARKING to park now.
	Start model.BookingStatus
}

// Create claims the requested slot for the user.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (model.Booking, error) {
	var target model.SlotStatus
	switch req.Start {
	case model.BookingReserved:
		target = model.SlotReserved
	case model.BookingActiveParking:
		target = model.SlotOccupied
	default:
		return model.Booking{}, fmt.Errorf("%w: cannot start in %q", ErrInvalidTransition, req.Start)
	}

	now := e.now()
	var out model.Booking
	var lapsed *model.Booking
	err := e.store.InTx(ctx, func(tx Tx) error {
		lapsed = nil
		if live, ok, err := tx.LiveBookingForUpdate(ctx, req.UserID); err != nil {
			return err
		} else if ok {
			// an overdue reservation should not block a new booking
			if live.Status != model.BookingReserved || !e.policy.Expired(*live.ReservationTime, now) {
				return ErrActiveBookingExists
			}
			cancelled, err := e.expireTx(ctx, tx, live, now)
			if err != nil {
				return err
			}
			lapsed = &cancelled
		}
		v, err := tx.VehicleForUser(ctx, req.UserID, req.VehicleID)
		if err != nil {
			return err
		}
		slot, err := tx.SlotForUpdate(ctx, req.SlotID)
		if err != nil {
			return err
		}
		if req.AreaID != 0 && slot.AreaID != req.AreaID {
			return ErrSlotNotFound
		}
		if !v.VehicleType.FitsIn(slot.SupportedVehicleType) {
			return ErrVehicleMismatch
		}
		if slot.Status != model.SlotAvailable {
			return ErrSlotUnavailable
		}
		if err := tx.TransitionSlot(ctx, slot.ID, model.SlotAvailable, target); err != nil {
			if errors.Is(err, ErrSlotConflict) {
				return ErrSlotUnavailable
			}
			return err
		}
		b := model.Booking{
			UserID:         req.UserID,
			VehicleID:      v.ID,
			SlotID:         slot.ID,
			AreaID:         slot.AreaID,
			Status:         req.Start,
			BookingTime:    now,
			UpdatedAt:      now,
			SlotNumber:     slot.SlotNumber,
			RegisterNumber: v.RegisterNumber,
		}
		if req.Start == model.BookingReserved {
			b.ReservationTime = &now
		} else {
			b.ArrivalTime = &now
		}
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	if lapsed != nil {
		e.emitNoShow(ctx, *lapsed)
	}

	e.log.WithFields(logrus.Fields{"booking_id": out.ID, "user_id": out.UserID, "slot_id": out.SlotID, "status": out.Status}).Info("booking created")
	msg := fmt.Sprintf("Parking started at slot %s.", out.SlotNumber)
	if out.Status == model.BookingReserved {
		msg = fmt.Sprintf("Slot %s reserved. Arrive within %d minutes to avoid cancellation.", out.SlotNumber, int(e.policy.HardCutoff.Minutes()))
	}
	e.emit(ctx, out, msg)
	return out, nil
}

// Reserve is Create starting in RESERVED.
func (e *Engine) Reserve(ctx context.Context, userID, vehicleID, slotID, areaID uint64) (model.Booking, error) {
	return e.Create(ctx, CreateRequest{UserID: userID, VehicleID: vehicleID, SlotID: slotID, AreaID: areaID, Start: model.BookingReserved})
}

// ParkNow is Create starting in ACTIVE_PARKING.
func (e *Engine) ParkNow(ctx context.Context, userID, vehicleID, slotID, areaID uint64) (model.Booking, error) {
	return e.Create(ctx, CreateRequest{UserID: userID, VehicleID: vehicleID, SlotID: slotID, AreaID: areaID, Start: model.BookingActiveParking})
}

// Arrive starts parking for a reservation.  The reservation fee is fixed at
// this point.  Arriving after the cutoff records the no-show and returns
// ErrReservationExpired together with the cancelled booking.
func (e *Engine) Arrive(ctx context.Context, userID, bookingID uint64) (model.Booking, error) {
	now := e.now()
	var out model.Booking
	expired := false
	err := e.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return ErrForbidden
		}
		if b.Status != model.BookingReserved {
			return fmt.Errorf("%w: arrive from %s", ErrInvalidTransition, b.Status)
		}
		if e.policy.Expired(*b.ReservationTime, now) {
			expired = true
			out, err = e.expireTx(ctx, tx, b, now)
			return err
		}
		slot, err := tx.SlotForUpdate(ctx, b.SlotID)
		if err != nil {
			return err
		}
		if err := tx.TransitionSlot(ctx, b.SlotID, model.SlotReserved, model.SlotOccupied); err != nil {
			return e.slotDrift(err, b)
		}
		b.Status = model.BookingActiveParking
		b.ArrivalTime = &now
		b.FinalReservationFee = e.policy.ReservationFee(slot.BaseHourlyRate, now.Sub(*b.ReservationTime))
		b.UpdatedAt = now
		b.SlotNumber = slot.SlotNumber
		if err := tx.UpdateBooking(ctx, &b, model.BookingReserved); err != nil {
			return conflictAsTransition(err)
		}
		out = b
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	if expired {
		e.emitNoShow(ctx, out)
		return out, ErrReservationExpired
	}
	e.log.WithFields(logrus.Fields{"booking_id": out.ID, "reservation_fee": out.FinalReservationFee.String()}).Info("booking arrived")
	msg := "Arrival confirmed. Parking timer started."
	if out.FinalReservationFee > 0 {
		msg = fmt.Sprintf("Arrival confirmed. Reservation fee of ₹%s will be charged at exit.", out.FinalReservationFee)
	}
	e.emit(ctx, out, msg)
	return out, nil
}

// End finishes an active parking session and settles the total against the
// wallet.  The slot is released whether or not the balance covered it.
func (e *Engine) End(ctx context.Context, userID, bookingID uint64) (model.Receipt, error) {
	now := e.now()
	var rc model.Receipt
	err := e.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return ErrForbidden
		}
		if b.Status != model.BookingActiveParking {
			return fmt.Errorf("%w: end from %s", ErrInvalidTransition, b.Status)
		}
		slot, err := tx.SlotForUpdate(ctx, b.SlotID)
		if err != nil {
			return err
		}
		start := b.BookingTime
		if b.ArrivalTime != nil {
			start = *b.ArrivalTime
		}
		b.FinalParkingFee = e.policy.ParkingFee(slot.BaseHourlyRate, now.Sub(start))

		w, err := tx.WalletForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		s := wallet.Settle(&w, b.TotalFee())
		w.UpdatedAt = now
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		if err := tx.AppendLedger(ctx, wallet.Entries(userID, &b.ID, s, now)...); err != nil {
			return err
		}

		if err := tx.TransitionSlot(ctx, b.SlotID, model.SlotOccupied, model.SlotAvailable); err != nil {
			return e.slotDrift(err, b)
		}
		b.Status = model.BookingCompleted
		b.ExitTime = &now
		b.AmountPaid = s.Paid
		b.AmountPending = s.Pending
		b.UpdatedAt = now
		b.SlotNumber = slot.SlotNumber
		if err := tx.UpdateBooking(ctx, &b, model.BookingActiveParking); err != nil {
			return conflictAsTransition(err)
		}
		rc = model.Receipt{
			BookingID:           b.ID,
			FinalReservationFee: b.FinalReservationFee,
			FinalParkingFee:     b.FinalParkingFee,
			AmountPaid:          s.Paid,
			AmountPending:       s.Pending,
			DebtCollected:       s.DebtCollected,
			InsufficientBalance: s.Short(),
			WalletBalance:       w.Balance,
			Booking:             b,
		}
		return nil
	})
	if err != nil {
		return model.Receipt{}, err
	}

	e.log.WithFields(logrus.Fields{
		"booking_id": rc.BookingID,
		"paid":       rc.AmountPaid.String(),
		"pending":    rc.AmountPending.String(),
	}).Info("booking completed")
	msg := fmt.Sprintf("Parking session ended. Paid ₹%s.", rc.AmountPaid)
	if rc.InsufficientBalance {
		msg = fmt.Sprintf("Parking session ended. Insufficient balance: ₹%s added to pending dues.", rc.AmountPending)
	}
	e.emit(ctx, rc.Booking, msg)
	return rc, nil
}

// ExpireOverdue cancels every reservation past the cutoff and returns how
// many it cancelled.  Bookings that changed since they were listed are
// skipped.
func (e *Engine) ExpireOverdue(ctx context.Context) (int, error) {
	now := e.now()
	ids, err := e.store.OverdueReservations(ctx, now.Add(-e.policy.HardCutoff), sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list overdue reservations: %w", err)
	}
	n := 0
	for _, id := range ids {
		ok, err := e.expireOne(ctx, id, now)
		if err != nil {
			e.log.WithError(err).WithField("booking_id", id).Warn("expire reservation")
			continue
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (e *Engine) expireOne(ctx context.Context, id uint64, now time.Time) (bool, error) {
	var out model.Booking
	done := false
	err := e.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != model.BookingReserved || !e.policy.Expired(*b.ReservationTime, now) {
			return nil
		}
		out, err = e.expireTx(ctx, tx, b, now)
		done = err == nil
		return err
	})
	if err != nil || !done {
		return false, err
	}
	e.emitNoShow(ctx, out)
	return true, nil
}

// expireTx moves a RESERVED booking to CANCELLED_NO_SHOW inside tx.
func (e *Engine) expireTx(ctx context.Context, tx Tx, b model.Booking, now time.Time) (model.Booking, error) {
	slot, err := tx.SlotForUpdate(ctx, b.SlotID)
	if err != nil {
		return model.Booking{}, err
	}
	fee := e.policy.NoShowCharge(slot.BaseHourlyRate)
	if fee > 0 {
		w, err := tx.WalletForUpdate(ctx, b.UserID)
		if err != nil {
			return model.Booking{}, err
		}
		s := wallet.Settle(&w, fee)
		w.UpdatedAt = now
		if err := tx.SaveWallet(ctx, w); err != nil {
			return model.Booking{}, err
		}
		if err := tx.AppendLedger(ctx, wallet.Entries(b.UserID, &b.ID, s, now)...); err != nil {
			return model.Booking{}, err
		}
		b.AmountPaid = s.Paid
		b.AmountPending = s.Pending
	}
	if err := tx.TransitionSlot(ctx, b.SlotID, model.SlotReserved, model.SlotAvailable); err != nil {
		return model.Booking{}, e.slotDrift(err, b)
	}
	b.Status = model.BookingCancelledNoShow
	b.FinalReservationFee = fee
	b.ExitTime = &now
	b.UpdatedAt = now
	b.SlotNumber = slot.SlotNumber
	if err := tx.UpdateBooking(ctx, &b, model.BookingReserved); err != nil {
		return model.Booking{}, conflictAsTransition(err)
	}
	return b, nil
}

// Get returns a booking owned by userID.
func (e *Engine) Get(ctx context.Context, userID, bookingID uint64) (model.Booking, error) {
	b, err := e.store.Booking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.UserID != userID {
		return model.Booking{}, ErrForbidden
	}
	return b, nil
}

// Active returns the user's live booking, if any.  A reservation found
// past its cutoff is expired first so callers never see it as live.
func (e *Engine) Active(ctx context.Context, userID uint64) (model.Booking, bool, error) {
	b, ok, err := e.store.LiveBooking(ctx, userID)
	if err != nil || !ok {
		return model.Booking{}, false, err
	}
	if e.overdue(b) {
		if _, err := e.expireOne(ctx, b.ID, e.now()); err != nil {
			return model.Booking{}, false, err
		}
		return e.store.LiveBooking(ctx, userID)
	}
	return b, true, nil
}

// ListActive returns the user's live bookings, newest first.
func (e *Engine) ListActive(ctx context.Context, userID uint64) ([]model.Booking, error) {
	list, err := e.store.UserBookings(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	stale := false
	for _, b := range list {
		if e.overdue(b) {
			if _, err := e.expireOne(ctx, b.ID, e.now()); err != nil {
				return nil, err
			}
			stale = true
		}
	}
	if stale {
		return e.store.UserBookings(ctx, userID, true)
	}
	return list, nil
}

// History returns the user's finished bookings, newest first.
func (e *Engine) History(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return e.store.UserBookings(ctx, userID, false)
}

func (e *Engine) overdue(b model.Booking) bool {
	return b.Status == model.BookingReserved && b.ReservationTime != nil && e.policy.Expired(*b.ReservationTime, e.now())
}

// slotDrift reports a slot whose status disagrees with its live booking.
func (e *Engine) slotDrift(err error, b model.Booking) error {
	if errors.Is(err, ErrSlotConflict) {
		e.log.WithFields(logrus.Fields{"booking_id": b.ID, "slot_id": b.SlotID}).Error("slot status out of step with booking")
		return fmt.Errorf("%w: slot %d", ErrInvalidTransition, b.SlotID)
	}
	return err
}

func conflictAsTransition(err error) error {
	if errors.Is(err, ErrBookingConflict) {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return err
}

func (e *Engine) emitNoShow(ctx context.Context, b model.Booking) {
	e.log.WithFields(logrus.Fields{"booking_id": b.ID, "fee": b.FinalReservationFee.String()}).Info("reservation cancelled as no-show")
	msg := fmt.Sprintf("Reservation Cancelled: no arrival within %d minutes.", int(e.policy.HardCutoff.Minutes()))
	if b.FinalReservationFee > 0 {
		msg += fmt.Sprintf(" A no-show fee of ₹%s was charged.", b.FinalReservationFee)
	}
	e.emit(ctx, b, msg)
}

func (e *Engine) emit(ctx context.Context, b model.Booking, msg string) {
	ctx = context.WithoutCancel(ctx)
	e.notifier.BookingChanged(ctx, b)
	e.notifier.Notify(ctx, b.UserID, msg)
}
