package booking

import "errors"

// Errors returned by the engine.  Storage implementations wrap or return the
// not-found and conflict sentinels so the engine can classify failures.
var (
	ErrSlotUnavailable     = errors.New("slot is not available")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrActiveBookingExists = errors.New("user already has an active booking")
	ErrReservationExpired  = errors.New("reservation expired")
	ErrInvalidTransition   = errors.New("invalid booking state transition")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrForbidden           = errors.New("booking belongs to another user")
	ErrVehicleNotFound     = errors.New("vehicle not found")
	ErrVehicleMismatch     = errors.New("vehicle type does not fit slot")

	// ErrSlotConflict is returned by Tx.TransitionSlot when the slot is not
	// in the expected status.
	ErrSlotConflict = errors.New("slot status changed concurrently")
	// ErrBookingConflict is returned by Tx.UpdateBooking when the stored
	// status no longer matches the expected one.
	ErrBookingConflict = errors.New("booking status changed concurrently")
)
