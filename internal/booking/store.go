package booking

import (
	"context"
	"time"

	"github.com/iliyamo/parkease/internal/model"
	"github.com/iliyamo/parkease/internal/wallet"
)

// Tx is one storage transaction.  Methods suffixed ForUpdate lock the row
// until commit.
type Tx interface {
	wallet.Tx

	SlotForUpdate(ctx context.Context, slotID uint64) (model.Slot, error)
	// TransitionSlot moves the slot from -> to, failing with ErrSlotConflict
	// when the current status is not from.
	TransitionSlot(ctx context.Context, slotID uint64, from, to model.SlotStatus) error

	VehicleForUser(ctx context.Context, userID, vehicleID uint64) (model.Vehicle, error)

	LiveBookingForUpdate(ctx context.Context, userID uint64) (model.Booking, bool, error)
	BookingForUpdate(ctx context.Context, id uint64) (model.Booking, error)
	// InsertBooking stores b, setting its ID and Version.
	InsertBooking(ctx context.Context, b *model.Booking) error
	// UpdateBooking writes b if the stored status is still from, failing
	// with ErrBookingConflict otherwise.  Version is incremented in b.
	UpdateBooking(ctx context.Context, b *model.Booking, from model.BookingStatus) error
}

// Store is the persistence the engine depends on.
type Store interface {
	// InTx runs fn in a transaction, committing when it returns nil.
	InTx(ctx context.Context, fn func(Tx) error) error

	Booking(ctx context.Context, id uint64) (model.Booking, error)
	LiveBooking(ctx context.Context, userID uint64) (model.Booking, bool, error)
	// UserBookings lists bookings newest first; live selects RESERVED and
	// ACTIVE_PARKING, otherwise terminal bookings.
	UserBookings(ctx context.Context, userID uint64, live bool) ([]model.Booking, error)
	// OverdueReservations returns ids of RESERVED bookings reserved at or
	// before the cutoff time.
	OverdueReservations(ctx context.Context, reservedBefore time.Time, limit int) ([]uint64, error)
}

// Notifier receives committed changes.  Implementations must not block.
type Notifier interface {
	BookingChanged(ctx context.Context, b model.Booking)
	Notify(ctx context.Context, userID uint64, message string)
}

type nopNotifier struct{}

func (nopNotifier) BookingChanged(context.Context, model.Booking) {}
func (nopNotifier) Notify(context.Context, uint64, string)        {}
