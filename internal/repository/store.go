package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/parkease/internal/booking"
	"github.com/iliyamo/parkease/internal/model"
	"github.com/iliyamo/parkease/internal/wallet"
)

// Store backs the booking engine and the wallet service with MySQL.
type Store struct {
	db       *sql.DB
	bookings *BookingRepo
	wallets  *WalletRepo
}

// NewStore binds a Store to db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, bookings: NewBookingRepo(db), wallets: NewWalletRepo(db)}
}

var (
	_ booking.Store = (*Store)(nil)
	_ wallet.Runner = (*Store)(nil)
	_ booking.Tx    = (*storeTx)(nil)
)

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// InTx implements booking.Store.
func (s *Store) InTx(ctx context.Context, fn func(booking.Tx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error { return fn(storeTx{tx}) })
}

// WalletTx implements wallet.Runner.
func (s *Store) WalletTx(ctx context.Context, fn func(wallet.Tx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error { return fn(storeTx{tx}) })
}

func (s *Store) Wallet(ctx context.Context, userID uint64) (model.Wallet, error) {
	return s.wallets.Get(ctx, userID)
}

func (s *Store) Booking(ctx context.Context, id uint64) (model.Booking, error) {
	return s.bookings.Get(ctx, id)
}

func (s *Store) LiveBooking(ctx context.Context, userID uint64) (model.Booking, bool, error) {
	return s.bookings.Live(ctx, userID)
}

func (s *Store) UserBookings(ctx context.Context, userID uint64, live bool) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID, live)
}

func (s *Store) OverdueReservations(ctx context.Context, before time.Time, limit int) ([]uint64, error) {
	return s.bookings.OverdueReservations(ctx, before, limit)
}

// storeTx adapts a *sql.Tx to booking.Tx and wallet.Tx.
type storeTx struct{ tx *sql.Tx }

func (t storeTx) WalletForUpdate(ctx context.Context, userID uint64) (model.Wallet, error) {
	return walletForUpdate(ctx, t.tx, userID)
}

func (t storeTx) SaveWallet(ctx context.Context, w model.Wallet) error {
	return saveWallet(ctx, t.tx, w)
}

func (t storeTx) AppendLedger(ctx context.Context, entries ...model.LedgerEntry) error {
	return appendLedger(ctx, t.tx, entries)
}

func (t storeTx) SlotForUpdate(ctx context.Context, slotID uint64) (model.Slot, error) {
	return slotForUpdate(ctx, t.tx, slotID)
}

func (t storeTx) TransitionSlot(ctx context.Context, slotID uint64, from, to model.SlotStatus) error {
	return transitionSlot(ctx, t.tx, slotID, from, to)
}

func (t storeTx) VehicleForUser(ctx context.Context, userID, vehicleID uint64) (model.Vehicle, error) {
	return vehicleForUser(ctx, t.tx, userID, vehicleID)
}

func (t storeTx) LiveBookingForUpdate(ctx context.Context, userID uint64) (model.Booking, bool, error) {
	return liveBookingForUpdate(ctx, t.tx, userID)
}

func (t storeTx) BookingForUpdate(ctx context.Context, id uint64) (model.Booking, error) {
	return bookingForUpdate(ctx, t.tx, id)
}

func (t storeTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return insertBooking(ctx, t.tx, b)
}

func (t storeTx) UpdateBooking(ctx context.Context, b *model.Booking, from model.BookingStatus) error {
	return updateBooking(ctx, t.tx, b, from)
}
