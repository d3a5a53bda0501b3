package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/parkease/internal/model"
)

// memStore is an in-memory Store.  InTx serializes transactions and rolls
// back by restoring a snapshot.
type memStore struct {
	mu       sync.Mutex
	slots    map[uint64]model.Slot
	vehicles map[uint64]model.Vehicle
	bookings map[uint64]model.Booking
	wallets  map[uint64]model.Wallet
	ledger   []model.LedgerEntry
	nextID   uint64

	failLedger bool
}

func newMemStore() *memStore {
	return &memStore{
		slots:    map[uint64]model.Slot{},
		vehicles: map[uint64]model.Vehicle{},
		bookings: map[uint64]model.Booking{},
		wallets:  map[uint64]model.Wallet{},
	}
}

func (m *memStore) snapshot() *memStore {
	c := newMemStore()
	for k, v := range m.slots {
		c.slots[k] = v
	}
	for k, v := range m.vehicles {
		c.vehicles[k] = v
	}
	for k, v := range m.bookings {
		c.bookings[k] = v
	}
	for k, v := range m.wallets {
		c.wallets[k] = v
	}
	c.ledger = append(c.ledger, m.ledger...)
	c.nextID = m.nextID
	return c
}

func (m *memStore) restore(c *memStore) {
	m.slots, m.vehicles, m.bookings, m.wallets, m.ledger, m.nextID = c.slots, c.vehicles, c.bookings, c.wallets, c.ledger, c.nextID
}

func (m *memStore) InTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(memTx{m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) Booking(ctx context.Context, id uint64) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, nil
}

func (m *memStore) LiveBooking(ctx context.Context, userID uint64) (model.Booking, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(userID)
}

func (m *memStore) live(userID uint64) (model.Booking, bool, error) {
	for _, b := range m.bookings {
		if b.UserID == userID && b.Status.Live() {
			return b, true, nil
		}
	}
	return model.Booking{}, false, nil
}

func (m *memStore) UserBookings(ctx context.Context, userID uint64, live bool) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.UserID == userID && b.Status.Live() == live {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) OverdueReservations(ctx context.Context, before time.Time, limit int) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	for id, b := range m.bookings {
		if b.Status == model.BookingReserved && !b.ReservationTime.After(before) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type memTx struct{ m *memStore }

func (t memTx) WalletForUpdate(ctx context.Context, userID uint64) (model.Wallet, error) {
	w, ok := t.m.wallets[userID]
	if !ok {
		w.UserID = userID
	}
	return w, nil
}

func (t memTx) SaveWallet(ctx context.Context, w model.Wallet) error {
	t.m.wallets[w.UserID] = w
	return nil
}

func (t memTx) AppendLedger(ctx context.Context, entries ...model.LedgerEntry) error {
	if t.m.failLedger {
		return context.DeadlineExceeded
	}
	t.m.ledger = append(t.m.ledger, entries...)
	return nil
}

func (t memTx) SlotForUpdate(ctx context.Context, id uint64) (model.Slot, error) {
	s, ok := t.m.slots[id]
	if !ok {
		return model.Slot{}, ErrSlotNotFound
	}
	return s, nil
}

func (t memTx) TransitionSlot(ctx context.Context, id uint64, from, to model.SlotStatus) error {
	s, ok := t.m.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	if s.Status != from {
		return ErrSlotConflict
	}
	s.Status = to
	s.Version++
	t.m.slots[id] = s
	return nil
}

func (t memTx) VehicleForUser(ctx context.Context, userID, vehicleID uint64) (model.Vehicle, error) {
	v, ok := t.m.vehicles[vehicleID]
	if !ok || v.UserID != userID {
		return model.Vehicle{}, ErrVehicleNotFound
	}
	return v, nil
}

func (t memTx) LiveBookingForUpdate(ctx context.Context, userID uint64) (model.Booking, bool, error) {
	return t.m.live(userID)
}

func (t memTx) BookingForUpdate(ctx context.Context, id uint64) (model.Booking, error) {
	b, ok := t.m.bookings[id]
	if !ok {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, nil
}

func (t memTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	t.m.nextID++
	b.ID = t.m.nextID
	b.Version = 1
	t.m.bookings[b.ID] = *b
	return nil
}

func (t memTx) UpdateBooking(ctx context.Context, b *model.Booking, from model.BookingStatus) error {
	cur, ok := t.m.bookings[b.ID]
	if !ok {
		return ErrBookingNotFound
	}
	if cur.Status != from {
		return ErrBookingConflict
	}
	b.Version = cur.Version + 1
	t.m.bookings[b.ID] = *b
	return nil
}

// recorder is a Notifier that keeps what it receives.
type recorder struct {
	mu       sync.Mutex
	bookings []model.Booking
	messages []string
}

func (r *recorder) BookingChanged(ctx context.Context, b model.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = append(r.bookings, b)
}

func (r *recorder) Notify(ctx context.Context, userID uint64, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
