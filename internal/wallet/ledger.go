// Package wallet implements the driver wallet: prepaid balance, settlement
// of fees against that balance and carry-over of unpaid debt.
//
// Settle and Credit are pure and operate on a wallet the caller has already
// locked; the booking engine uses them inside its own transaction.  Service
// wraps them for the top-up endpoint.
package wallet

import (
	"fmt"
	"math"
	"time"

	"github.com/iliyamo/parkease/internal/model"
)

// Settlement describes how one amount due was covered.
type Settlement struct {
	Due           model.Money // amount the caller asked to collect
	Paid          model.Money // part of Due taken from the balance
	Pending       model.Money // part of Due left unpaid and added to PendingDebt
	DebtCollected model.Money // older debt recovered before Due was applied
}

// Short reports whether the balance could not cover Due.
func (s Settlement) Short() bool { return s.Pending > 0 }

// Settle collects outstanding debt first, then as much of due as the balance
// allows.  The remainder becomes new debt.  The balance never goes negative
// and debt only shrinks by being collected here or in Credit.
func Settle(w *model.Wallet, due model.Money) Settlement {
	s := Settlement{Due: due}
	s.DebtCollected = collect(w)
	if due <= 0 {
		return s
	}
	s.Paid = model.Min(w.Balance, due)
	w.Balance -= s.Paid
	s.Pending = due - s.Paid
	w.PendingDebt += s.Pending
	return s
}

// Credit adds amount to the balance and then collects outstanding debt from
// it.  It returns the debt collected.  A credit that would overflow the
// balance is refused with ErrInvalidAmount and leaves w unchanged.
func Credit(w *model.Wallet, amount model.Money) (model.Money, error) {
	if amount > 0 {
		if amount > math.MaxInt64-w.Balance {
			return 0, fmt.Errorf("balance overflow: %w", ErrInvalidAmount)
		}
		w.Balance += amount
	}
	return collect(w), nil
}

func collect(w *model.Wallet) model.Money {
	if w.PendingDebt <= 0 || w.Balance <= 0 {
		return 0
	}
	c := model.Min(w.Balance, w.PendingDebt)
	w.Balance -= c
	w.PendingDebt -= c
	return c
}

// Entries turns a settlement into ledger rows.  bookingID may be nil.
func Entries(userID uint64, bookingID *uint64, s Settlement, at time.Time) []model.LedgerEntry {
	var out []model.LedgerEntry
	add := func(kind model.LedgerKind, amt model.Money) {
		if amt <= 0 {
			return
		}
		out = append(out, model.LedgerEntry{UserID: userID, BookingID: bookingID, Kind: kind, Amount: amt, CreatedAt: at})
	}
	add(model.LedgerDebtCollected, s.DebtCollected)
	add(model.LedgerCharge, s.Paid)
	add(model.LedgerDebtAccrued, s.Pending)
	return out
}
