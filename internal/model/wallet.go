package model

import "time"

// Wallet holds a driver's prepaid balance and any debt left over from
// settlements the balance could not cover.  Balance never goes negative.
type Wallet struct {
	UserID      uint64    `json:"userId"`
	Balance     Money     `json:"balance"`
	PendingDebt Money     `json:"pendingDebt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LedgerKind names a wallet movement.
type LedgerKind string

const (
	LedgerTopUp         LedgerKind = "TOPUP"
	LedgerCharge        LedgerKind = "CHARGE"
	LedgerDebtAccrued   LedgerKind = "DEBT_ACCRUED"
	LedgerDebtCollected LedgerKind = "DEBT_COLLECTED"
)

// LedgerEntry is an append-only record of one wallet movement.  Amount is
// always positive; Kind carries the direction.
type LedgerEntry struct {
	ID        uint64     `json:"id"`
	UserID    uint64     `json:"userId"`
	BookingID *uint64    `json:"bookingId,omitempty"`
	Kind      LedgerKind `json:"kind"`
	Amount    Money      `json:"amount"`
	Method    string     `json:"method,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
