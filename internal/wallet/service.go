package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/parkease/internal/model"
)

// ErrInvalidAmount is returned for non-positive top-ups.
var ErrInvalidAmount = errors.New("amount must be positive")

// Tx is the slice of a storage transaction the wallet needs.  WalletForUpdate
// locks the row and returns a zero wallet for users that never topped up.
type Tx interface {
	WalletForUpdate(ctx context.Context, userID uint64) (model.Wallet, error)
	SaveWallet(ctx context.Context, w model.Wallet) error
	AppendLedger(ctx context.Context, entries ...model.LedgerEntry) error
}

// Runner executes fn inside one storage transaction, committing when fn
// returns nil.
type Runner interface {
	WalletTx(ctx context.Context, fn func(Tx) error) error
	Wallet(ctx context.Context, userID uint64) (model.Wallet, error)
}

// Service exposes the wallet operations used by the HTTP layer.
type Service struct {
	store Runner
	now   func() time.Time
}

// NewService binds a Service to store.
func NewService(store Runner) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// TopUpResult is returned by TopUp.
type TopUpResult struct {
	Wallet        model.Wallet `json:"wallet"`
	DebtCollected model.Money  `json:"debtCollected"`
}

// TopUp credits amount to the user's wallet and recovers any pending debt
// from it.  method is recorded on the ledger as given (e.g. UPI, CARD).
func (s *Service) TopUp(ctx context.Context, userID uint64, amount model.Money, method string) (TopUpResult, error) {
	if amount <= 0 {
		return TopUpResult{}, ErrInvalidAmount
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNSPECIFIED"
	}
	var res TopUpResult
	err := s.store.WalletTx(ctx, func(tx Tx) error {
		w, err := tx.WalletForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		collected, err := Credit(&w, amount)
		if err != nil {
			return err
		}
		now := s.now()
		w.UpdatedAt = now
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		entries := []model.LedgerEntry{{UserID: userID, Kind: model.LedgerTopUp, Amount: amount, Method: method, CreatedAt: now}}
		if collected > 0 {
			entries = append(entries, model.LedgerEntry{UserID: userID, Kind: model.LedgerDebtCollected, Amount: collected, CreatedAt: now})
		}
		if err := tx.AppendLedger(ctx, entries...); err != nil {
			return err
		}
		res = TopUpResult{Wallet: w, DebtCollected: collected}
		return nil
	})
	if err != nil {
		return TopUpResult{}, fmt.Errorf("wallet top-up: %w", err)
	}
	return res, nil
}

// Get returns the user's wallet.
func (s *Service) Get(ctx context.Context, userID uint64) (model.Wallet, error) {
	return s.store.Wallet(ctx, userID)
}
