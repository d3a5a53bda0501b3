package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parkease/internal/model"
)

type memRunner struct {
	mu      sync.Mutex
	wallets map[uint64]model.Wallet
	ledger  []model.LedgerEntry
	failOn  string
}

func (m *memRunner) WalletTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{m: m, wallets: map[uint64]model.Wallet{}}
	if err := fn(tx); err != nil {
		return err
	}
	for k, v := range tx.wallets {
		m.wallets[k] = v
	}
	m.ledger = append(m.ledger, tx.ledger...)
	return nil
}

func (m *memRunner) Wallet(ctx context.Context, userID uint64) (model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		w.UserID = userID
	}
	return w, nil
}

type memTx struct {
	m       *memRunner
	wallets map[uint64]model.Wallet
	ledger  []model.LedgerEntry
}

func (t *memTx) WalletForUpdate(ctx context.Context, userID uint64) (model.Wallet, error) {
	if w, ok := t.wallets[userID]; ok {
		return w, nil
	}
	w, ok := t.m.wallets[userID]
	if !ok {
		w.UserID = userID
	}
	return w, nil
}

func (t *memTx) SaveWallet(ctx context.Context, w model.Wallet) error {
	if t.m.failOn == "save" {
		return errors.New("disk full")
	}
	t.wallets[w.UserID] = w
	return nil
}

func (t *memTx) AppendLedger(ctx context.Context, entries ...model.LedgerEntry) error {
	t.ledger = append(t.ledger, entries...)
	return nil
}

func TestServiceTopUp(t *testing.T) {
	store := &memRunner{wallets: map[uint64]model.Wallet{7: {UserID: 7, PendingDebt: 1500}}}
	svc := NewService(store)

	res, err := svc.TopUp(context.Background(), 7, 5000, "upi")
	require.NoError(t, err)
	assert.Equal(t, model.Money(1500), res.DebtCollected)
	assert.Equal(t, model.Money(3500), res.Wallet.Balance)
	assert.Zero(t, res.Wallet.PendingDebt)

	require.Len(t, store.ledger, 2)
	assert.Equal(t, model.LedgerTopUp, store.ledger[0].Kind)
	assert.Equal(t, "UPI", store.ledger[0].Method)
	assert.Equal(t, model.LedgerDebtCollected, store.ledger[1].Kind)

	w, err := svc.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.Money(3500), w.Balance)
}

func TestServiceTopUpRejectsNonPositive(t *testing.T) {
	svc := NewService(&memRunner{wallets: map[uint64]model.Wallet{}})
	_, err := svc.TopUp(context.Background(), 1, 0, "CARD")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestServiceTopUpRollsBack(t *testing.T) {
	store := &memRunner{wallets: map[uint64]model.Wallet{}, failOn: "save"}
	svc := NewService(store)
	_, err := svc.TopUp(context.Background(), 1, 100, "CARD")
	require.Error(t, err)
	assert.Empty(t, store.ledger)
	assert.Empty(t, store.wallets)
}
