package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/parkease/internal/model"
)

// WalletRepo stores wallets and the append-only ledger.
type WalletRepo struct {
	db *sql.DB
}

func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

// Get returns the user's wallet, zero-valued when none exists yet.
func (r *WalletRepo) Get(ctx context.Context, userID uint64) (model.Wallet, error) {
	w := model.Wallet{UserID: userID}
	err := r.db.QueryRowContext(ctx,
		"SELECT balance, pending_debt, updated_at FROM wallets WHERE user_id = ?", userID).Scan(&w.Balance, &w.PendingDebt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return w, nil
	}
	return w, err
}

// Ledger returns the user's latest entries, newest first.
func (r *WalletRepo) Ledger(ctx context.Context, userID uint64, limit int) ([]model.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, booking_id, kind, amount, method, created_at FROM wallet_ledger
		 WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.LedgerEntry{}
	for rows.Next() {
		var (
			e   model.LedgerEntry
			bid sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &bid, &e.Kind, &e.Amount, &e.Method, &e.CreatedAt); err != nil {
			return nil, err
		}
		if bid.Valid {
			id := uint64(bid.Int64)
			e.BookingID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// walletForUpdate creates the row on first use and locks it.
func walletForUpdate(ctx context.Context, q querier, userID uint64) (model.Wallet, error) {
	if _, err := q.ExecContext(ctx, "INSERT IGNORE INTO wallets (user_id) VALUES (?)", userID); err != nil {
		return model.Wallet{}, fmt.Errorf("ensure wallet: %w", err)
	}
	w := model.Wallet{UserID: userID}
	err := q.QueryRowContext(ctx,
		"SELECT balance, pending_debt, updated_at FROM wallets WHERE user_id = ? FOR UPDATE", userID).Scan(&w.Balance, &w.PendingDebt, &w.UpdatedAt)
	if err != nil {
		return model.Wallet{}, fmt.Errorf("lock wallet: %w", err)
	}
	return w, nil
}

func saveWallet(ctx context.Context, q querier, w model.Wallet) error {
	_, err := q.ExecContext(ctx,
		"UPDATE wallets SET balance = ?, pending_debt = ?, updated_at = ? WHERE user_id = ?",
		w.Balance, w.PendingDebt, w.UpdatedAt.UTC(), w.UserID)
	if err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	return nil
}

func appendLedger(ctx context.Context, q querier, entries []model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	query := `INSERT INTO wallet_ledger (user_id, booking_id, kind, amount, method, created_at) VALUES `
	args := make([]interface{}, 0, len(entries)*6)
	for i, e := range entries {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		var bid interface{}
		if e.BookingID != nil {
			bid = *e.BookingID
		}
		args = append(args, e.UserID, bid, e.Kind, e.Amount, e.Method, e.CreatedAt.UTC())
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}
