package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/middleware"
	"github.com/iliyamo/parkease/internal/model"
	"github.com/iliyamo/parkease/internal/wallet"
)

// Wallets is the surface of *wallet.Service the handler uses.
type Wallets interface {
	Get(ctx context.Context, userID uint64) (model.Wallet, error)
	TopUp(ctx context.Context, userID uint64, amount model.Money, method string) (wallet.TopUpResult, error)
}

// LedgerReader lists recent wallet movements.
type LedgerReader interface {
	Ledger(ctx context.Context, userID uint64, limit int) ([]model.LedgerEntry, error)
}

type WalletHandler struct {
	Wallets Wallets
	Ledger  LedgerReader
	// MaxTopUp caps a single top-up; zero means no cap.
	MaxTopUp model.Money
	Log      logrus.FieldLogger
}

func NewWalletHandler(w Wallets, l LedgerReader, maxTopUp model.Money, log logrus.FieldLogger) *WalletHandler {
	return &WalletHandler{Wallets: w, Ledger: l, MaxTopUp: maxTopUp, Log: log}
}

// Get returns balance and pending debt.
func (h *WalletHandler) Get(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	w, err := h.Wallets.Get(ctx, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, w)
}

type topUpReq struct {
	Amount        model.Money `json:"amount"`
	PaymentMethod string      `json:"paymentMethod"`
}

// TopUp credits the wallet.  Pending debt is recovered from the credit
// first.
func (h *WalletHandler) TopUp(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	var req topUpReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Amount <= 0 {
		return badRequest(c, "amount must be positive")
	}
	if h.MaxTopUp > 0 && req.Amount > h.MaxTopUp {
		return badRequest(c, "amount exceeds the top-up limit of "+h.MaxTopUp.String())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Wallets.TopUp(ctx, uid, req.Amount, req.PaymentMethod)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"userId":        res.Wallet.UserID,
		"balance":       res.Wallet.Balance,
		"pendingDebt":   res.Wallet.PendingDebt,
		"updatedAt":     res.Wallet.UpdatedAt,
		"debtCollected": res.DebtCollected,
		"message":       "wallet topped up",
	})
}

// Transactions lists the latest ledger entries.
func (h *WalletHandler) Transactions(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	entries, err := h.Ledger.Ledger(ctx, uid, 50)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}
