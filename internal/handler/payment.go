package handler

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/my-roadmap/roadmap-api/internal/config"
	"github.com/my-roadmap/roadmap-api/internal/model"
	"github.com/my-roadmap/roadmap-api/internal/payment"
	"github.com/my-roadmap/roadmap-api/internal/repository"
)

// TransactionStore is the persistence surface checkout and history need.
// *repository.TransactionRepo satisfies it against MySQL.
type TransactionStore interface {
	Create(ctx context.Context, t *model.Transaction) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Transaction, error)
}

// PaymentHandler owns checkout, the provider webhook and transaction
// history.
type PaymentHandler struct {
	Cfg          config.Config
	Transactions TransactionStore
	Processor    *payment.Processor
}

func NewPaymentHandler(cfg config.Config, txs *repository.TransactionRepo) *PaymentHandler {
	return &PaymentHandler{
		Cfg:          cfg,
		Transactions: txs,
		Processor:    payment.NewProcessor(txs),
	}
}

// Packages lists the purchasable credit packages.  The response never
// varies per user, which makes the route a natural fit for the Redis
// response cache.
func (h *PaymentHandler) Packages(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"packages": h.Cfg.Packages})
}

type checkoutReq struct {
	Package string `json:"package"`
}

type transactionResp struct {
	ID          string    `json:"id"`
	Credits     int64     `json:"credits"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Checkout opens a PENDING transaction for a named package.  The
// transaction ID is a UUID minted here and handed to the provider as
// the idempotency key; confirmation events reference it, so it must
// exist before any money moves.  The checkout reference goes into the
// same INSERT, so no row ever exists without one.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req checkoutReq
	if err := c.Bind(&req); err != nil || req.Package == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "package required"})
	}
	pkg, ok := h.Cfg.PackageByName(req.Package)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown package"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	checkoutRef := "chk_" + uuid.NewString()
	t := &model.Transaction{
		ID:          uuid.NewString(),
		UserID:      uid,
		AmountCents: pkg.AmountCents,
		Credits:     pkg.Credits,
		Status:      model.TransactionPending,
		CheckoutRef: sql.NullString{String: checkoutRef, Valid: true},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Transactions.Create(ctx, t); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create transaction failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"transaction":  transactionResp{ID: t.ID, Credits: t.Credits, AmountCents: t.AmountCents, Status: t.Status, CreatedAt: t.CreatedAt},
		"checkout_ref": checkoutRef,
	})
}

// Webhook receives signed provider events.  The signature is checked
// against the raw body before anything else; a bad signature is 401 and
// nothing is read from the database.  Mismatched events (unknown or
// already-settled-the-other-way transactions) are logged and answered
// 200 so the provider stops redelivering; only store failures get a 5xx
// to trigger a retry.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	if !payment.VerifySignature(h.Cfg.WebhookSecret, body, c.Request().Header.Get(payment.SignatureHeader)) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	}

	ev, err := payment.DecodeEvent(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Processor.Apply(ctx, ev); err != nil {
		if err == payment.ErrMismatch {
			return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "apply event failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// ListTransactions returns the caller's purchase history.
func (h *PaymentHandler) ListTransactions(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Transactions.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list transactions failed"})
	}
	out := make([]transactionResp, 0, len(items))
	for _, t := range items {
		out = append(out, transactionResp{ID: t.ID, Credits: t.Credits, AmountCents: t.AmountCents, Status: t.Status, CreatedAt: t.CreatedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": out})
}
