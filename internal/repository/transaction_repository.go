package repository

import (
    "context"
    "database/sql"

    "github.com/my-roadmap/roadmap-api/internal/model"
)

// TransactionRepo provides CRUD operations for credit-purchase
// transactions and implements the terminal-state machine the payment
// webhook relies on.  A transaction moves PENDING→COMPLETED or
// PENDING→FAILED exactly once; both transitions are guarded by a
// conditional UPDATE on the current status, which is what makes webhook
// redelivery safe without any deduplication cache.
type TransactionRepo struct {
    db    *sql.DB
    users *UserRepo
}

// NewTransactionRepo returns a TransactionRepo bound to the given database.
// The user repository is needed because confirming a payment credits the
// owner's balance inside the same database transaction.
func NewTransactionRepo(db *sql.DB, users *UserRepo) *TransactionRepo {
    return &TransactionRepo{db: db, users: users}
}

// DB exposes the underlying handle for callers that need to open their
// own transactions.
func (r *TransactionRepo) DB() *sql.DB { return r.db }

// Create inserts a new PENDING transaction.  The caller supplies the ID
// (a UUID issued before checkout so the payment provider can reference it).
func (r *TransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
    const q = `INSERT INTO transactions (id, user_id, amount_cents, credits, status, checkout_ref)
               VALUES (?, ?, ?, ?, ?, ?)`
    _, err := r.db.ExecContext(ctx, q, t.ID, t.UserID, t.AmountCents, t.Credits,
        model.TransactionPending, t.CheckoutRef)
    return err
}

// GetByID fetches a transaction.  ErrTransactionNotFound is returned when
// no row matches.
func (r *TransactionRepo) GetByID(ctx context.Context, id string) (model.Transaction, error) {
    const q = `SELECT id, user_id, amount_cents, credits, status, checkout_ref, payment_ref,
                      created_at, updated_at
               FROM transactions WHERE id = ? LIMIT 1`
    var t model.Transaction
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &t.ID, &t.UserID, &t.AmountCents, &t.Credits, &t.Status,
        &t.CheckoutRef, &t.PaymentRef, &t.CreatedAt, &t.UpdatedAt)
    if err == sql.ErrNoRows {
        return model.Transaction{}, ErrTransactionNotFound
    }
    return t, err
}

// Status returns only the status column.  ErrTransactionNotFound is
// returned when no row matches.
func (r *TransactionRepo) Status(ctx context.Context, id string) (string, error) {
    var status string
    err := r.db.QueryRowContext(ctx,
        "SELECT status FROM transactions WHERE id = ? LIMIT 1", id).Scan(&status)
    if err == sql.ErrNoRows {
        return "", ErrTransactionNotFound
    }
    return status, err
}

// ListByUser returns a user's transactions, newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Transaction, error) {
    const q = `SELECT id, user_id, amount_cents, credits, status, checkout_ref, payment_ref,
                      created_at, updated_at
               FROM transactions WHERE user_id = ? ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Transaction, 0)
    for rows.Next() {
        var t model.Transaction
        if err := rows.Scan(&t.ID, &t.UserID, &t.AmountCents, &t.Credits, &t.Status,
            &t.CheckoutRef, &t.PaymentRef, &t.CreatedAt, &t.UpdatedAt); err != nil {
            return nil, err
        }
        out = append(out, t)
    }
    return out, rows.Err()
}

// Confirm applies a payment confirmation: PENDING→COMPLETED plus the
// credit increment to the owner's balance, as one database transaction.
// It reports whether the transition was applied; false means the
// transaction was not PENDING (or does not exist) and nothing changed.
// The caller decides whether that is a duplicate delivery or an anomaly
// by inspecting Status afterwards.
func (r *TransactionRepo) Confirm(ctx context.Context, id, paymentRef string) (bool, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return false, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    res, err := tx.ExecContext(ctx,
        "UPDATE transactions SET status=?, payment_ref=? WHERE id=? AND status=?",
        model.TransactionCompleted, paymentRef, id, model.TransactionPending)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    if n == 0 {
        // Already terminal or unknown; nothing to credit.
        return false, nil
    }

    var userID uint64
    var credits int64
    if err := tx.QueryRowContext(ctx,
        "SELECT user_id, credits FROM transactions WHERE id=? LIMIT 1", id).
        Scan(&userID, &credits); err != nil {
        return false, err
    }
    if err := r.users.CreditTx(ctx, tx, userID, credits); err != nil {
        return false, err
    }
    if err := tx.Commit(); err != nil {
        return false, err
    }
    committed = true
    return true, nil
}

// Deny applies a payment denial: PENDING→FAILED with no balance change.
// It reports whether the transition was applied; false means the
// transaction was already terminal or unknown.
func (r *TransactionRepo) Deny(ctx context.Context, id string) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        "UPDATE transactions SET status=? WHERE id=? AND status=?",
        model.TransactionFailed, id, model.TransactionPending)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n == 1, err
}
