package model

import (
    "database/sql"
    "time"
)

// Transaction status values.  A transaction starts PENDING when checkout
// is initiated and moves exactly once to COMPLETED or FAILED when the
// payment provider confirms or denies.  Both end states are terminal; a
// redelivered event for a terminal transaction is absorbed as a no-op.
const (
    TransactionPending   = "PENDING"
    TransactionCompleted = "COMPLETED"
    TransactionFailed    = "FAILED"
)

// Transaction models one credit-purchase attempt in the `transactions`
// table.  The ID is a UUID generated before the row exists so it can be
// handed to the payment provider as the idempotency key referenced by
// confirmation events.
//
// Fields:
//  ID          – UUID primary key, also the webhook idempotency key.
//  UserID      – owner of the purchase.
//  AmountCents – price charged by the provider.
//  Credits     – credit quantity applied on confirmation.
//  Status      – PENDING, COMPLETED or FAILED.
//  CheckoutRef – provider checkout session reference, NULL until created.
//  PaymentRef  – provider payment reference, NULL until confirmed.
//  CreatedAt   – timestamp of creation.
//  UpdatedAt   – timestamp of last update.
type Transaction struct {
    ID          string         // transactions.id
    UserID      uint64         // transactions.user_id
    AmountCents int64          // transactions.amount_cents
    Credits     int64          // transactions.credits
    Status      string         // transactions.status
    CheckoutRef sql.NullString // transactions.checkout_ref
    PaymentRef  sql.NullString // transactions.payment_ref
    CreatedAt   time.Time      // transactions.created_at
    UpdatedAt   time.Time      // transactions.updated_at
}
