package payment

import (
    "context"
    "errors"
    "log"

    "github.com/my-roadmap/roadmap-api/internal/model"
    "github.com/my-roadmap/roadmap-api/internal/repository"
)

// Store is the persistence surface the processor drives.  Confirm and
// Deny are atomic conditional transitions: they apply only when the
// transaction is currently PENDING (Confirm also credits the owner's
// balance in the same unit) and report whether they did.  Status is
// consulted only after a transition did not apply, to classify the
// delivery.  repository.TransactionRepo implements it; tests use an
// in-memory fake.
type Store interface {
    Confirm(ctx context.Context, txID, paymentRef string) (bool, error)
    Deny(ctx context.Context, txID string) (bool, error)
    Status(ctx context.Context, txID string) (string, error)
}

// ErrMismatch indicates a confirmation or denial referencing a
// transaction this system never issued, or one that already settled the
// other way.  It is an anomaly to log, not a condition to retry: the
// handler still answers 200 so the provider stops redelivering.
var ErrMismatch = errors.New("payment confirmation mismatch")

// Processor applies decoded webhook events to the transaction state
// machine.
type Processor struct {
    store Store
}

func NewProcessor(store Store) *Processor { return &Processor{store: store} }

// Apply processes one event.  The contract, per event type:
//
// Confirmed: PENDING→COMPLETED plus the credit increment, atomically.  A
// redelivery that finds the transaction already COMPLETED is a no-op
// success.  A transaction that is FAILED or unknown is ErrMismatch.
//
// Denied: PENDING→FAILED with no balance change.  Redelivery onto FAILED
// is a no-op success; COMPLETED or unknown is ErrMismatch.  A settled
// payment cannot be un-settled by a late denial.
//
// Store failures are returned as-is; the provider will redeliver and the
// conditional transition makes the retry safe.
func (p *Processor) Apply(ctx context.Context, ev Event) error {
    switch ev.Type {
    case EventConfirmed:
        applied, err := p.store.Confirm(ctx, ev.TransactionID, ev.PaymentRef)
        if err != nil {
            return err
        }
        if applied {
            return nil
        }
        return p.classify(ctx, ev.TransactionID, model.TransactionCompleted)
    case EventDenied:
        applied, err := p.store.Deny(ctx, ev.TransactionID)
        if err != nil {
            return err
        }
        if applied {
            return nil
        }
        return p.classify(ctx, ev.TransactionID, model.TransactionFailed)
    default:
        return ErrBadEvent
    }
}

// classify decides whether a non-applied transition was a harmless
// duplicate (the row is already in the state this event drives toward)
// or a mismatch anomaly.
func (p *Processor) classify(ctx context.Context, txID, wantState string) error {
    status, err := p.store.Status(ctx, txID)
    if err == repository.ErrTransactionNotFound {
        log.Printf("payment: event references unknown transaction %s", txID)
        return ErrMismatch
    }
    if err != nil {
        return err
    }
    if status == wantState {
        // Duplicate delivery of an already-settled event.
        return nil
    }
    log.Printf("payment: event for transaction %s in terminal state %s ignored", txID, status)
    return ErrMismatch
}
