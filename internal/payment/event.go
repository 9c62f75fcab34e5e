// Package payment processes signed webhook events from the payment
// provider and applies them to the transaction state machine.  The
// provider delivers at-least-once, so every path in this package must be
// safe under redelivery; the terminal-state check on the transaction row
// is the sole dedup mechanism.
package payment

import (
    "encoding/json"
    "errors"
    "fmt"
    "strings"
)

// Event type strings accepted from the provider.  Anything else is
// rejected at the boundary.
const (
    EventConfirmed = "payment.confirmed"
    EventDenied    = "payment.denied"
)

// Event is the decoded, closed representation of a webhook payload: a
// confirmation carries the provider's payment reference, a denial does
// not.  Exactly one shape per Type; there is no loosely-typed passthrough.
type Event struct {
    Type          string // EventConfirmed or EventDenied
    TransactionID string // the idempotency key issued at checkout
    PaymentRef    string // provider payment reference, confirmations only
}

// ErrBadEvent is returned for payloads that do not decode into a known
// event shape.  Handlers answer these with 400 so the provider surfaces
// the integration error instead of retrying forever.
var ErrBadEvent = errors.New("unrecognized payment event")

// wireEvent mirrors the provider's JSON envelope.
type wireEvent struct {
    Type          string `json:"type"`
    TransactionID string `json:"transaction_id"`
    PaymentRef    string `json:"payment_ref"`
}

// DecodeEvent parses and validates a webhook body.  Unknown types,
// missing transaction IDs and confirmations without a payment reference
// are all ErrBadEvent: a payload the provider deviates on is rejected
// outright rather than pattern-matched into something plausible.
func DecodeEvent(body []byte) (Event, error) {
    var w wireEvent
    if err := json.Unmarshal(body, &w); err != nil {
        return Event{}, fmt.Errorf("%w: %v", ErrBadEvent, err)
    }
    w.TransactionID = strings.TrimSpace(w.TransactionID)
    if w.TransactionID == "" {
        return Event{}, fmt.Errorf("%w: missing transaction_id", ErrBadEvent)
    }
    switch w.Type {
    case EventConfirmed:
        if strings.TrimSpace(w.PaymentRef) == "" {
            return Event{}, fmt.Errorf("%w: confirmation without payment_ref", ErrBadEvent)
        }
        return Event{Type: EventConfirmed, TransactionID: w.TransactionID, PaymentRef: w.PaymentRef}, nil
    case EventDenied:
        return Event{Type: EventDenied, TransactionID: w.TransactionID}, nil
    default:
        return Event{}, fmt.Errorf("%w: type %q", ErrBadEvent, w.Type)
    }
}
