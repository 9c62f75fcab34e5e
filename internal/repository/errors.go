// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrInsufficientCredits indicates that a debit precondition
// failed and no partial state was created, while ErrTransactionNotFound
// signals that a payment event references a purchase this system never
// issued.
package repository

import "errors"

// ErrEmailExists is returned when registration collides with an
// existing account. Handlers should translate this into an HTTP 409
// response.
var ErrEmailExists = errors.New("email already exists")

// ErrInsufficientCredits is returned when a roadmap debit finds a zero
// balance. The debit and the roadmap insert are applied together or not
// at all; when this error is returned nothing was written. Handlers
// should translate this into an HTTP 402 response.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrTransactionNotFound is returned when a transaction lookup matches
// no row. For webhook processing this indicates an upstream
// data-integrity problem rather than a client error.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrRoadmapNotFound is returned when a roadmap lookup matches no row
// owned by the requesting user. Handlers should translate this into an
// HTTP 404 response.
var ErrRoadmapNotFound = errors.New("roadmap not found")
