package lifecycle

import (
	"errors"
	"fmt"

	"fixly/src/types"
)

var (
	ErrNotFound             = errors.New("booking not found")
	ErrBookingClosed        = errors.New("booking is in a terminal status")
	ErrNotParty             = errors.New("caller is not a party to the booking")
	ErrAlreadyCaptured      = errors.New("booking funds already captured")
	ErrEscrowNotPopulated   = errors.New("booking has no captured escrow")
	ErrIntentMismatch       = errors.New("payment intent does not belong to booking")
	ErrProviderNotPayable   = errors.New("provider has no connected payout account")
	ErrNoActiveSubscription = errors.New("no active sos subscription")
	ErrProviderUnavailable  = errors.New("no eligible sos provider service")
	ErrBookingInsertFailed  = errors.New("booking insert failed")
)

// InvalidTransitionError is returned when a status precondition is not met.
type InvalidTransitionError struct {
	From types.BookingStatus
	To   types.BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// ConflictingTransitionError means a concurrent request won the conditional
// update. The caller may re-fetch the booking and retry once.
type ConflictingTransitionError struct {
	BookingID uint
	To        types.BookingStatus
}

func (e *ConflictingTransitionError) Error() string {
	return fmt.Sprintf("conflicting transition on booking %d to %s", e.BookingID, e.To)
}

// PersistenceError is the dangerous case: the gateway call succeeded, money
// moved, and the follow-up store write failed. Carries enough detail for
// manual reconciliation.
type PersistenceError struct {
	BookingID       uint
	Operation       string
	PaymentIntentId string
	GatewayRef      string
	Err             error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store write failed after %s on booking %d (intent=%s ref=%s): %v",
		e.Operation, e.BookingID, e.PaymentIntentId, e.GatewayRef, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
