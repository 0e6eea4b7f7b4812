package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// PaymentGateway translates booking-domain intents into calls against the
// card-payment processor. Every mutating call takes an idempotency key
// derived from the booking id so retried requests never double-charge or
// double-refund.
type PaymentGateway interface {
	// Authorize creates a payment intent with manual capture. The hold does
	// not move funds until Capture.
	Authorize(ctx context.Context, req *AuthorizeRequest) (*AuthorizeResult, error)

	// Capture captures the full authorized amount into platform escrow.
	Capture(ctx context.Context, intentID string, idempotencyKey string) (*CaptureResult, error)

	// Refund returns the full captured amount to the customer.
	Refund(ctx context.Context, intentID string, reason string, idempotencyKey string) (*RefundResult, error)

	// Transfer pays the provider their share at settlement.
	Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error)

	Name() string
}

type AuthorizeRequest struct {
	Amount         int64
	Currency       string
	CustomerRef    string
	Metadata       map[string]string
	IdempotencyKey string
}

type AuthorizeResult struct {
	IntentID     string
	ClientSecret string
}

type CaptureResult struct {
	CaptureID      string
	AmountCaptured int64
	Status         string
}

type RefundResult struct {
	RefundID string
}

type TransferRequest struct {
	DestinationAccount string
	Amount             int64
	Currency           string
	IdempotencyKey     string
}

type TransferResult struct {
	TransferID string
}

type ErrorCode string

const (
	ErrDeclined        ErrorCode = "declined"
	ErrIntentNotFound  ErrorCode = "intent_not_found"
	ErrAlreadyCaptured ErrorCode = "already_captured"
	ErrRefundFailed    ErrorCode = "refund_failed"
	ErrConfig          ErrorCode = "config"
	ErrTimeout         ErrorCode = "timeout"
	ErrUnknown         ErrorCode = "unknown"
)

// GatewayError is the gateway-agnostic error type every implementation
// normalizes processor failures into.
type GatewayError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("gateway: %s", e.Code)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is a GatewayError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// IsTimeout reports whether the gateway call hit its bounded deadline.
// Timeouts are surfaced distinctly so callers can decide on retry; only
// capture and refund are safe to retry since they carry idempotency keys.
func IsTimeout(err error) bool {
	return IsCode(err, ErrTimeout)
}

// FromEnv selects the configured gateway implementation. The mock gateway
// backs local development and tests.
func FromEnv() PaymentGateway {
	if os.Getenv("PAYMENT_GATEWAY") == "mock" {
		return NewMockGateway()
	}
	return NewStripeGateway()
}
