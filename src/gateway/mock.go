package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type mockIntent struct {
	amount   int64
	currency string
	captured bool
	refunded bool
}

// MockGateway is an in-memory PaymentGateway used in tests and local
// development. It keeps intent state so capture/refund preconditions and
// idempotency behave like the real processor.
type MockGateway struct {
	mu      sync.Mutex
	intents map[string]*mockIntent
	seen    map[string]any

	// Injected failures, checked before any state change.
	FailAuthorize error
	FailCapture   error
	FailRefund    error
	FailTransfer  error

	AuthorizeCalls int
	CaptureCalls   int
	RefundCalls    int
	TransferCalls  int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		intents: make(map[string]*mockIntent),
		seen:    make(map[string]any),
	}
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) Authorize(ctx context.Context, req *AuthorizeRequest) (*AuthorizeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.AuthorizeCalls++
	if g.FailAuthorize != nil {
		return nil, g.FailAuthorize
	}
	if prev, ok := g.seen[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return prev.(*AuthorizeResult), nil
	}
	id := fmt.Sprintf("pi_mock_%s", uuid.New().String()[:8])
	g.intents[id] = &mockIntent{amount: req.Amount, currency: req.Currency}
	res := &AuthorizeResult{
		IntentID:     id,
		ClientSecret: id + "_secret",
	}
	if req.IdempotencyKey != "" {
		g.seen[req.IdempotencyKey] = res
	}
	return res, nil
}

func (g *MockGateway) Capture(ctx context.Context, intentID string, idempotencyKey string) (*CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CaptureCalls++
	if g.FailCapture != nil {
		return nil, g.FailCapture
	}
	if prev, ok := g.seen[idempotencyKey]; ok && idempotencyKey != "" {
		return prev.(*CaptureResult), nil
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, &GatewayError{Code: ErrIntentNotFound, Message: intentID}
	}
	if intent.captured {
		return nil, &GatewayError{Code: ErrAlreadyCaptured, Message: intentID}
	}
	intent.captured = true
	res := &CaptureResult{
		CaptureID:      intentID,
		AmountCaptured: intent.amount,
		Status:         "succeeded",
	}
	if idempotencyKey != "" {
		g.seen[idempotencyKey] = res
	}
	return res, nil
}

func (g *MockGateway) Refund(ctx context.Context, intentID string, reason string, idempotencyKey string) (*RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RefundCalls++
	if g.FailRefund != nil {
		return nil, g.FailRefund
	}
	if prev, ok := g.seen[idempotencyKey]; ok && idempotencyKey != "" {
		return prev.(*RefundResult), nil
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, &GatewayError{Code: ErrIntentNotFound, Message: intentID}
	}
	if !intent.captured || intent.refunded {
		return nil, &GatewayError{Code: ErrRefundFailed, Message: intentID}
	}
	intent.refunded = true
	res := &RefundResult{RefundID: fmt.Sprintf("re_mock_%s", uuid.New().String()[:8])}
	if idempotencyKey != "" {
		g.seen[idempotencyKey] = res
	}
	return res, nil
}

func (g *MockGateway) Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TransferCalls++
	if g.FailTransfer != nil {
		return nil, g.FailTransfer
	}
	if prev, ok := g.seen[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return prev.(*TransferResult), nil
	}
	res := &TransferResult{TransferID: fmt.Sprintf("tr_mock_%s", uuid.New().String()[:8])}
	if req.IdempotencyKey != "" {
		g.seen[req.IdempotencyKey] = res
	}
	return res, nil
}

// SeedIntent registers an already-authorized intent, mirroring a payment
// processed before the call under test.
func (g *MockGateway) SeedIntent(intentID string, amount int64, currency string, captured bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[intentID] = &mockIntent{amount: amount, currency: currency, captured: captured}
}
