package gateway

import (
	"context"
	"errors"
	"fixly/src/config"
	"fixly/src/lib"
	"log"
	"os"

	"github.com/stripe/stripe-go/v82"
)

// StripeGateway implements PaymentGateway against the Stripe API using the
// shared client from lib. Authorization always uses manual capture so funds
// are held, not moved, until the booking's escrow capture.
type StripeGateway struct{}

func NewStripeGateway() *StripeGateway {
	return &StripeGateway{}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) checkConfig() error {
	if os.Getenv("STRIPE_SECRET_KEY") == "" {
		return &GatewayError{Code: ErrConfig, Message: "missing STRIPE_SECRET_KEY"}
	}
	return nil
}

func (g *StripeGateway) Authorize(ctx context.Context, req *AuthorizeRequest) (*AuthorizeResult, error) {
	if err := g.checkConfig(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, config.GetGatewayTimeout())
	defer cancel()

	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(req.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Metadata:      req.Metadata,
	}
	if req.CustomerRef != "" {
		params.Customer = stripe.String(req.CustomerRef)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	sc := lib.GetStripeClient()
	pi, err := sc.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, normalizeError("authorize", err)
	}
	log.Printf("[Stripe] Authorized PaymentIntent %s for %d %s\n", pi.ID, pi.Amount, pi.Currency)
	return &AuthorizeResult{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

func (g *StripeGateway) Capture(ctx context.Context, intentID string, idempotencyKey string) (*CaptureResult, error) {
	if err := g.checkConfig(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, config.GetGatewayTimeout())
	defer cancel()

	// Full capture. Omitting AmountToCapture makes Stripe capture the whole
	// authorized amount, which is the escrow model this platform runs on.
	params := &stripe.PaymentIntentCaptureParams{}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	sc := lib.GetStripeClient()
	pi, err := sc.V1PaymentIntents.Capture(ctx, intentID, params)
	if err != nil {
		return nil, normalizeError("capture", err)
	}
	log.Printf("[Stripe] Captured PaymentIntent %s: %d %s\n", pi.ID, pi.AmountReceived, pi.Status)
	return &CaptureResult{
		CaptureID:      pi.ID,
		AmountCaptured: pi.AmountReceived,
		Status:         string(pi.Status),
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, reason string, idempotencyKey string) (*RefundResult, error) {
	if err := g.checkConfig(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, config.GetGatewayTimeout())
	defer cancel()

	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(intentID),
	}
	if reason != "" {
		params.Reason = stripe.String(reason)
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	sc := lib.GetStripeClient()
	rf, err := sc.V1Refunds.Create(ctx, params)
	if err != nil {
		return nil, normalizeError("refund", err)
	}
	log.Printf("[Stripe] Refunded PaymentIntent %s: %s\n", intentID, rf.ID)
	return &RefundResult{RefundID: rf.ID}, nil
}

func (g *StripeGateway) Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	if err := g.checkConfig(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, config.GetGatewayTimeout())
	defer cancel()

	params := &stripe.TransferCreateParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.DestinationAccount),
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	sc := lib.GetStripeClient()
	tr, err := sc.V1Transfers.Create(ctx, params)
	if err != nil {
		return nil, normalizeError("transfer", err)
	}
	log.Printf("[Stripe] Transferred %d %s to %s: %s\n", req.Amount, req.Currency, req.DestinationAccount, tr.ID)
	return &TransferResult{TransferID: tr.ID}, nil
}

func normalizeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{Code: ErrTimeout, Message: op + " timed out", Err: err}
	}
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		switch sErr.Code {
		case stripe.ErrorCodeCardDeclined:
			return &GatewayError{Code: ErrDeclined, Message: sErr.Msg, Err: err}
		case stripe.ErrorCodeResourceMissing:
			return &GatewayError{Code: ErrIntentNotFound, Message: sErr.Msg, Err: err}
		case stripe.ErrorCodePaymentIntentUnexpectedState:
			return &GatewayError{Code: ErrAlreadyCaptured, Message: sErr.Msg, Err: err}
		case stripe.ErrorCodeChargeAlreadyRefunded:
			return &GatewayError{Code: ErrRefundFailed, Message: sErr.Msg, Err: err}
		}
		return &GatewayError{Code: ErrUnknown, Message: sErr.Msg, Err: err}
	}
	return &GatewayError{Code: ErrUnknown, Message: err.Error(), Err: err}
}
