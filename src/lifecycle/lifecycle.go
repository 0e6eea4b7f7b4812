package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"fixly/src/escrow"
	"fixly/src/gateway"
	"fixly/src/lib"
	"fixly/src/models"
	"fixly/src/types"

	"gorm.io/gorm"
)

// Controller is the single authority that mutates a booking's status and
// payment status together. Every transition is a conditional update guarded
// by the observed status, and every gateway call happens before the terminal
// store write so money and status never diverge silently.
type Controller struct {
	db *gorm.DB
	gw gateway.PaymentGateway
}

func NewController(db *gorm.DB, gw gateway.PaymentGateway) *Controller {
	return &Controller{db: db, gw: gw}
}

func (c *Controller) getBooking(tx *gorm.DB, id uint) (*models.Booking, error) {
	var booking models.Booking
	err := tx.
		Model(&models.Booking{}).
		Where("id = ?", id).
		First(&booking).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// transition performs the compare-and-swap status write. Zero rows affected
// after a valid pre-read means a concurrent request won the race.
func (c *Controller) transition(tx *gorm.DB, id uint, from []types.BookingStatus, to types.BookingStatus, updates map[string]any) error {
	res := tx.
		Model(&models.Booking{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConflictingTransitionError{BookingID: id, To: to}
	}
	return nil
}

// Accept moves a pending booking to confirmed. Provider only; no payment
// action.
func (c *Controller) Accept(ctx context.Context, bookingID uint, callerID uint) (*models.Booking, error) {
	booking, err := c.getBooking(c.db, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ProviderID != callerID {
		return nil, ErrNotParty
	}
	if booking.Status != types.BOOKING_PENDING {
		return nil, &InvalidTransitionError{From: booking.Status, To: types.BOOKING_CONFIRMED}
	}
	now := time.Now()
	err = c.db.Transaction(func(tx *gorm.DB) error {
		return c.transition(tx, bookingID, []types.BookingStatus{types.BOOKING_PENDING}, types.BOOKING_CONFIRMED, map[string]any{
			"status":       types.BOOKING_CONFIRMED,
			"confirmed_at": now,
		})
	})
	if err != nil {
		return nil, err
	}
	booking.Status = types.BOOKING_CONFIRMED
	booking.ConfirmedAt = &now
	return booking, nil
}

// Start moves a confirmed booking to in_progress when the provider marks the
// service started.
func (c *Controller) Start(ctx context.Context, bookingID uint, callerID uint) (*models.Booking, error) {
	booking, err := c.getBooking(c.db, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ProviderID != callerID {
		return nil, ErrNotParty
	}
	if booking.Status != types.BOOKING_CONFIRMED {
		return nil, &InvalidTransitionError{From: booking.Status, To: types.BOOKING_IN_PROGRESS}
	}
	now := time.Now()
	err = c.db.Transaction(func(tx *gorm.DB) error {
		return c.transition(tx, bookingID, []types.BookingStatus{types.BOOKING_CONFIRMED}, types.BOOKING_IN_PROGRESS, map[string]any{
			"status":     types.BOOKING_IN_PROGRESS,
			"started_at": now,
		})
	})
	if err != nil {
		return nil, err
	}
	booking.Status = types.BOOKING_IN_PROGRESS
	booking.StartedAt = &now
	return booking, nil
}

// Cancel moves a pending or confirmed booking to cancelled. If funds are
// held in escrow the refund must succeed before the status flips, so a
// cancellation can never strand the customer's money.
func (c *Controller) Cancel(ctx context.Context, bookingID uint, callerID uint, reason string) (*models.Booking, string, error) {
	booking, err := c.getBooking(c.db, bookingID)
	if err != nil {
		return nil, "", err
	}
	if callerID != booking.CustomerID && callerID != booking.ProviderID {
		return nil, "", ErrNotParty
	}
	if booking.Status != types.BOOKING_PENDING && booking.Status != types.BOOKING_CONFIRMED {
		return nil, "", &InvalidTransitionError{From: booking.Status, To: types.BOOKING_CANCELLED}
	}

	refundID := ""
	if booking.PaymentIntentId != nil && booking.PaymentStatus == types.PAYMENT_ESCROWED {
		key := fmt.Sprintf("booking:%d:refund", bookingID)
		res, err := c.gw.Refund(ctx, *booking.PaymentIntentId, reason, key)
		if err != nil {
			log.Printf("Refund failed for booking %d: %s\n", bookingID, err.Error())
			return nil, "", err
		}
		refundID = res.RefundID
	}

	now := time.Now()
	updates := map[string]any{
		"status":              types.BOOKING_CANCELLED,
		"cancelled_at":        now,
		"cancellation_reason": reason,
	}
	if refundID != "" {
		updates["payment_status"] = types.PAYMENT_REFUNDED
	}
	// The write pins the payment status observed at the pre-read: a capture
	// committing in between means the refund decision above is stale, so the
	// cancel must lose and be retried against the escrowed booking.
	err = c.db.Transaction(func(tx *gorm.DB) error {
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status IN ? AND payment_status = ?",
				bookingID,
				[]types.BookingStatus{types.BOOKING_PENDING, types.BOOKING_CONFIRMED},
				booking.PaymentStatus).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictingTransitionError{BookingID: bookingID, To: types.BOOKING_CANCELLED}
		}
		return nil
	})
	if err != nil {
		if refundID != "" {
			c.flagReconciliation(booking, "refund", refundID, err)
			return nil, "", &PersistenceError{
				BookingID:       bookingID,
				Operation:       "refund",
				PaymentIntentId: derefIntent(booking),
				GatewayRef:      refundID,
				Err:             err,
			}
		}
		return nil, "", err
	}
	booking.Status = types.BOOKING_CANCELLED
	booking.CancelledAt = &now
	booking.CancellationReason = reason
	if refundID != "" {
		booking.PaymentStatus = types.PAYMENT_REFUNDED
	}
	return booking, refundID, nil
}

// CaptureRequest carries the capture-deposit inputs. TotalAmount is captured
// in full; the deposit concept is informational metadata only.
type CaptureRequest struct {
	BookingID       uint
	PaymentIntentID string
	TotalAmount     int64
	ProviderAmount  int64
	PlatformFee     int64
}

// CaptureToEscrow captures the full authorized amount and writes the
// write-once escrow bookkeeping. A single full charge keeps the provider's
// payment from failing on a second attempt and holds the funds in true
// escrow until service delivery.
func (c *Controller) CaptureToEscrow(ctx context.Context, req *CaptureRequest) (*models.Booking, *gateway.CaptureResult, error) {
	booking, err := c.getBooking(c.db, req.BookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking.PaymentIntentId != nil && *booking.PaymentIntentId != req.PaymentIntentID {
		return nil, nil, ErrIntentMismatch
	}
	// A cancelled or completed booking never accepts funds: cancel already
	// finished without owing a refund, so capturing now would strand money.
	if booking.Status.Terminal() {
		return nil, nil, ErrBookingClosed
	}
	if booking.PaymentStatus != types.PAYMENT_PENDING || booking.EscrowPopulated() {
		return nil, nil, ErrAlreadyCaptured
	}
	if booking.TotalAmount != 0 && booking.TotalAmount != req.TotalAmount {
		return nil, nil, fmt.Errorf("capture amount %d does not match booking total %d", req.TotalAmount, booking.TotalAmount)
	}

	split, err := escrow.ComputeSplit(req.TotalAmount, req.PlatformFee)
	if err != nil {
		return nil, nil, err
	}
	if req.ProviderAmount != 0 && req.ProviderAmount != split.ProviderAmount {
		return nil, nil, fmt.Errorf("%w: provider amount %d, expected %d", escrow.ErrInvalidSplit, req.ProviderAmount, split.ProviderAmount)
	}

	key := fmt.Sprintf("booking:%d:capture", req.BookingID)
	capture, err := c.gw.Capture(ctx, req.PaymentIntentID, key)
	if err != nil {
		return nil, nil, err
	}
	if err := split.Verify(capture.AmountCaptured); err != nil {
		c.flagReconciliation(booking, "capture", capture.CaptureID, err)
		return nil, nil, err
	}

	now := time.Now()
	var affected int64
	err = c.db.Transaction(func(tx *gorm.DB) error {
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND payment_status = ? AND status NOT IN ?",
				req.BookingID, types.PAYMENT_PENDING,
				[]types.BookingStatus{types.BOOKING_CANCELLED, types.BOOKING_COMPLETED}).
			Updates(map[string]any{
				"payment_status":           types.PAYMENT_ESCROWED,
				"payment_intent_id":        req.PaymentIntentID,
				"captured_amount":          capture.AmountCaptured,
				"amount_held_for_provider": split.ProviderAmount,
				"platform_fee_held":        split.PlatformFeeAmount,
				"captured_at":              now,
			})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		c.flagReconciliation(booking, "capture", capture.CaptureID, err)
		return nil, nil, &PersistenceError{
			BookingID:       req.BookingID,
			Operation:       "capture",
			PaymentIntentId: req.PaymentIntentID,
			GatewayRef:      capture.CaptureID,
			Err:             err,
		}
	}
	if affected == 0 {
		// Either a concurrent capture won and already recorded the funds
		// (the idempotency key made the gateway side a replay), or the
		// booking reached a terminal status after the gateway call and the
		// captured funds are recorded nowhere.
		current, rerr := c.getBooking(c.db, req.BookingID)
		if rerr == nil && current.PaymentStatus == types.PAYMENT_ESCROWED {
			return nil, nil, ErrAlreadyCaptured
		}
		cause := fmt.Errorf("booking %d changed state during capture", req.BookingID)
		c.flagReconciliation(booking, "capture", capture.CaptureID, cause)
		return nil, nil, &PersistenceError{
			BookingID:       req.BookingID,
			Operation:       "capture",
			PaymentIntentId: req.PaymentIntentID,
			GatewayRef:      capture.CaptureID,
			Err:             cause,
		}
	}

	booking.PaymentStatus = types.PAYMENT_ESCROWED
	booking.PaymentIntentId = &req.PaymentIntentID
	booking.CapturedAmount = capture.AmountCaptured
	booking.AmountHeldForProvider = split.ProviderAmount
	booking.PlatformFeeHeld = split.PlatformFeeAmount
	booking.CapturedAt = &now
	return booking, capture, nil
}

// Complete settles an in_progress booking: the provider's share is
// transferred to their connected account and the platform fee is retained.
func (c *Controller) Complete(ctx context.Context, bookingID uint, callerID uint) (*models.Booking, string, error) {
	booking, err := c.getBooking(c.db, bookingID)
	if err != nil {
		return nil, "", err
	}
	if booking.ProviderID != callerID {
		return nil, "", ErrNotParty
	}
	if booking.Status != types.BOOKING_IN_PROGRESS {
		return nil, "", &InvalidTransitionError{From: booking.Status, To: types.BOOKING_COMPLETED}
	}
	if !booking.EscrowPopulated() {
		return nil, "", ErrEscrowNotPopulated
	}

	var provider models.Profile
	err = c.db.
		Model(&models.Profile{}).
		Where("id = ?", booking.ProviderID).
		First(&provider).
		Error
	if err != nil {
		return nil, "", err
	}
	if provider.StripeAccountId == nil || *provider.StripeAccountId == "" {
		return nil, "", ErrProviderNotPayable
	}

	transfer, err := c.gw.Transfer(ctx, &gateway.TransferRequest{
		DestinationAccount: *provider.StripeAccountId,
		Amount:             booking.AmountHeldForProvider,
		Currency:           booking.Currency,
		IdempotencyKey:     fmt.Sprintf("booking:%d:transfer", bookingID),
	})
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	err = c.db.Transaction(func(tx *gorm.DB) error {
		return c.transition(tx, bookingID, []types.BookingStatus{types.BOOKING_IN_PROGRESS}, types.BOOKING_COMPLETED, map[string]any{
			"status":         types.BOOKING_COMPLETED,
			"payment_status": types.PAYMENT_PAID,
			"completed_at":   now,
		})
	})
	if err != nil {
		c.flagReconciliation(booking, "transfer", transfer.TransferID, err)
		return nil, "", &PersistenceError{
			BookingID:       bookingID,
			Operation:       "transfer",
			PaymentIntentId: derefIntent(booking),
			GatewayRef:      transfer.TransferID,
			Err:             err,
		}
	}
	booking.Status = types.BOOKING_COMPLETED
	booking.PaymentStatus = types.PAYMENT_PAID
	booking.CompletedAt = &now
	return booking, transfer.TransferID, nil
}

// ExpireStalePending cancels pending bookings that sat unpaid past the TTL.
// Only bookings that never captured funds qualify, so no refund is owed.
func (c *Controller) ExpireStalePending(ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl)
	var affected int64
	err := c.db.Transaction(func(tx *gorm.DB) error {
		res := tx.
			Model(&models.Booking{}).
			Where("status = ? AND payment_status = ? AND created_at < ?", types.BOOKING_PENDING, types.PAYMENT_PENDING, cutoff).
			Updates(map[string]any{
				"status":              types.BOOKING_CANCELLED,
				"cancelled_at":        time.Now(),
				"cancellation_reason": "expired",
			})
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

// flagReconciliation durably records an orphaned gateway operation. Money
// has already moved when this runs; the record is worked off manually, never
// retried automatically.
func (c *Controller) flagReconciliation(booking *models.Booking, operation string, gatewayRef string, cause error) {
	log.Printf("[RECONCILE] booking=%d op=%s intent=%s ref=%s cause=%s\n",
		booking.ID, operation, derefIntent(booking), gatewayRef, cause.Error())

	entry := models.ReconciliationLog{
		BookingID:       booking.ID,
		Operation:       operation,
		PaymentIntentId: derefIntent(booking),
		GatewayRef:      gatewayRef,
		Amount:          booking.TotalAmount,
		Detail:          cause.Error(),
	}
	if err := c.db.Create(&entry).Error; err != nil {
		log.Printf("[RECONCILE] Could not persist reconciliation log for booking %d: %s\n", booking.ID, err.Error())
	}

	payload := map[string]any{
		"booking_id":        booking.ID,
		"operation":         operation,
		"payment_intent_id": derefIntent(booking),
		"gateway_ref":       gatewayRef,
		"detail":            cause.Error(),
	}
	apiEnv := os.Getenv("API_ENV")
	switch apiEnv {
	case "test", "production":
		if err := lib.SQSSendMessage("EscrowReconciliation", payload); err != nil {
			log.Printf("[RECONCILE] Error publishing to queue: %s\n", err.Error())
		}
	case "local":
		if err := lib.KafkaProduceMessage("EscrowReconciliationProducer", "EscrowReconciliation", payload); err != nil {
			log.Printf("[RECONCILE] Error publishing to broker: %s\n", err.Error())
		}
	}
}

func derefIntent(b *models.Booking) string {
	if b.PaymentIntentId == nil {
		return ""
	}
	return *b.PaymentIntentId
}
