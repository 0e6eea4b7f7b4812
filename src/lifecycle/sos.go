package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fixly/src/config"
	"fixly/src/lib"
	"fixly/src/models"
	"fixly/src/types"

	"gorm.io/gorm"
)

// SOSRequest is the instant-confirmation emergency entry point. The payment
// intent must already be authorized before this call; the SOS path never
// creates one itself.
type SOSRequest struct {
	CustomerID           uint
	ProviderID           uint
	CategoryID           uint
	EmergencyDescription string
	ServiceLocation      string
	UrgencyLevel         types.UrgencyLevel
	PaymentIntentID      string
}

// EstimatedArrival maps urgency to an arrival window. Policy, not physics.
func EstimatedArrival(level types.UrgencyLevel, from time.Time) time.Time {
	switch level {
	case types.URGENCY_HIGH:
		return from.Add(10 * time.Minute)
	case types.URGENCY_MEDIUM:
		return from.Add(20 * time.Minute)
	default:
		return from.Add(30 * time.Minute)
	}
}

// CreateSOSBooking inserts a booking directly in confirmed status, skipping
// provider accept, for customers holding an active SOS subscription.
func (c *Controller) CreateSOSBooking(ctx context.Context, req *SOSRequest) (*models.Booking, error) {
	ok, err := c.hasActiveSOSSubscription(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoActiveSubscription
	}

	service, err := c.findSOSService(req.ProviderID, req.CategoryID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	eta := EstimatedArrival(req.UrgencyLevel, now)
	base := service.BasePrice
	fee := base * config.GetPlatformFeePercent() / 100

	booking := models.Booking{
		CustomerID:           req.CustomerID,
		ProviderID:           req.ProviderID,
		ServiceID:            service.ID,
		BookingDate:          now,
		StartTime:            now.Format("15:04"),
		BaseAmount:           base,
		PlatformFee:          fee,
		TotalAmount:          base + fee,
		Currency:             service.Currency,
		Status:               types.BOOKING_CONFIRMED,
		PaymentStatus:        types.PAYMENT_PENDING,
		PaymentIntentId:      &req.PaymentIntentID,
		SOSBooking:           true,
		UrgencyLevel:         string(req.UrgencyLevel),
		EmergencyDescription: req.EmergencyDescription,
		ServiceLocation:      req.ServiceLocation,
		EstimatedArrival:     &eta,
		RequiresConfirmation: false,
		ConfirmedAt:          &now,
	}
	err = c.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&booking).Error
	})
	if err != nil {
		log.Printf("Could not insert SOS booking for customer %d: %s\n", req.CustomerID, err.Error())
		return nil, fmt.Errorf("%w: %s", ErrBookingInsertFailed, err.Error())
	}
	return &booking, nil
}

func (c *Controller) hasActiveSOSSubscription(ctx context.Context, customerID uint) (bool, error) {
	cacheKey := fmt.Sprintf("sos_sub:%d", customerID)
	rd := lib.GetRedisClient()
	if rd != nil {
		if val, err := rd.Get(ctx, cacheKey).Result(); err == nil && val == "1" {
			return true, nil
		}
	}

	var count int64
	err := c.db.
		Model(&models.Subscription{}).
		Where("customer_id = ? AND plan_type = ? AND status = ?", customerID, types.PLAN_SOS, types.SUBSCRIPTION_ACTIVE).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	if count > 0 && rd != nil {
		if err := rd.Set(ctx, cacheKey, "1", 5*time.Minute).Err(); err != nil {
			log.Printf("Error caching entitlement for customer %d: %s\n", customerID, err.Error())
		}
	}
	return count > 0, nil
}

func (c *Controller) findSOSService(providerID uint, categoryID uint) (*models.Service, error) {
	var service models.Service
	err := c.db.
		Model(&models.Service{}).
		Where("provider_id = ? AND category_id = ? AND sos_eligible = ? AND active = ?", providerID, categoryID, true, true).
		Preload("Provider").
		First(&service).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderUnavailable
		}
		return nil, err
	}
	if service.Provider == nil || service.Provider.VerificationStatus != types.VERIFICATION_VERIFIED {
		return nil, ErrProviderUnavailable
	}
	return &service, nil
}
