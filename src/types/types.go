package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Metadata map[string]any

type BookingStatus string

const (
	BOOKING_PENDING     BookingStatus = "pending"
	BOOKING_CONFIRMED   BookingStatus = "confirmed"
	BOOKING_IN_PROGRESS BookingStatus = "in_progress"
	BOOKING_COMPLETED   BookingStatus = "completed"
	BOOKING_CANCELLED   BookingStatus = "cancelled"
)

// Terminal reports whether no further status mutation is permitted.
func (s BookingStatus) Terminal() bool {
	return s == BOOKING_COMPLETED || s == BOOKING_CANCELLED
}

type PaymentStatus string

const (
	PAYMENT_PENDING  PaymentStatus = "pending"
	PAYMENT_ESCROWED PaymentStatus = "funds_held_in_escrow"
	PAYMENT_PAID     PaymentStatus = "paid"
	PAYMENT_REFUNDED PaymentStatus = "refunded"
	PAYMENT_FAILED   PaymentStatus = "failed"
)

type UrgencyLevel string

const (
	URGENCY_LOW    UrgencyLevel = "low"
	URGENCY_MEDIUM UrgencyLevel = "medium"
	URGENCY_HIGH   UrgencyLevel = "high"
)

type SubscriptionStatus string

const (
	SUBSCRIPTION_ACTIVE    SubscriptionStatus = "active"
	SUBSCRIPTION_EXPIRED   SubscriptionStatus = "expired"
	SUBSCRIPTION_CANCELLED SubscriptionStatus = "cancelled"
)

const PLAN_SOS = "sos"

type Role string

const (
	ROLE_CUSTOMER Role = "customer"
	ROLE_PROVIDER Role = "provider"
)

type VerificationStatus string

const (
	VERIFICATION_PENDING  VerificationStatus = "pending"
	VERIFICATION_VERIFIED VerificationStatus = "verified"
	VERIFICATION_REJECTED VerificationStatus = "rejected"
)

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	UID   string `json:"uid"`
	jwt.RegisteredClaims
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type CreatePaymentIntentRequestBody struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	DepositAmount int64  `json:"deposit_amount" binding:"required,gt=0"`
	Currency      string `json:"currency" binding:"required,len=3"`
	ServiceID     uint   `json:"service_id" binding:"required"`
	ProviderID    uint   `json:"provider_id" binding:"required"`
	BookingID     *uint  `json:"booking_id,omitempty"`
}

type CaptureDepositRequestBody struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
	TotalAmount     int64  `json:"total_amount" binding:"required,gt=0"`
	ProviderAmount  int64  `json:"provider_amount" binding:"required,gt=0"`
	PlatformFee     int64  `json:"platform_fee" binding:"gte=0"`
	BookingID       uint   `json:"booking_id" binding:"required"`
}

type CancelBookingRequestBody struct {
	Reason string `json:"reason,omitempty"`
}

type CreateSOSBookingRequestBody struct {
	ProviderID           uint   `json:"provider_id" binding:"required"`
	CategoryID           uint   `json:"category_id" binding:"required"`
	EmergencyDescription string `json:"emergency_description" binding:"required"`
	ServiceLocation      string `json:"service_location" binding:"required"`
	UrgencyLevel         string `json:"urgency_level" binding:"required,urgency"`
	PaymentIntentID      string `json:"payment_intent_id" binding:"required"`
	InstantConfirmation  bool   `json:"instant_confirmation,omitempty"`
}

type CreateBookingRequestBody struct {
	ProviderID  uint   `json:"provider_id" binding:"required"`
	ServiceID   uint   `json:"service_id" binding:"required"`
	BookingDate string `json:"booking_date" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	StartTime   string `json:"start_time" binding:"required"`
	EndTime     *string `json:"end_time,omitempty"`
	BaseAmount  int64  `json:"base_amount" binding:"required,gt=0"`
	PlatformFee int64  `json:"platform_fee" binding:"gte=0"`
	Location    string `json:"location,omitempty"`
}
