package models

import (
	"fixly/src/types"
	"time"
)

// Booking is the central entity. Amounts are integer minor currency units
// and total_amount = base_amount + platform_fee. The escrow fields are
// written once at capture time and never recomputed.
type Booking struct {
	ID         uint `gorm:"primarykey" json:"id"`
	CustomerID uint `json:"customer_id,omitempty"`
	ProviderID uint `json:"provider_id,omitempty"`
	ServiceID  uint `json:"service_id,omitempty"`

	BookingDate time.Time `json:"booking_date,omitempty"`
	StartTime   string    `json:"start_time,omitempty"`
	EndTime     *string   `json:"end_time,omitempty"`

	BaseAmount  int64  `json:"base_amount,omitempty"`
	PlatformFee int64  `json:"platform_fee,omitempty"`
	TotalAmount int64  `json:"total_amount,omitempty"`
	Currency    string `json:"currency,omitempty"`

	Status        types.BookingStatus `gorm:"default:'pending'" json:"status,omitempty"`
	PaymentStatus types.PaymentStatus `gorm:"default:'pending'" json:"payment_status,omitempty"`

	PaymentIntentId *string `json:"payment_intent_id,omitempty"`

	CapturedAmount        int64      `json:"captured_amount,omitempty"`
	AmountHeldForProvider int64      `json:"amount_held_for_provider,omitempty"`
	PlatformFeeHeld       int64      `json:"platform_fee_held,omitempty"`
	CapturedAt            *time.Time `json:"captured_at,omitempty"`

	SOSBooking           bool       `gorm:"column:sos_booking" json:"sos_booking,omitempty"`
	UrgencyLevel         string     `json:"urgency_level,omitempty"`
	EmergencyDescription string     `json:"emergency_description,omitempty"`
	ServiceLocation      string     `json:"service_location,omitempty"`
	EstimatedArrival     *time.Time `json:"estimated_arrival,omitempty"`
	// No column default: a false value written by the instant-confirmation
	// path must land as false, and gorm skips zero values for defaulted
	// columns on insert.
	RequiresConfirmation bool `json:"requires_confirmation"`

	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`

	Metadata types.JSONB `gorm:"type:jsonb" json:"metadata,omitempty"`

	Customer *Profile `gorm:"foreignKey:customer_id" json:"customer,omitempty"`
	Provider *Profile `gorm:"foreignKey:provider_id" json:"provider,omitempty"`
	Service  *Service `gorm:"foreignKey:service_id" json:"service,omitempty"`

	types.Timestamps
}

// EscrowPopulated reports whether the capture bookkeeping has been written.
func (b *Booking) EscrowPopulated() bool {
	return b.CapturedAt != nil && b.CapturedAmount > 0
}
