package models

import (
	"fixly/src/types"
	"time"
)

type Profile struct {
	ID                 uint                     `gorm:"primarykey" json:"id"`
	UID                string                   `json:"uid,omitempty"`
	Name               string                   `json:"name,omitempty"`
	Email              string                   `json:"email,omitempty"`
	Phone              string                   `json:"phone,omitempty"`
	Role               types.Role               `gorm:"default:'customer'" json:"role,omitempty"`
	VerificationStatus types.VerificationStatus `gorm:"default:'pending'" json:"verification_status,omitempty"`
	VerifiedAt         *time.Time               `json:"verified_at,omitempty"`
	PaymentVerified    bool                     `json:"payment_verified,omitempty"`
	StripeAccountId    *string                  `json:"-"`
	StripeCustomerId   *string                  `json:"-"`
	Availability       *WeeklySchedule          `gorm:"type:jsonb" json:"availability,omitempty"`
	Metadata           *types.Metadata          `gorm:"type:jsonb" json:"-"`

	Services      []Service      `gorm:"foreignKey:provider_id" json:"services,omitempty"`
	Subscriptions []Subscription `gorm:"foreignKey:customer_id" json:"subscriptions,omitempty"`

	types.Timestamps
}
