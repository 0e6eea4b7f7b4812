package models

import (
	"fixly/src/types"
	"time"
)

type Subscription struct {
	ID         uint                     `gorm:"primarykey" json:"id"`
	CustomerID uint                     `json:"customer_id,omitempty"`
	PlanType   string                   `json:"plan_type,omitempty"`
	Status     types.SubscriptionStatus `gorm:"default:'active'" json:"status,omitempty"`
	ExpiresAt  *time.Time               `json:"expires_at,omitempty"`

	types.Timestamps
}
