package models

import (
	"fixly/src/types"

	"github.com/google/uuid"
)

// ReconciliationLog records a gateway operation whose follow-up store write
// failed. Money has already moved when one of these rows exists, so they are
// worked off manually, never retried automatically.
type ReconciliationLog struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	BookingID       uint   `json:"booking_id,omitempty"`
	Operation       string `json:"operation,omitempty"`
	PaymentIntentId string `json:"payment_intent_id,omitempty"`
	GatewayRef      string `json:"gateway_ref,omitempty"`
	Amount          int64  `json:"amount,omitempty"`
	Detail          string `json:"detail,omitempty"`
	Resolved        bool   `json:"resolved,omitempty"`

	types.Timestamps
}
