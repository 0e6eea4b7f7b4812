package models

import (
	"fixly/src/types"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type Service struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	ProviderID uint   `json:"provider_id,omitempty"`
	CategoryID uint   `json:"category_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Slug       string `gorm:"index" json:"slug,omitempty"`
	About      string `json:"about,omitempty"`
	BasePrice  int64  `json:"base_price,omitempty"`
	Currency   string `json:"currency,omitempty"`
	SOSEligible bool  `gorm:"column:sos_eligible" json:"sos_eligible,omitempty"`
	Active     bool   `gorm:"default:true" json:"active,omitempty"`

	Provider *Profile `gorm:"foreignKey:provider_id" json:"provider,omitempty"`

	types.Timestamps
}

func (s *Service) BeforeSave(tx *gorm.DB) error {
	if s.Slug == "" && s.Name != "" {
		s.Slug = slug.Make(s.Name)
	}
	return nil
}
