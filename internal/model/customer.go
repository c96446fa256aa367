package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Customer struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string    `gorm:"not null" json:"name"`
	Email          *string   `json:"email,omitempty"`
	// BirthDate drives the yearly birthday bonus; only month and day are used.
	BirthDate      *time.Time      `gorm:"type:date" json:"birth_date,omitempty"`
	TotalPurchases decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_purchases"`
	LastPurchaseAt *time.Time      `json:"last_purchase_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
