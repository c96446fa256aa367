package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog row. StockQuantity is only mutated inside a locked
// reservation step and never drops below zero (enforced by a CHECK constraint).
type Product struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	SKU            string          `gorm:"column:sku;not null" json:"sku"`
	Name           string          `gorm:"not null" json:"name"`
	SalePrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"sale_price"`
	// TaxRate is a percentage: 21 means 21%.
	TaxRate       decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	StockQuantity int             `gorm:"not null;default:0" json:"stock_quantity"`
	Active        bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
