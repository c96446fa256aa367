package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment methods accepted by the sale pipeline.
const (
	PaymentCash     = "CASH"
	PaymentCard     = "CARD"
	PaymentTransfer = "TRANSFER"
	PaymentOther    = "OTHER"
)

// Discount types recorded on a Sale. DiscountNone is stored when no discount applied.
const (
	DiscountNone        = "NONE"
	DiscountPercentage  = "PERCENTAGE"
	DiscountFixedAmount = "FIXED_AMOUNT"
)

// Sale is immutable once created. Total = Subtotal - Discount + Tax.
type Sale struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null" json:"user_id"`
	CustomerID     *uuid.UUID      `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	Discount       decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"discount"`
	DiscountType   string          `gorm:"type:varchar(20);not null;default:'NONE'" json:"discount_type"`
	DiscountReason *string         `json:"discount_reason,omitempty"`
	Tax            decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"tax"`
	Total          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total"`
	PaymentMethod  string          `gorm:"type:varchar(20);not null" json:"payment_method"`
	// PaymentDetails keeps cash_received, change and transfer_reference as sent by the register.
	PaymentDetails datatypes.JSONMap `gorm:"type:jsonb" json:"payment_details,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
	CreatedAt      time.Time         `gorm:"index" json:"created_at"`

	Items    []SaleItem `gorm:"foreignKey:SaleID" json:"items"`
	Customer *Customer  `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}

// SaleItem.UnitPrice is copied from Product.SalePrice at transaction time.
type SaleItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	TaxAmount decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0" json:"tax_amount"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}
