package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MovementIn  = "IN"
	MovementOut = "OUT"
)

// InventoryMovement is an append-only audit row, one per affected product per sale.
type InventoryMovement struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"organization_id"`
	ProductID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"product_id"`
	Direction      string     `gorm:"type:varchar(3);not null" json:"direction"`
	Quantity       int        `gorm:"not null" json:"quantity"`
	StockBefore    int        `gorm:"not null" json:"stock_before"`
	StockAfter     int        `gorm:"not null" json:"stock_after"`
	Reason         string     `json:"reason"`
	ReferenceID    *uuid.UUID `gorm:"type:uuid;index" json:"reference_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}
