package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	CashSessionOpen   = "OPEN"
	CashSessionClosed = "CLOSED"
)

// Cash movement types. Withdrawals are stored with a negative amount.
const (
	CashMovementSale       = "SALE"
	CashMovementDeposit    = "DEPOSIT"
	CashMovementWithdrawal = "WITHDRAWAL"
)

// CashSession is the open/close window of a cash drawer. A partial unique index
// keeps at most one OPEN session per organization.
type CashSession struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null" json:"user_id"`
	OpeningAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"opening_amount"`
	// ExpectedAmount is computed on close: OpeningAmount + SUM(movements)
	ExpectedAmount *decimal.Decimal `gorm:"type:decimal(12,2)" json:"expected_amount,omitempty"`
	DeclaredAmount *decimal.Decimal `gorm:"type:decimal(12,2)" json:"declared_amount,omitempty"`
	Deviation      *decimal.Decimal `gorm:"type:decimal(12,2)" json:"deviation,omitempty"`
	DeviationPct   *decimal.Decimal `gorm:"type:decimal(7,2)" json:"deviation_pct,omitempty"`
	// DeviationClass: "normal" | "warning" | "critical"
	DeviationClass *string    `gorm:"type:varchar(20)" json:"deviation_class,omitempty"`
	Status         string     `gorm:"type:varchar(10);not null;default:'OPEN'" json:"status"`
	Notes          *string    `json:"notes,omitempty"`
	OpenedAt       time.Time  `json:"opened_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`

	Movements []CashMovement `gorm:"foreignKey:SessionID" json:"movements,omitempty"`
}

// CashMovement is immutable; corrections are recorded as new movements.
type CashMovement struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"session_id"`
	Type        string          `gorm:"type:varchar(20);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Description string          `gorm:"not null" json:"description"`
	// ReferenceID links to the originating Sale, if any
	ReferenceID *uuid.UUID `gorm:"type:uuid" json:"reference_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
