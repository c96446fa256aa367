package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Ledger entry types.
const (
	PointsEarned   = "EARNED"
	PointsRedeemed = "REDEEMED"
	PointsExpired  = "EXPIRED"
	PointsAdjusted = "ADJUSTED"
	PointsBonus    = "BONUS"
)

// Ledger references used by the loyalty engine.
const (
	ReferenceBirthday = "BIRTHDAY"
	ReferenceWelcome  = "WELCOME"
	ReferenceReferral = "REFERRAL"
	// ReferenceExpirePrefix + source transaction id marks the EXPIRED row
	// produced for that source.
	ReferenceExpirePrefix = "EXPIRE:"
)

type LoyaltyProgram struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string    `gorm:"not null" json:"name"`
	// PointsPerPurchase is the earning rate per currency unit spent.
	PointsPerPurchase    decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"points_per_purchase"`
	MinimumPurchase      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"minimum_purchase"`
	PointsExpirationDays *int            `json:"points_expiration_days,omitempty"`
	WelcomeBonus         int64           `gorm:"not null;default:0" json:"welcome_bonus"`
	BirthdayBonus        int64           `gorm:"not null;default:0" json:"birthday_bonus"`
	ReferralBonus        int64           `gorm:"not null;default:0" json:"referral_bonus"`
	Active               bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// LoyaltyTier brackets are [MinPoints, MaxPoints]; a nil MaxPoints is unbounded.
// Ranges never overlap within one program.
type LoyaltyTier struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProgramID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"program_id"`
	Name       string          `gorm:"not null" json:"name"`
	MinPoints  int64           `gorm:"not null" json:"min_points"`
	MaxPoints  *int64          `json:"max_points,omitempty"`
	Multiplier decimal.Decimal `gorm:"type:decimal(6,3);not null;default:1" json:"multiplier"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Contains reports whether points falls inside the tier bracket.
func (t LoyaltyTier) Contains(points int64) bool {
	if points < t.MinPoints {
		return false
	}
	return t.MaxPoints == nil || points <= *t.MaxPoints
}

// CustomerLoyalty aggregates are derived from the ledger and must satisfy
// CurrentPoints == TotalPointsEarned - TotalPointsUsed after every append.
type CustomerLoyalty struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrganizationID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"organization_id"`
	CustomerID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_customer_program" json:"customer_id"`
	ProgramID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_customer_program" json:"program_id"`
	CurrentPoints     int64      `gorm:"not null;default:0" json:"current_points"`
	TotalPointsEarned int64      `gorm:"not null;default:0" json:"total_points_earned"`
	TotalPointsUsed   int64      `gorm:"not null;default:0" json:"total_points_used"`
	TierID            *uuid.UUID `gorm:"type:uuid" json:"tier_id,omitempty"`
	LastActivity      *time.Time `json:"last_activity,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Customer *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Program  *LoyaltyProgram `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
	Tier     *LoyaltyTier    `gorm:"foreignKey:TierID" json:"tier,omitempty"`
}

// PointsTransaction is an immutable, signed ledger row.
type PointsTransaction struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CustomerLoyaltyID uuid.UUID         `gorm:"type:uuid;not null;index" json:"customer_loyalty_id"`
	Type              string            `gorm:"type:varchar(10);not null;index" json:"type"`
	Points            int64             `gorm:"not null" json:"points"`
	Description       string            `json:"description"`
	Reference         *string           `gorm:"index" json:"reference,omitempty"`
	ExpiresAt         *time.Time        `gorm:"index" json:"expires_at,omitempty"`
	Metadata          datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedBy         *uuid.UUID        `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}
