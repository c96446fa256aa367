package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateProgramRequest struct {
	Name                 string          `json:"name"                   validate:"required,min=2,max=120"`
	PointsPerPurchase    decimal.Decimal `json:"points_per_purchase"    validate:"gt=0"`
	MinimumPurchase      decimal.Decimal `json:"minimum_purchase"       validate:"min=0"`
	PointsExpirationDays *int            `json:"points_expiration_days" validate:"omitempty,min=1"`
	WelcomeBonus         int64           `json:"welcome_bonus"          validate:"min=0"`
	BirthdayBonus        int64           `json:"birthday_bonus"         validate:"min=0"`
	ReferralBonus        int64           `json:"referral_bonus"         validate:"min=0"`
}

type TierRequest struct {
	Name       string          `json:"name"       validate:"required,min=1,max=80"`
	MinPoints  int64           `json:"min_points" validate:"min=0"`
	MaxPoints  *int64          `json:"max_points" validate:"omitempty,min=0"`
	Multiplier decimal.Decimal `json:"multiplier" validate:"gt=0"`
}

type EnrollRequest struct {
	CustomerID         string  `json:"customer_id"          validate:"required,uuid"`
	ProgramID          string  `json:"program_id"           validate:"required,uuid"`
	ReferrerCustomerID *string `json:"referrer_customer_id" validate:"omitempty,uuid"`
}

type AdjustPointsRequest struct {
	Points      int64  `json:"points"      validate:"required"`
	Description string `json:"description" validate:"required,min=3,max=500"`
}

type CreateRewardRequest struct {
	ProgramID      string     `json:"program_id"      validate:"required,uuid"`
	Name           string     `json:"name"            validate:"required,min=2,max=120"`
	Description    *string    `json:"description"     validate:"omitempty,max=500"`
	PointsCost     int64      `json:"points_cost"     validate:"required,gt=0"`
	MaxRedemptions *int       `json:"max_redemptions" validate:"omitempty,min=1"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidUntil     *time.Time `json:"valid_until"`
}

type RedeemRewardRequest struct {
	CustomerID string `json:"customer_id" validate:"required,uuid"`
	ProgramID  string `json:"program_id"  validate:"required,uuid"`
	RewardID   string `json:"reward_id"   validate:"required,uuid"`
}

type UseRewardRequest struct {
	SaleID string `json:"sale_id" validate:"required,uuid"`
}

type MaintenanceResponse struct {
	Job       string `json:"job"`
	Processed int    `json:"processed"`
}

// AddPointsRequest credits a purchase recorded outside the sale pipeline.
type AddPointsRequest struct {
	Amount    decimal.Decimal `json:"amount"    validate:"gt=0"`
	Reference *string         `json:"reference" validate:"omitempty,max=100"`
}
