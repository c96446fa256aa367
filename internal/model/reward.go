package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	CustomerRewardAvailable = "AVAILABLE"
	CustomerRewardUsed      = "USED"
	CustomerRewardExpired   = "EXPIRED"
)

type Reward struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProgramID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"program_id"`
	Name               string     `gorm:"not null" json:"name"`
	Description        *string    `json:"description,omitempty"`
	PointsCost         int64      `gorm:"not null" json:"points_cost"`
	MaxRedemptions     *int       `json:"max_redemptions,omitempty"`
	CurrentRedemptions int        `gorm:"not null;default:0" json:"current_redemptions"`
	ValidFrom          *time.Time `json:"valid_from,omitempty"`
	ValidUntil         *time.Time `json:"valid_until,omitempty"`
	Active             bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// RewardAvailability says why a reward can or cannot be redeemed.
type RewardAvailability int

const (
	RewardRedeemable RewardAvailability = iota
	RewardInactive
	RewardNotStarted
	RewardEnded
	RewardExhausted
)

// AvailabilityAt checks the reward's flags, validity window and redemption cap at now.
func (r Reward) AvailabilityAt(now time.Time) RewardAvailability {
	switch {
	case !r.Active:
		return RewardInactive
	case r.ValidFrom != nil && now.Before(*r.ValidFrom):
		return RewardNotStarted
	case r.ValidUntil != nil && now.After(*r.ValidUntil):
		return RewardEnded
	case r.MaxRedemptions != nil && r.CurrentRedemptions >= *r.MaxRedemptions:
		return RewardExhausted
	}
	return RewardRedeemable
}

type CustomerReward struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CustomerLoyaltyID uuid.UUID  `gorm:"type:uuid;not null;index" json:"customer_loyalty_id"`
	RewardID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"reward_id"`
	Status            string     `gorm:"type:varchar(10);not null;default:'AVAILABLE'" json:"status"`
	RedeemedAt        time.Time  `json:"redeemed_at"`
	UsedAt            *time.Time `json:"used_at,omitempty"`
	UsedInSaleID      *uuid.UUID `gorm:"type:uuid" json:"used_in_sale_id,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`

	Reward *Reward `gorm:"foreignKey:RewardID" json:"reward,omitempty"`
}
