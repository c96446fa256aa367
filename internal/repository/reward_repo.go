package repository

import (
	"context"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RewardRepository interface {
	Create(ctx context.Context, r *model.Reward) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Reward, error)
	ListByProgram(ctx context.Context, programID uuid.UUID, activeOnly bool) ([]model.Reward, error)
	// IncrementRedemptionsTx returns ErrRewardExhausted when the cap is reached.
	IncrementRedemptionsTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error

	CreateCustomerRewardTx(ctx context.Context, tx *gorm.DB, cr *model.CustomerReward) error
	FindCustomerReward(ctx context.Context, id uuid.UUID) (*model.CustomerReward, error)
	// TransitionCustomerRewardTx writes cr's status and usage fields only if
	// the stored row is still in status from; otherwise ErrStaleRewardState.
	TransitionCustomerRewardTx(ctx context.Context, tx *gorm.DB, cr *model.CustomerReward, from string) error
	ListCustomerRewards(ctx context.Context, loyaltyID uuid.UUID) ([]model.CustomerReward, error)
}

type rewardRepo struct{ db *gorm.DB }

func NewRewardRepository(db *gorm.DB) RewardRepository { return &rewardRepo{db: db} }

func (r *rewardRepo) Create(ctx context.Context, rw *model.Reward) error {
	return r.db.WithContext(ctx).Create(rw).Error
}

func (r *rewardRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Reward, error) {
	var rw model.Reward
	err := r.db.WithContext(ctx).First(&rw, "id = ?", id).Error
	return &rw, err
}

func (r *rewardRepo) ListByProgram(ctx context.Context, programID uuid.UUID, activeOnly bool) ([]model.Reward, error) {
	q := r.db.WithContext(ctx).Where("program_id = ?", programID)
	if activeOnly {
		q = q.Where("active = true")
	}
	var rewards []model.Reward
	err := q.Order("points_cost ASC").Find(&rewards).Error
	return rewards, err
}

func (r *rewardRepo) IncrementRedemptionsTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	res := conn(ctx, r.db, tx).Model(&model.Reward{}).
		Where("id = ? AND (max_redemptions IS NULL OR current_redemptions < max_redemptions)", id).
		Updates(map[string]interface{}{
			"current_redemptions": gorm.Expr("current_redemptions + 1"),
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRewardExhausted
	}
	return nil
}

func (r *rewardRepo) CreateCustomerRewardTx(ctx context.Context, tx *gorm.DB, cr *model.CustomerReward) error {
	return conn(ctx, r.db, tx).Omit("Reward").Create(cr).Error
}

func (r *rewardRepo) FindCustomerReward(ctx context.Context, id uuid.UUID) (*model.CustomerReward, error) {
	var cr model.CustomerReward
	err := r.db.WithContext(ctx).Preload("Reward").First(&cr, "id = ?", id).Error
	return &cr, err
}

func (r *rewardRepo) TransitionCustomerRewardTx(ctx context.Context, tx *gorm.DB, cr *model.CustomerReward, from string) error {
	res := conn(ctx, r.db, tx).Model(&model.CustomerReward{}).
		Where("id = ? AND status = ?", cr.ID, from).
		Updates(map[string]interface{}{
			"status":          cr.Status,
			"used_at":         cr.UsedAt,
			"used_in_sale_id": cr.UsedInSaleID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRewardState
	}
	return nil
}

func (r *rewardRepo) ListCustomerRewards(ctx context.Context, loyaltyID uuid.UUID) ([]model.CustomerReward, error) {
	var rows []model.CustomerReward
	err := r.db.WithContext(ctx).Preload("Reward").
		Where("customer_loyalty_id = ?", loyaltyID).
		Order("redeemed_at DESC").Find(&rows).Error
	return rows, err
}
