package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eduardojeem/Mipos-sub008/internal/apierror"
	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type RewardService interface {
	CreateReward(ctx context.Context, actor Actor, req dto.CreateRewardRequest) (*model.Reward, error)
	ListRewards(ctx context.Context, actor Actor, programID uuid.UUID, activeOnly bool) ([]model.Reward, error)
	RedeemReward(ctx context.Context, actor Actor, req dto.RedeemRewardRequest) (*model.CustomerReward, error)
	UseCustomerReward(ctx context.Context, actor Actor, customerRewardID uuid.UUID, req dto.UseRewardRequest) (*model.CustomerReward, error)
	ListCustomerRewards(ctx context.Context, actor Actor, loyaltyID uuid.UUID) ([]model.CustomerReward, error)
}

type rewardService struct {
	tx      repository.Transactor
	rewards repository.RewardRepository
	loyalty repository.LoyaltyRepository
	sales   repository.SaleRepository
	tiers   LoyaltyService
	clock   Clock
}

func NewRewardService(
	tx repository.Transactor,
	rewards repository.RewardRepository,
	loyalty repository.LoyaltyRepository,
	sales repository.SaleRepository,
	tiers LoyaltyService,
	clock Clock,
) RewardService {
	return &rewardService{tx: tx, rewards: rewards, loyalty: loyalty, sales: sales, tiers: tiers, clock: clock}
}

func (s *rewardService) CreateReward(ctx context.Context, actor Actor, req dto.CreateRewardRequest) (*model.Reward, error) {
	programID, err := uuid.Parse(req.ProgramID)
	if err != nil {
		return nil, apierror.Validation("invalid program_id")
	}
	if _, err := s.loyalty.FindProgram(ctx, actor.OrganizationID, programID); err != nil {
		return nil, lookupErr(err, "loyalty program %s not found", programID)
	}
	if req.PointsCost <= 0 {
		return nil, apierror.Validation("points_cost must be positive")
	}
	if req.ValidFrom != nil && req.ValidUntil != nil && req.ValidUntil.Before(*req.ValidFrom) {
		return nil, apierror.Validation("valid_until must not be before valid_from")
	}

	r := &model.Reward{
		ProgramID:      programID,
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		PointsCost:     req.PointsCost,
		MaxRedemptions: req.MaxRedemptions,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
		Active:         true,
	}
	if err := s.rewards.Create(ctx, r); err != nil {
		return nil, apierror.Internal("failed to create reward", err)
	}
	return r, nil
}

func (s *rewardService) ListRewards(ctx context.Context, actor Actor, programID uuid.UUID, activeOnly bool) ([]model.Reward, error) {
	if _, err := s.loyalty.FindProgram(ctx, actor.OrganizationID, programID); err != nil {
		return nil, lookupErr(err, "loyalty program %s not found", programID)
	}
	rows, err := s.rewards.ListByProgram(ctx, programID, activeOnly)
	if err != nil {
		return nil, apierror.Internal("failed to list rewards", err)
	}
	return rows, nil
}

// ── RedeemReward ──────────────────────────────────────────────────────────────
// Exchanges points for a reward: bumps the redemption counter, creates the
// AVAILABLE CustomerReward and books a REDEEMED ledger row in one transaction.

func (s *rewardService) RedeemReward(ctx context.Context, actor Actor, req dto.RedeemRewardRequest) (*model.CustomerReward, error) {
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, apierror.Validation("invalid customer_id")
	}
	programID, err := uuid.Parse(req.ProgramID)
	if err != nil {
		return nil, apierror.Validation("invalid program_id")
	}
	rewardID, err := uuid.Parse(req.RewardID)
	if err != nil {
		return nil, apierror.Validation("invalid reward_id")
	}

	enrollment, err := s.loyalty.FindEnrollment(ctx, customerID, programID)
	if err != nil || enrollment.OrganizationID != actor.OrganizationID {
		if err == nil || errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NotFound("customer is not enrolled in this program")
		}
		return nil, apierror.Internal("failed to look up enrollment", err)
	}
	reward, err := s.rewards.FindByID(ctx, rewardID)
	if err != nil {
		return nil, lookupErr(err, "reward %s not found", rewardID)
	}
	if reward.ProgramID != programID {
		return nil, apierror.NotFound("reward %s not found", rewardID)
	}

	now := s.clock.now()
	switch reward.AvailabilityAt(now) {
	case model.RewardInactive:
		return nil, apierror.Validation("reward is not active")
	case model.RewardNotStarted:
		return nil, apierror.Validation("reward is not available yet")
	case model.RewardEnded:
		return nil, apierror.Validation("reward is no longer available")
	case model.RewardExhausted:
		return nil, apierror.Conflict("reward redemption limit reached")
	}
	if enrollment.CurrentPoints < reward.PointsCost {
		return nil, apierror.Validation("insufficient points: have %d, need %d", enrollment.CurrentPoints, reward.PointsCost)
	}

	cr := &model.CustomerReward{
		ID:                uuid.New(),
		CustomerLoyaltyID: enrollment.ID,
		RewardID:          reward.ID,
		Status:            model.CustomerRewardAvailable,
		RedeemedAt:        now,
		ExpiresAt:         reward.ValidUntil,
	}
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		if err := s.rewards.IncrementRedemptionsTx(ctx, tx, reward.ID); err != nil {
			if errors.Is(err, repository.ErrRewardExhausted) {
				return apierror.Conflict("reward redemption limit reached")
			}
			return err
		}
		if err := s.rewards.CreateCustomerRewardTx(ctx, tx, cr); err != nil {
			return err
		}
		ref := cr.ID.String()
		entry := &model.PointsTransaction{
			CustomerLoyaltyID: enrollment.ID,
			Type:              model.PointsRedeemed,
			Points:            -reward.PointsCost,
			Description:       fmt.Sprintf("Redeemed %s", reward.Name),
			Reference:         &ref,
			CreatedBy:         &actor.UserID,
		}
		delta := repository.LedgerDelta{Current: -reward.PointsCost, Used: reward.PointsCost, RequireBalance: true}
		return s.loyalty.AppendLedgerTx(ctx, tx, entry, delta, now)
	})
	if err != nil {
		return nil, ledgerErr(err)
	}

	if _, err := s.tiers.UpdateCustomerTier(ctx, enrollment.ID); err != nil {
		return nil, err
	}
	log.Info().
		Str("customer_reward_id", cr.ID.String()).
		Str("reward_id", reward.ID.String()).
		Int64("points", reward.PointsCost).
		Msg("reward redeemed")
	cr.Reward = reward
	return cr, nil
}

// ── UseCustomerReward ─────────────────────────────────────────────────────────
// AVAILABLE → USED, or AVAILABLE → EXPIRED when past expires_at (the call
// then fails but the transition is kept).

func (s *rewardService) UseCustomerReward(ctx context.Context, actor Actor, customerRewardID uuid.UUID, req dto.UseRewardRequest) (*model.CustomerReward, error) {
	saleID, err := uuid.Parse(req.SaleID)
	if err != nil {
		return nil, apierror.Validation("invalid sale_id")
	}
	cr, err := s.findCustomerReward(ctx, actor, customerRewardID)
	if err != nil {
		return nil, err
	}
	if cr.Status != model.CustomerRewardAvailable {
		return nil, apierror.Validation("customer reward is %s", strings.ToLower(cr.Status))
	}
	if _, err := s.sales.FindByID(ctx, actor.OrganizationID, saleID); err != nil {
		return nil, lookupErr(err, "sale %s not found", saleID)
	}

	now := s.clock.now()
	if cr.ExpiresAt != nil && now.After(*cr.ExpiresAt) {
		cr.Status = model.CustomerRewardExpired
		if err := s.save(ctx, cr); err != nil {
			return nil, err
		}
		return nil, apierror.Validation("customer reward expired")
	}

	cr.Status = model.CustomerRewardUsed
	cr.UsedAt = &now
	cr.UsedInSaleID = &saleID
	if err := s.save(ctx, cr); err != nil {
		return nil, err
	}
	return cr, nil
}

func (s *rewardService) ListCustomerRewards(ctx context.Context, actor Actor, loyaltyID uuid.UUID) ([]model.CustomerReward, error) {
	if _, err := s.loyalty.FindEnrollmentByID(ctx, actor.OrganizationID, loyaltyID); err != nil {
		return nil, lookupErr(err, "loyalty enrollment %s not found", loyaltyID)
	}
	rows, err := s.rewards.ListCustomerRewards(ctx, loyaltyID)
	if err != nil {
		return nil, apierror.Internal("failed to list customer rewards", err)
	}
	return rows, nil
}

func (s *rewardService) findCustomerReward(ctx context.Context, actor Actor, id uuid.UUID) (*model.CustomerReward, error) {
	cr, err := s.rewards.FindCustomerReward(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "customer reward %s not found", id)
	}
	if _, err := s.loyalty.FindEnrollmentByID(ctx, actor.OrganizationID, cr.CustomerLoyaltyID); err != nil {
		return nil, lookupErr(err, "customer reward %s not found", id)
	}
	return cr, nil
}

// save moves cr out of AVAILABLE. A concurrent use or expiry that got there
// first makes it a Conflict.
func (s *rewardService) save(ctx context.Context, cr *model.CustomerReward) error {
	err := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		return s.rewards.TransitionCustomerRewardTx(ctx, tx, cr, model.CustomerRewardAvailable)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStaleRewardState):
		return apierror.Conflict("customer reward is no longer available")
	default:
		return apierror.Internal("failed to update customer reward", err)
	}
}
