package memory

import (
	"context"
	"slices"

	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type rewardRepo struct{ s *Store }

func (r *rewardRepo) Create(_ context.Context, rw *model.Reward) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&rw.ID)
	now := r.s.now()
	rw.CreatedAt, rw.UpdatedAt = now, now
	r.s.st.rewards[rw.ID] = *rw
	return nil
}

func (r *rewardRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Reward, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rw, ok := r.s.st.rewards[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rw, nil
}

func (r *rewardRepo) ListByProgram(_ context.Context, programID uuid.UUID, activeOnly bool) ([]model.Reward, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []model.Reward
	for _, rw := range r.s.st.rewards {
		if rw.ProgramID == programID && (!activeOnly || rw.Active) {
			rows = append(rows, rw)
		}
	}
	slices.SortFunc(rows, func(a, b model.Reward) int { return int(a.PointsCost - b.PointsCost) })
	return rows, nil
}

func (r *rewardRepo) IncrementRedemptionsTx(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rw, ok := r.s.st.rewards[id]
	if !ok {
		return repository.ErrNotFound
	}
	if rw.MaxRedemptions != nil && rw.CurrentRedemptions >= *rw.MaxRedemptions {
		return repository.ErrRewardExhausted
	}
	rw.CurrentRedemptions++
	rw.UpdatedAt = r.s.now()
	r.s.st.rewards[id] = rw
	return nil
}

func (r *rewardRepo) CreateCustomerRewardTx(_ context.Context, _ *gorm.DB, cr *model.CustomerReward) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&cr.ID)
	stored := *cr
	stored.Reward = nil
	r.s.st.customerRewards[cr.ID] = stored
	return nil
}

func (r *rewardRepo) FindCustomerReward(_ context.Context, id uuid.UUID) (*model.CustomerReward, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cr, ok := r.s.st.customerRewards[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if rw, ok := r.s.st.rewards[cr.RewardID]; ok {
		cr.Reward = &rw
	}
	return &cr, nil
}

func (r *rewardRepo) TransitionCustomerRewardTx(_ context.Context, _ *gorm.DB, cr *model.CustomerReward, from string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.st.customerRewards[cr.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != from {
		return repository.ErrStaleRewardState
	}
	stored.Status = cr.Status
	stored.UsedAt = cr.UsedAt
	stored.UsedInSaleID = cr.UsedInSaleID
	r.s.st.customerRewards[cr.ID] = stored
	return nil
}

func (r *rewardRepo) ListCustomerRewards(_ context.Context, loyaltyID uuid.UUID) ([]model.CustomerReward, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []model.CustomerReward
	for _, cr := range r.s.st.customerRewards {
		if cr.CustomerLoyaltyID != loyaltyID {
			continue
		}
		if rw, ok := r.s.st.rewards[cr.RewardID]; ok {
			cr.Reward = &rw
		}
		rows = append(rows, cr)
	}
	slices.SortFunc(rows, func(a, b model.CustomerReward) int { return b.RedeemedAt.Compare(a.RedeemedAt) })
	return rows, nil
}
