package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type loyaltyRepo struct{ s *Store }

func (r *loyaltyRepo) CreateProgram(_ context.Context, p *model.LoyaltyProgram) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&p.ID)
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.st.programs[p.ID] = *p
	return nil
}

func (r *loyaltyRepo) FindProgram(_ context.Context, orgID, id uuid.UUID) (*model.LoyaltyProgram, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.programs[id]
	if !ok || p.OrganizationID != orgID {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *loyaltyRepo) FindActiveProgram(_ context.Context, orgID uuid.UUID) (*model.LoyaltyProgram, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *model.LoyaltyProgram
	for _, p := range r.s.st.programs {
		if p.OrganizationID != orgID || !p.Active {
			continue
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) {
			c := p
			found = &c
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r *loyaltyRepo) ListTiers(_ context.Context, programID uuid.UUID) ([]model.LoyaltyTier, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.tiersOf(programID), nil
}

func (r *loyaltyRepo) tiersOf(programID uuid.UUID) []model.LoyaltyTier {
	var tiers []model.LoyaltyTier
	for _, t := range r.s.st.tiers {
		if t.ProgramID == programID {
			tiers = append(tiers, t)
		}
	}
	slices.SortFunc(tiers, func(a, b model.LoyaltyTier) int {
		switch {
		case a.MinPoints < b.MinPoints:
			return -1
		case a.MinPoints > b.MinPoints:
			return 1
		}
		return 0
	})
	return tiers
}

func (r *loyaltyRepo) FindTier(_ context.Context, programID, id uuid.UUID) (*model.LoyaltyTier, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.st.tiers[id]
	if !ok || t.ProgramID != programID {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *loyaltyRepo) SaveTier(_ context.Context, t *model.LoyaltyTier) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&t.ID)
	now := r.s.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	r.s.st.tiers[t.ID] = *t
	return nil
}

func (r *loyaltyRepo) CreateEnrollmentTx(_ context.Context, _ *gorm.DB, cl *model.CustomerLoyalty) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.st.enrollments {
		if e.CustomerID == cl.CustomerID && e.ProgramID == cl.ProgramID {
			return repository.ErrDuplicate
		}
	}
	ensureID(&cl.ID)
	now := r.s.now()
	cl.CreatedAt, cl.UpdatedAt = now, now
	stored := *cl
	stored.Customer, stored.Program, stored.Tier = nil, nil, nil
	r.s.st.enrollments[cl.ID] = stored
	return nil
}

func (r *loyaltyRepo) FindEnrollment(_ context.Context, customerID, programID uuid.UUID) (*model.CustomerLoyalty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.st.enrollments {
		if e.CustomerID == customerID && e.ProgramID == programID {
			out := r.withTier(e)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *loyaltyRepo) FindEnrollmentByID(_ context.Context, orgID, id uuid.UUID) (*model.CustomerLoyalty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.st.enrollments[id]
	if !ok || e.OrganizationID != orgID {
		return nil, repository.ErrNotFound
	}
	out := r.withTier(e)
	return &out, nil
}

func (r *loyaltyRepo) withTier(e model.CustomerLoyalty) model.CustomerLoyalty {
	if e.TierID != nil {
		if t, ok := r.s.st.tiers[*e.TierID]; ok {
			e.Tier = &t
		}
	}
	return e
}

func (r *loyaltyRepo) SetTier(_ context.Context, id uuid.UUID, tierID *uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.st.enrollments[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.TierID = tierID
	r.s.st.enrollments[id] = e
	return nil
}

func (r *loyaltyRepo) AppendLedgerTx(_ context.Context, _ *gorm.DB, entry *model.PointsTransaction, delta repository.LedgerDelta, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.st.enrollments[entry.CustomerLoyaltyID]
	if !ok {
		return repository.ErrNotFound
	}
	if delta.RequireBalance && e.CurrentPoints+delta.Current < 0 {
		return repository.ErrInsufficientPoints
	}
	if uniqueReference(entry.Type) && entry.Reference != nil {
		for _, t := range r.s.st.ledger {
			if t.CustomerLoyaltyID == entry.CustomerLoyaltyID && t.Type == entry.Type &&
				t.Reference != nil && *t.Reference == *entry.Reference {
				return repository.ErrDuplicate
			}
		}
	}
	e.CurrentPoints += delta.Current
	e.TotalPointsEarned += delta.Earned
	e.TotalPointsUsed += delta.Used
	e.LastActivity = &at
	e.UpdatedAt = at
	r.s.st.enrollments[e.ID] = e

	ensureID(&entry.ID)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = at
	}
	r.s.st.ledger = append(r.s.st.ledger, *entry)
	return nil
}

func (r *loyaltyRepo) ListExpirable(_ context.Context, now time.Time, limit int) ([]model.PointsTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	processed := map[string]bool{}
	for _, t := range r.s.st.ledger {
		if t.Type == model.PointsExpired && t.Reference != nil && strings.HasPrefix(*t.Reference, model.ReferenceExpirePrefix) {
			processed[strings.TrimPrefix(*t.Reference, model.ReferenceExpirePrefix)] = true
		}
	}
	var rows []model.PointsTransaction
	for _, t := range r.s.st.ledger {
		if t.Type != model.PointsEarned && t.Type != model.PointsBonus {
			continue
		}
		if t.ExpiresAt == nil || t.ExpiresAt.After(now) || processed[t.ID.String()] {
			continue
		}
		rows = append(rows, t)
	}
	slices.SortFunc(rows, func(a, b model.PointsTransaction) int { return a.ExpiresAt.Compare(*b.ExpiresAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *loyaltyRepo) ListBirthdayEnrollments(_ context.Context, month time.Month, day int) ([]model.CustomerLoyalty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []model.CustomerLoyalty
	for _, e := range r.s.st.enrollments {
		p, ok := r.s.st.programs[e.ProgramID]
		if !ok || !p.Active || p.BirthdayBonus <= 0 {
			continue
		}
		c, ok := r.s.st.customers[e.CustomerID]
		if !ok || c.BirthDate == nil || c.BirthDate.Month() != month || c.BirthDate.Day() != day {
			continue
		}
		e.Customer, e.Program = &c, &p
		rows = append(rows, e)
	}
	return rows, nil
}

func (r *loyaltyRepo) HasEntry(_ context.Context, loyaltyID uuid.UUID, txType, reference string, since *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.st.ledger {
		if t.CustomerLoyaltyID != loyaltyID || t.Type != txType || t.Reference == nil || *t.Reference != reference {
			continue
		}
		if since != nil && t.CreatedAt.Before(*since) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (r *loyaltyRepo) ListTransactions(_ context.Context, loyaltyID uuid.UUID, limit int) ([]model.PointsTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var rows []model.PointsTransaction
	for i := len(r.s.st.ledger) - 1; i >= 0 && len(rows) < limit; i-- {
		if r.s.st.ledger[i].CustomerLoyaltyID == loyaltyID {
			rows = append(rows, r.s.st.ledger[i])
		}
	}
	return rows, nil
}

func (r *loyaltyRepo) FindEnrollmentTx(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.CustomerLoyalty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.st.enrollments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

// uniqueReference mirrors the partial unique index on points_transactions.
func uniqueReference(txType string) bool {
	return txType == model.PointsEarned || txType == model.PointsExpired
}
