package repository

import (
	"context"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerDelta describes how one ledger append moves the CustomerLoyalty
// aggregates. Current must equal Earned - Used.
type LedgerDelta struct {
	Current int64
	Earned  int64
	Used    int64
	// RequireBalance rejects the append with ErrInsufficientPoints when the
	// balance would drop below zero.
	RequireBalance bool
}

type LoyaltyRepository interface {
	CreateProgram(ctx context.Context, p *model.LoyaltyProgram) error
	FindProgram(ctx context.Context, orgID, id uuid.UUID) (*model.LoyaltyProgram, error)
	// FindActiveProgram returns the oldest active program of the organization.
	FindActiveProgram(ctx context.Context, orgID uuid.UUID) (*model.LoyaltyProgram, error)

	// ListTiers is ordered by min_points ascending.
	ListTiers(ctx context.Context, programID uuid.UUID) ([]model.LoyaltyTier, error)
	FindTier(ctx context.Context, programID, id uuid.UUID) (*model.LoyaltyTier, error)
	SaveTier(ctx context.Context, t *model.LoyaltyTier) error

	CreateEnrollmentTx(ctx context.Context, tx *gorm.DB, cl *model.CustomerLoyalty) error
	FindEnrollment(ctx context.Context, customerID, programID uuid.UUID) (*model.CustomerLoyalty, error)
	FindEnrollmentByID(ctx context.Context, orgID, id uuid.UUID) (*model.CustomerLoyalty, error)
	// FindEnrollmentTx reads (and, inside a transaction, row-locks) an
	// enrollment without organization scoping; used by maintenance jobs.
	FindEnrollmentTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CustomerLoyalty, error)
	SetTier(ctx context.Context, id uuid.UUID, tierID *uuid.UUID) error

	// AppendLedgerTx inserts entry and applies delta to its enrollment in the
	// same statement batch.
	AppendLedgerTx(ctx context.Context, tx *gorm.DB, entry *model.PointsTransaction, delta LedgerDelta, at time.Time) error
	// ListExpirable returns EARNED/BONUS rows with expires_at <= now that have no
	// EXPIRED row referencing them yet.
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]model.PointsTransaction, error)
	// ListBirthdayEnrollments returns enrollments in active programs with a
	// positive birthday bonus whose customer was born on month/day.
	ListBirthdayEnrollments(ctx context.Context, month time.Month, day int) ([]model.CustomerLoyalty, error)
	// HasEntry reports whether a ledger row of txType with reference exists,
	// optionally restricted to rows created at or after since.
	HasEntry(ctx context.Context, loyaltyID uuid.UUID, txType, reference string, since *time.Time) (bool, error)
	ListTransactions(ctx context.Context, loyaltyID uuid.UUID, limit int) ([]model.PointsTransaction, error)
}

type loyaltyRepo struct{ db *gorm.DB }

func NewLoyaltyRepository(db *gorm.DB) LoyaltyRepository { return &loyaltyRepo{db: db} }

func (r *loyaltyRepo) CreateProgram(ctx context.Context, p *model.LoyaltyProgram) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *loyaltyRepo) FindProgram(ctx context.Context, orgID, id uuid.UUID) (*model.LoyaltyProgram, error) {
	var p model.LoyaltyProgram
	err := r.db.WithContext(ctx).Scopes(byOrg(orgID)).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *loyaltyRepo) FindActiveProgram(ctx context.Context, orgID uuid.UUID) (*model.LoyaltyProgram, error) {
	var p model.LoyaltyProgram
	err := r.db.WithContext(ctx).Scopes(byOrg(orgID)).
		Where("active = true").
		Order("created_at ASC").
		First(&p).Error
	return &p, err
}

func (r *loyaltyRepo) ListTiers(ctx context.Context, programID uuid.UUID) ([]model.LoyaltyTier, error) {
	var tiers []model.LoyaltyTier
	err := r.db.WithContext(ctx).Where("program_id = ?", programID).Order("min_points ASC").Find(&tiers).Error
	return tiers, err
}

func (r *loyaltyRepo) FindTier(ctx context.Context, programID, id uuid.UUID) (*model.LoyaltyTier, error) {
	var t model.LoyaltyTier
	err := r.db.WithContext(ctx).Where("program_id = ?", programID).First(&t, "id = ?", id).Error
	return &t, err
}

func (r *loyaltyRepo) SaveTier(ctx context.Context, t *model.LoyaltyTier) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *loyaltyRepo) CreateEnrollmentTx(ctx context.Context, tx *gorm.DB, cl *model.CustomerLoyalty) error {
	err := conn(ctx, r.db, tx).Omit("Customer", "Program", "Tier").Create(cl).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *loyaltyRepo) FindEnrollment(ctx context.Context, customerID, programID uuid.UUID) (*model.CustomerLoyalty, error) {
	var cl model.CustomerLoyalty
	err := r.db.WithContext(ctx).Preload("Tier").
		Where("customer_id = ? AND program_id = ?", customerID, programID).
		First(&cl).Error
	return &cl, err
}

func (r *loyaltyRepo) FindEnrollmentByID(ctx context.Context, orgID, id uuid.UUID) (*model.CustomerLoyalty, error) {
	var cl model.CustomerLoyalty
	err := r.db.WithContext(ctx).Scopes(byOrg(orgID)).Preload("Tier").
		First(&cl, "id = ?", id).Error
	return &cl, err
}

func (r *loyaltyRepo) FindEnrollmentTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CustomerLoyalty, error) {
	var cl model.CustomerLoyalty
	q := conn(ctx, r.db, tx)
	if tx != nil {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&cl, "id = ?", id).Error
	return &cl, err
}

func (r *loyaltyRepo) SetTier(ctx context.Context, id uuid.UUID, tierID *uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.CustomerLoyalty{}).Where("id = ?", id).
		Update("tier_id", tierID).Error
}

func (r *loyaltyRepo) AppendLedgerTx(ctx context.Context, tx *gorm.DB, entry *model.PointsTransaction, delta LedgerDelta, at time.Time) error {
	db := conn(ctx, r.db, tx)
	q := db.Model(&model.CustomerLoyalty{}).Where("id = ?", entry.CustomerLoyaltyID)
	if delta.RequireBalance {
		q = q.Where("current_points + ? >= 0", delta.Current)
	}
	res := q.Updates(map[string]interface{}{
		"current_points":      gorm.Expr("current_points + ?", delta.Current),
		"total_points_earned": gorm.Expr("total_points_earned + ?", delta.Earned),
		"total_points_used":   gorm.Expr("total_points_used + ?", delta.Used),
		"last_activity":       at,
		"updated_at":          at,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if delta.RequireBalance {
			return ErrInsufficientPoints
		}
		return ErrNotFound
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = at
	}
	if err := db.Create(entry).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *loyaltyRepo) ListExpirable(ctx context.Context, now time.Time, limit int) ([]model.PointsTransaction, error) {
	var rows []model.PointsTransaction
	err := r.db.WithContext(ctx).
		Table("points_transactions AS pt").
		Select("pt.*").
		Where("pt.type IN ?", []string{model.PointsEarned, model.PointsBonus}).
		Where("pt.expires_at IS NOT NULL AND pt.expires_at <= ?", now).
		Where(`NOT EXISTS (
			SELECT 1 FROM points_transactions e
			WHERE e.type = ? AND e.reference = ? || pt.id::text)`,
			model.PointsExpired, model.ReferenceExpirePrefix).
		Order("pt.expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *loyaltyRepo) ListBirthdayEnrollments(ctx context.Context, month time.Month, day int) ([]model.CustomerLoyalty, error) {
	var rows []model.CustomerLoyalty
	err := r.db.WithContext(ctx).
		Joins("JOIN customers c ON c.id = customer_loyalties.customer_id").
		Joins("JOIN loyalty_programs p ON p.id = customer_loyalties.program_id").
		Where("p.active = true AND p.birthday_bonus > 0").
		Where("EXTRACT(MONTH FROM c.birth_date) = ? AND EXTRACT(DAY FROM c.birth_date) = ?", int(month), day).
		Preload("Customer").Preload("Program").
		Find(&rows).Error
	return rows, err
}

func (r *loyaltyRepo) HasEntry(ctx context.Context, loyaltyID uuid.UUID, txType, reference string, since *time.Time) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.PointsTransaction{}).
		Where("customer_loyalty_id = ? AND type = ? AND reference = ?", loyaltyID, txType, reference)
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *loyaltyRepo) ListTransactions(ctx context.Context, loyaltyID uuid.UUID, limit int) ([]model.PointsTransaction, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var rows []model.PointsTransaction
	err := r.db.WithContext(ctx).Where("customer_loyalty_id = ?", loyaltyID).
		Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
