package repository

import (
	"context"

	"github.com/eduardojeem/Mipos-sub008/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CashRepository interface {
	CreateSession(ctx context.Context, s *model.CashSession) error
	// FindOpenSession reads through tx when given, so the sale transaction can
	// re-check the session it books the movement against.
	FindOpenSession(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) (*model.CashSession, error)
	FindSessionByID(ctx context.Context, orgID, id uuid.UUID) (*model.CashSession, error)
	UpdateSession(ctx context.Context, s *model.CashSession) error
	CreateMovement(ctx context.Context, tx *gorm.DB, m *model.CashMovement) error
	SumMovements(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error)
}

type cashRepo struct{ db *gorm.DB }

func NewCashRepository(db *gorm.DB) CashRepository { return &cashRepo{db: db} }

func (r *cashRepo) CreateSession(ctx context.Context, s *model.CashSession) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *cashRepo) FindOpenSession(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := conn(ctx, r.db, tx).Scopes(byOrg(orgID)).
		Where("status = ?", model.CashSessionOpen).
		Order("opened_at DESC").
		First(&s).Error
	return &s, err
}

func (r *cashRepo) FindSessionByID(ctx context.Context, orgID, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).Scopes(byOrg(orgID)).
		Preload("Movements", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cashRepo) UpdateSession(ctx context.Context, s *model.CashSession) error {
	return r.db.WithContext(ctx).Omit("Movements").Save(s).Error
}

func (r *cashRepo) CreateMovement(ctx context.Context, tx *gorm.DB, m *model.CashMovement) error {
	return conn(ctx, r.db, tx).Create(m).Error
}

func (r *cashRepo) SumMovements(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	row := r.db.WithContext(ctx).Model(&model.CashMovement{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("session_id = ?", sessionID).
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}
