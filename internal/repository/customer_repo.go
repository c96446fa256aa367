package repository

import (
	"context"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CustomerRepository interface {
	Create(ctx context.Context, c *model.Customer) error
	FindByID(ctx context.Context, orgID, id uuid.UUID) (*model.Customer, error)
	// RecordPurchaseTx adds amount to the running purchase total and stamps the purchase time.
	RecordPurchaseTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, amount decimal.Decimal, at time.Time) error
}

type customerRepo struct{ db *gorm.DB }

func NewCustomerRepository(db *gorm.DB) CustomerRepository { return &customerRepo{db: db} }

func (r *customerRepo) Create(ctx context.Context, c *model.Customer) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *customerRepo) FindByID(ctx context.Context, orgID, id uuid.UUID) (*model.Customer, error) {
	var c model.Customer
	err := r.db.WithContext(ctx).Scopes(byOrg(orgID)).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *customerRepo) RecordPurchaseTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	return conn(ctx, r.db, tx).Model(&model.Customer{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_purchases":  gorm.Expr("total_purchases + ?", amount),
		"last_purchase_at": at,
	}).Error
}
