package repository

import (
	"context"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SaleFilter narrows ListSales. A zero Date lists every day.
type SaleFilter struct {
	Date       *time.Time
	CustomerID *uuid.UUID
	Page       int
	Limit      int
}

type SaleRepository interface {
	// CreateTx inserts the sale and its items. Product and Customer
	// references on the passed value are not written.
	CreateTx(ctx context.Context, tx *gorm.DB, s *model.Sale) error
	FindByID(ctx context.Context, orgID, id uuid.UUID) (*model.Sale, error)
	List(ctx context.Context, orgID uuid.UUID, filter SaleFilter) ([]model.Sale, int64, error)
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) CreateTx(ctx context.Context, tx *gorm.DB, s *model.Sale) error {
	return conn(ctx, r.db, tx).Omit("Customer", "Items.Product").Create(s).Error
}

func (r *saleRepo) FindByID(ctx context.Context, orgID, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).Scopes(byOrg(orgID)).
		Preload("Items.Product").Preload("Customer").
		First(&s, "id = ?", id).Error
	return &s, err
}

func (r *saleRepo) List(ctx context.Context, orgID uuid.UUID, filter SaleFilter) ([]model.Sale, int64, error) {
	page, limit := normalizePage(filter.Page, filter.Limit, 50, 200)
	q := r.db.WithContext(ctx).Model(&model.Sale{}).Scopes(byOrg(orgID))
	if filter.Date != nil {
		start := time.Date(filter.Date.Year(), filter.Date.Month(), filter.Date.Day(), 0, 0, 0, 0, filter.Date.Location())
		q = q.Where("created_at >= ? AND created_at < ?", start, start.AddDate(0, 0, 1))
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sales []model.Sale
	err := q.Preload("Items.Product").Preload("Customer").
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&sales).Error
	return sales, total, err
}
