package repository

import (
	"context"

	"github.com/eduardojeem/Mipos-sub008/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovementFilter defines filters for listing inventory movements.
type MovementFilter struct {
	ProductID   *uuid.UUID
	ReferenceID *uuid.UUID
	Page        int
	Limit       int
}

type InventoryMovementRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, m *model.InventoryMovement) error
	List(ctx context.Context, orgID uuid.UUID, filter MovementFilter) ([]model.InventoryMovement, int64, error)
}

type inventoryMovementRepo struct{ db *gorm.DB }

func NewInventoryMovementRepository(db *gorm.DB) InventoryMovementRepository {
	return &inventoryMovementRepo{db: db}
}

func (r *inventoryMovementRepo) CreateTx(ctx context.Context, tx *gorm.DB, m *model.InventoryMovement) error {
	return conn(ctx, r.db, tx).Create(m).Error
}

func (r *inventoryMovementRepo) List(ctx context.Context, orgID uuid.UUID, filter MovementFilter) ([]model.InventoryMovement, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.InventoryMovement{}).Scopes(byOrg(orgID)).
		Preload("Product")
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.ReferenceID != nil {
		q = q.Where("reference_id = ?", *filter.ReferenceID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit, 100, 500)
	var movements []model.InventoryMovement
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&movements).Error
	return movements, total, err
}
