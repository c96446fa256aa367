package repository

import (
	"context"
	"sort"

	"github.com/eduardojeem/Mipos-sub008/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository defines the data access contract for products.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling unit testing against the in-memory store.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, orgID, id uuid.UUID) (*model.Product, error)
	// FindByIDs is a plain, unlocked read keyed by product id.
	FindByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]model.Product, error)

	// LockAndReadStock acquires row locks on every product in ids (sorted, in a
	// single statement) and returns the locked rows.
	LockAndReadStock(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]model.Product, error)
	// DecrementStockTx returns ErrInsufficientStock if the row would go negative.
	DecrementStockTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, orgID, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Scopes(byOrg(orgID)).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productRepo) FindByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Scopes(byOrg(orgID)).
		Where("id IN ? AND active = true", ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return indexProducts(products), nil
}

func (r *productRepo) LockAndReadStock(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]model.Product, error) {
	sorted := SortedIDs(ids)
	var products []model.Product
	err := conn(ctx, r.db, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(byOrg(orgID)).
		Where("id IN ? AND active = true", sorted).
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return indexProducts(products), nil
}

func (r *productRepo) DecrementStockTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error {
	res := conn(ctx, r.db, tx).Model(&model.Product{}).
		Where("id = ? AND stock_quantity >= ?", id, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// SortedIDs returns a deduplicated copy of ids in ascending byte order, the
// order in which product rows are locked.
func SortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func indexProducts(products []model.Product) map[uuid.UUID]model.Product {
	m := make(map[uuid.UUID]model.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}
