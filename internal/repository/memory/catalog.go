package memory

import (
	"context"
	"slices"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Products ─────────────────────────────────────────────────────────────────

type productRepo struct{ s *Store }

func (r *productRepo) Create(_ context.Context, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&p.ID)
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.st.products[p.ID] = *p
	return nil
}

func (r *productRepo) FindByID(_ context.Context, orgID, id uuid.UUID) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.products[id]
	if !ok || p.OrganizationID != orgID {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *productRepo) FindByIDs(_ context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.collect(orgID, ids), nil
}

// LockAndReadStock relies on WithinTx for mutual exclusion; the returned rows
// are the authoritative values under that lock.
func (r *productRepo) LockAndReadStock(_ context.Context, _ *gorm.DB, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.collect(orgID, repository.SortedIDs(ids)), nil
}

func (r *productRepo) collect(orgID uuid.UUID, ids []uuid.UUID) map[uuid.UUID]model.Product {
	out := make(map[uuid.UUID]model.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.st.products[id]; ok && p.OrganizationID == orgID && p.Active {
			out[id] = p
		}
	}
	return out
}

func (r *productRepo) DecrementStockTx(_ context.Context, _ *gorm.DB, id uuid.UUID, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.StockQuantity < qty {
		return repository.ErrInsufficientStock
	}
	p.StockQuantity -= qty
	p.UpdatedAt = r.s.now()
	r.s.st.products[id] = p
	return nil
}

// ── Customers ────────────────────────────────────────────────────────────────

type customerRepo struct{ s *Store }

func (r *customerRepo) Create(_ context.Context, c *model.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&c.ID)
	now := r.s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.st.customers[c.ID] = *c
	return nil
}

func (r *customerRepo) FindByID(_ context.Context, orgID, id uuid.UUID) (*model.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.customers[id]
	if !ok || c.OrganizationID != orgID {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *customerRepo) RecordPurchaseTx(_ context.Context, _ *gorm.DB, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.customers[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.TotalPurchases = c.TotalPurchases.Add(amount)
	c.LastPurchaseAt = &at
	r.s.st.customers[id] = c
	return nil
}

// ── Sales ────────────────────────────────────────────────────────────────────

type saleRepo struct{ s *Store }

func (r *saleRepo) CreateTx(_ context.Context, _ *gorm.DB, sale *model.Sale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&sale.ID)
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = r.s.now()
	}
	for i := range sale.Items {
		ensureID(&sale.Items[i].ID)
		sale.Items[i].SaleID = sale.ID
	}
	stored := *sale
	stored.Items = slices.Clone(sale.Items)
	stored.Customer = nil
	r.s.st.sales[sale.ID] = stored
	return nil
}

func (r *saleRepo) FindByID(_ context.Context, orgID, id uuid.UUID) (*model.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.st.sales[id]
	if !ok || sale.OrganizationID != orgID {
		return nil, repository.ErrNotFound
	}
	out := r.hydrate(sale)
	return &out, nil
}

func (r *saleRepo) List(_ context.Context, orgID uuid.UUID, filter repository.SaleFilter) ([]model.Sale, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []model.Sale
	for _, sale := range r.s.st.sales {
		if sale.OrganizationID != orgID {
			continue
		}
		if filter.CustomerID != nil && (sale.CustomerID == nil || *sale.CustomerID != *filter.CustomerID) {
			continue
		}
		if filter.Date != nil {
			y1, m1, d1 := sale.CreatedAt.In(filter.Date.Location()).Date()
			y2, m2, d2 := filter.Date.Date()
			if y1 != y2 || m1 != m2 || d1 != d2 {
				continue
			}
		}
		rows = append(rows, r.hydrate(sale))
	}
	slices.SortFunc(rows, func(a, b model.Sale) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(rows, filter.Page, filter.Limit, 50, 200), int64(len(rows)), nil
}

// hydrate attaches products and customer the way the GORM preloads do.
func (r *saleRepo) hydrate(sale model.Sale) model.Sale {
	sale.Items = slices.Clone(sale.Items)
	for i := range sale.Items {
		if p, ok := r.s.st.products[sale.Items[i].ProductID]; ok {
			sale.Items[i].Product = &p
		}
	}
	if sale.CustomerID != nil {
		if c, ok := r.s.st.customers[*sale.CustomerID]; ok {
			sale.Customer = &c
		}
	}
	return sale
}

// ── Inventory movements ──────────────────────────────────────────────────────

type movementRepo struct{ s *Store }

func (r *movementRepo) CreateTx(_ context.Context, _ *gorm.DB, m *model.InventoryMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&m.ID)
	m.CreatedAt = r.s.now()
	r.s.st.movements = append(r.s.st.movements, *m)
	return nil
}

func (r *movementRepo) List(_ context.Context, orgID uuid.UUID, filter repository.MovementFilter) ([]model.InventoryMovement, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []model.InventoryMovement
	for i := len(r.s.st.movements) - 1; i >= 0; i-- {
		m := r.s.st.movements[i]
		if m.OrganizationID != orgID {
			continue
		}
		if filter.ProductID != nil && m.ProductID != *filter.ProductID {
			continue
		}
		if filter.ReferenceID != nil && (m.ReferenceID == nil || *m.ReferenceID != *filter.ReferenceID) {
			continue
		}
		rows = append(rows, m)
	}
	return paginate(rows, filter.Page, filter.Limit, 100, 500), int64(len(rows)), nil
}
