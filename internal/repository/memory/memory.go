// Package memory is an in-process implementation of the repository
// interfaces. WithinTx serializes transactions and restores a snapshot when fn
// fails, which gives the sale pipeline the same all-or-nothing behaviour it
// gets from PostgreSQL. Writes made outside WithinTx while a transaction is
// running can be lost on rollback; callers in tests do not mix the two.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type state struct {
	products        map[uuid.UUID]model.Product
	customers       map[uuid.UUID]model.Customer
	sales           map[uuid.UUID]model.Sale
	movements       []model.InventoryMovement
	sessions        map[uuid.UUID]model.CashSession
	cashMovements   []model.CashMovement
	programs        map[uuid.UUID]model.LoyaltyProgram
	tiers           map[uuid.UUID]model.LoyaltyTier
	enrollments     map[uuid.UUID]model.CustomerLoyalty
	ledger          []model.PointsTransaction
	rewards         map[uuid.UUID]model.Reward
	customerRewards map[uuid.UUID]model.CustomerReward
}

func (s *state) clone() state {
	return state{
		products:        maps.Clone(s.products),
		customers:       maps.Clone(s.customers),
		sales:           maps.Clone(s.sales),
		movements:       slices.Clone(s.movements),
		sessions:        maps.Clone(s.sessions),
		cashMovements:   slices.Clone(s.cashMovements),
		programs:        maps.Clone(s.programs),
		tiers:           maps.Clone(s.tiers),
		enrollments:     maps.Clone(s.enrollments),
		ledger:          slices.Clone(s.ledger),
		rewards:         maps.Clone(s.rewards),
		customerRewards: maps.Clone(s.customerRewards),
	}
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state
	now  func() time.Time
}

func New() *Store {
	return &Store{
		st: state{
			products:        map[uuid.UUID]model.Product{},
			customers:       map[uuid.UUID]model.Customer{},
			sales:           map[uuid.UUID]model.Sale{},
			sessions:        map[uuid.UUID]model.CashSession{},
			programs:        map[uuid.UUID]model.LoyaltyProgram{},
			tiers:           map[uuid.UUID]model.LoyaltyTier{},
			enrollments:     map[uuid.UUID]model.CustomerLoyalty{},
			rewards:         map[uuid.UUID]model.Reward{},
			customerRewards: map[uuid.UUID]model.CustomerReward{},
		},
		now: time.Now,
	}
}

// SetClock overrides the time source used for CreatedAt stamps.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) WithinTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Products() repository.ProductRepository { return &productRepo{s} }
func (s *Store) Customers() repository.CustomerRepository {
	return &customerRepo{s}
}
func (s *Store) Sales() repository.SaleRepository { return &saleRepo{s} }
func (s *Store) Movements() repository.InventoryMovementRepository {
	return &movementRepo{s}
}
func (s *Store) Cash() repository.CashRepository       { return &cashRepo{s} }
func (s *Store) Loyalty() repository.LoyaltyRepository { return &loyaltyRepo{s} }
func (s *Store) Rewards() repository.RewardRepository  { return &rewardRepo{s} }

var _ repository.Transactor = (*Store)(nil)

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func paginate[T any](rows []T, page, limit, def, max int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > max {
		limit = def
	}
	start := (page - 1) * limit
	if start >= len(rows) {
		return []T{}
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// Set returns the store's repositories with the store as transactor.
func (s *Store) Set() repository.Set {
	return repository.Set{
		Tx:        s,
		Products:  s.Products(),
		Customers: s.Customers(),
		Sales:     s.Sales(),
		Movements: s.Movements(),
		Cash:      s.Cash(),
		Loyalty:   s.Loyalty(),
		Rewards:   s.Rewards(),
	}
}
