package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned by every implementation for missing rows.
	ErrNotFound           = gorm.ErrRecordNotFound
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrRewardExhausted    = errors.New("reward redemption limit reached")
	ErrStaleRewardState   = errors.New("customer reward changed status concurrently")
	ErrDuplicate          = errors.New("duplicate record")
)

// Transactor runs fn as one atomic unit. Repository methods suffixed Tx (or
// taking a tx argument) must be given the tx handed to fn.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// maxTxAttempts bounds how often a transaction aborted by a serialization
// failure is replayed. Every round lets at least one contender commit.
const maxTxAttempts = 10

type gormTransactor struct{ db *gorm.DB }

func NewTransactor(db *gorm.DB) Transactor { return &gormTransactor{db: db} }

// WithinTx opens a REPEATABLE READ transaction so two sales cannot both act
// on the same pre-decrement stock value. A transaction that blocked on a row
// lock and lost the race is aborted by PostgreSQL with 40001; fn is replayed
// on a fresh snapshot in that case, so it must not keep state between calls.
func (t *gormTransactor) WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = t.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
		if !isSerializationFailure(err) {
			return err
		}
		log.Debug().Int("attempt", attempt).Err(err).Msg("tx: serialization failure, replaying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 5 * time.Millisecond):
		}
	}
	return err
}

// isSerializationFailure matches serialization_failure and deadlock_detected.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// conn returns tx when the caller is inside a transaction, db otherwise.
func conn(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// byOrg scopes a query to one organization.
func byOrg(orgID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("organization_id = ?", orgID)
	}
}

// isUniqueViolation relies on gorm.Config.TranslateError being enabled.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func normalizePage(page, limit, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > max {
		limit = def
	}
	return page, limit
}

// Set groups one storage backend's repositories.
type Set struct {
	Tx        Transactor
	Products  ProductRepository
	Customers CustomerRepository
	Sales     SaleRepository
	Movements InventoryMovementRepository
	Cash      CashRepository
	Loyalty   LoyaltyRepository
	Rewards   RewardRepository
}

// NewSet returns the PostgreSQL-backed repositories.
func NewSet(db *gorm.DB) Set {
	return Set{
		Tx:        NewTransactor(db),
		Products:  NewProductRepository(db),
		Customers: NewCustomerRepository(db),
		Sales:     NewSaleRepository(db),
		Movements: NewInventoryMovementRepository(db),
		Cash:      NewCashRepository(db),
		Loyalty:   NewLoyaltyRepository(db),
		Rewards:   NewRewardRepository(db),
	}
}
