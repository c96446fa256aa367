package infra

import (
	"fmt"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and migrates the
// schema. TranslateError maps unique violations to gorm.ErrDuplicatedKey,
// which the repositories rely on.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table, then applies the constraints
// AutoMigrate cannot express. Safe to run on every start.
func RunMigrations(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return fmt.Errorf("pgcrypto: %w", err)
	}
	if err := db.AutoMigrate(
		&model.Product{},
		&model.Customer{},
		&model.Sale{},
		&model.SaleItem{},
		&model.InventoryMovement{},
		&model.CashSession{},
		&model.CashMovement{},
		&model.LoyaltyProgram{},
		&model.LoyaltyTier{},
		&model.CustomerLoyalty{},
		&model.PointsTransaction{},
		&model.Reward{},
		&model.CustomerReward{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// handle on its own (partial indexes, CHECK constraints). Each statement is
// guarded so re-running on an already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// Stock never drops below zero, even if a caller skips the lock.
		{"products stock check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_products_stock_non_negative') THEN
    ALTER TABLE products ADD CONSTRAINT chk_products_stock_non_negative CHECK (stock_quantity >= 0);
  END IF;
END $$`},
		// At most one OPEN cash session per organization.
		{"one open cash session per org",
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_cash_sessions_one_open
			   ON cash_sessions (organization_id) WHERE status = 'OPEN'`},
		{"loyalty balance check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_customer_loyalties_balance') THEN
    ALTER TABLE customer_loyalties ADD CONSTRAINT chk_customer_loyalties_balance
      CHECK (current_points = total_points_earned - total_points_used);
  END IF;
END $$`},
		// Expiration scan: expirable rows by due date.
		{"points expiry index",
			`CREATE INDEX IF NOT EXISTS idx_points_transactions_expirable
			   ON points_transactions (expires_at)
			   WHERE type IN ('EARNED', 'BONUS') AND expires_at IS NOT NULL`},
		// Idempotency lookups by (enrollment, type, reference).
		{"points reference index",
			`CREATE INDEX IF NOT EXISTS idx_points_transactions_ref
			   ON points_transactions (customer_loyalty_id, type, reference)`},
		// A sale is credited once and a source row expires once, even when two
		// retries pass the existence check concurrently.
		{"points reference uniqueness",
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_points_transactions_once
			   ON points_transactions (customer_loyalty_id, type, reference)
			   WHERE type IN ('EARNED', 'EXPIRED') AND reference IS NOT NULL`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
