// seed creates demo catalog and loyalty data for one organization.
// Usage: go run ./cmd/seed -org <uuid>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/eduardojeem/Mipos-sub008/internal/config"
	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/infra"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"
	"github.com/eduardojeem/Mipos-sub008/internal/router"
	"github.com/eduardojeem/Mipos-sub008/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	org := flag.String("org", "", "organization id (random when empty)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	svcs := router.NewServices(cfg, repository.NewSet(db), nil)

	orgID := uuid.New()
	if *org != "" {
		if orgID, err = uuid.Parse(*org); err != nil {
			log.Fatal().Err(err).Msg("invalid -org")
		}
	}
	actor := service.Actor{UserID: uuid.New(), OrganizationID: orgID, Role: service.RoleAdmin}

	if err := seed(context.Background(), svcs, actor); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	fmt.Printf("seeded organization %s\n", orgID)
}

func seed(ctx context.Context, svcs *router.Services, actor service.Actor) error {
	products := []dto.CreateProductRequest{
		{Name: "Coffee beans 1kg", SKU: "COF-1KG", SalePrice: decimal.RequireFromString("18.50"), TaxRate: decimal.NewFromInt(21), StockQuantity: 40},
		{Name: "Paper cups x50", SKU: "CUP-50", SalePrice: decimal.RequireFromString("4.25"), TaxRate: decimal.NewFromInt(21), StockQuantity: 200},
		{Name: "Oat milk 1l", SKU: "OAT-1L", SalePrice: decimal.RequireFromString("2.90"), TaxRate: decimal.RequireFromString("10.5"), StockQuantity: 60},
	}
	for _, p := range products {
		res, err := svcs.Catalog.CreateProduct(ctx, actor, p)
		if err != nil {
			return fmt.Errorf("product %s: %w", p.SKU, err)
		}
		log.Info().Str("id", res.ID).Str("sku", res.SKU).Msg("product")
	}

	expiry := 365
	prog, err := svcs.Loyalty.CreateProgram(ctx, actor, dto.CreateProgramRequest{
		Name:                 "Demo rewards",
		PointsPerPurchase:    decimal.NewFromInt(1),
		MinimumPurchase:      decimal.NewFromInt(5),
		PointsExpirationDays: &expiry,
		WelcomeBonus:         50,
		BirthdayBonus:        100,
		ReferralBonus:        25,
	})
	if err != nil {
		return fmt.Errorf("program: %w", err)
	}
	log.Info().Str("id", prog.ID.String()).Msg("loyalty program")

	silverMax, goldMax := int64(499), int64(1999)
	tiers := []dto.TierRequest{
		{Name: "Silver", MinPoints: 0, MaxPoints: &silverMax, Multiplier: decimal.NewFromInt(1)},
		{Name: "Gold", MinPoints: 500, MaxPoints: &goldMax, Multiplier: decimal.RequireFromString("1.5")},
		{Name: "Platinum", MinPoints: 2000, Multiplier: decimal.NewFromInt(2)},
	}
	for _, t := range tiers {
		if _, err := svcs.Loyalty.CreateTier(ctx, actor, prog.ID, t); err != nil {
			return fmt.Errorf("tier %s: %w", t.Name, err)
		}
	}

	email := "ana@example.com"
	birth := "1990-05-14"
	cust, err := svcs.Catalog.CreateCustomer(ctx, actor, dto.CreateCustomerRequest{Name: "Ana Demo", Email: &email, BirthDate: &birth})
	if err != nil {
		return fmt.Errorf("customer: %w", err)
	}
	enr, err := svcs.Loyalty.Enroll(ctx, actor, dto.EnrollRequest{CustomerID: cust.ID, ProgramID: prog.ID.String()})
	if err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	log.Info().Str("customer_id", cust.ID).Str("loyalty_id", enr.ID.String()).Int64("points", enr.CurrentPoints).Msg("enrolled")
	return nil
}
