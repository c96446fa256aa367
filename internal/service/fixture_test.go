package service_test

// fixture_test.go
// Shared wiring for service tests: every service over one in-memory store,
// a fixed clock and helpers that seed catalog and loyalty data.

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"
	"github.com/eduardojeem/Mipos-sub008/internal/repository/memory"
	"github.com/eduardojeem/Mipos-sub008/internal/service"
	"github.com/eduardojeem/Mipos-sub008/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t     *testing.T
	store *memory.Store
	repos repository.Set

	mu  sync.Mutex
	now time.Time

	org        uuid.UUID
	cashier    service.Actor
	supervisor service.Actor
	admin      service.Actor

	catalog service.CatalogService
	cash    service.CashService
	loyalty service.LoyaltyService
	sales   service.SaleService
	rewards service.RewardService
	retry   *recordingQueue
}

// recordingQueue captures loyalty retry jobs instead of pushing to Redis.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []worker.LoyaltyCreditJob
}

func (q *recordingQueue) EnqueueLoyaltyCredit(_ context.Context, job worker.LoyaltyCreditJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Jobs() []worker.LoyaltyCreditJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]worker.LoyaltyCreditJob(nil), q.jobs...)
}

// failingCrediter always reports a failed credit.
type failingCrediter struct{}

func (failingCrediter) CreditSale(_ context.Context, _ *model.Sale) service.LoyaltyOutcome {
	return service.LoyaltyOutcome{Status: service.CreditFailed, Reason: "internal server error"}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		store: memory.New(),
		now:   time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC),
		org:   uuid.New(),
		retry: &recordingQueue{},
	}
	f.store.SetClock(f.clock)
	f.repos = f.store.Set()
	f.cashier = service.Actor{UserID: uuid.New(), OrganizationID: f.org, Role: service.RoleCashier}
	f.supervisor = service.Actor{UserID: uuid.New(), OrganizationID: f.org, Role: service.RoleSupervisor}
	f.admin = service.Actor{UserID: uuid.New(), OrganizationID: f.org, Role: service.RoleAdmin}
	f.wire(nil)
	return f
}

// wire builds the services; crediter overrides the loyalty step when non-nil.
func (f *fixture) wire(crediter service.LoyaltyCrediter) {
	f.catalog = service.NewCatalogService(f.repos.Products, f.repos.Customers)
	f.cash = service.NewCashService(f.repos.Cash, f.clock)
	f.loyalty = service.NewLoyaltyService(f.repos.Tx, f.repos.Loyalty, f.repos.Customers, f.repos.Sales, f.clock)
	if crediter == nil {
		crediter = f.loyalty
	}
	f.sales = service.NewSaleService(service.SaleDeps{
		Tx:        f.repos.Tx,
		Products:  f.repos.Products,
		Customers: f.repos.Customers,
		Sales:     f.repos.Sales,
		Movements: f.repos.Movements,
		Cash:      f.cash,
		CashRepo:  f.repos.Cash,
		Pricing:   service.NewPricingResolver(service.DefaultDiscountPolicy(), service.DefaultRolePermissions()),
		Loyalty:   crediter,
		Retry:     f.retry,
		Clock:     f.clock,
	})
	f.rewards = service.NewRewardService(f.repos.Tx, f.repos.Rewards, f.repos.Loyalty, f.repos.Sales, f.loyalty, f.clock)
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *fixture) product(name, price, taxRate string, stock int) uuid.UUID {
	f.t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), f.admin, dto.CreateProductRequest{
		Name:          name,
		SKU:           "SKU-" + name,
		SalePrice:     decimal.RequireFromString(price),
		TaxRate:       decimal.RequireFromString(taxRate),
		StockQuantity: stock,
	})
	require.NoError(f.t, err)
	return uuid.MustParse(p.ID)
}

func (f *fixture) stock(id uuid.UUID) int {
	f.t.Helper()
	p, err := f.catalog.GetProduct(context.Background(), f.admin, id)
	require.NoError(f.t, err)
	return p.StockQuantity
}

func (f *fixture) customer(name string, birthDate *string) uuid.UUID {
	f.t.Helper()
	c, err := f.catalog.CreateCustomer(context.Background(), f.admin, dto.CreateCustomerRequest{Name: name, BirthDate: birthDate})
	require.NoError(f.t, err)
	return uuid.MustParse(c.ID)
}

func (f *fixture) openSession(amount string) *dto.CashSessionReport {
	f.t.Helper()
	r, err := f.cash.OpenSession(context.Background(), f.cashier, dto.OpenCashSessionRequest{OpeningAmount: decimal.RequireFromString(amount)})
	require.NoError(f.t, err)
	return r
}

// program creates an active program with the usual three-tier ladder.
func (f *fixture) program(req dto.CreateProgramRequest) *model.LoyaltyProgram {
	f.t.Helper()
	ctx := context.Background()
	if req.Name == "" {
		req.Name = "Rewards"
	}
	p, err := f.loyalty.CreateProgram(ctx, f.admin, req)
	require.NoError(f.t, err)

	m1, m2 := int64(499), int64(1999)
	for _, tr := range []dto.TierRequest{
		{Name: "Bronze", MinPoints: 0, MaxPoints: &m1, Multiplier: decimal.NewFromInt(1)},
		{Name: "Silver", MinPoints: 500, MaxPoints: &m2, Multiplier: decimal.RequireFromString("1.2")},
		{Name: "Gold", MinPoints: 2000, Multiplier: decimal.RequireFromString("1.5")},
	} {
		_, err := f.loyalty.CreateTier(ctx, f.admin, p.ID, tr)
		require.NoError(f.t, err)
	}
	return p
}

func (f *fixture) enroll(customerID, programID uuid.UUID) *model.CustomerLoyalty {
	f.t.Helper()
	e, err := f.loyalty.Enroll(context.Background(), f.cashier, dto.EnrollRequest{
		CustomerID: customerID.String(),
		ProgramID:  programID.String(),
	})
	require.NoError(f.t, err)
	return e
}

func (f *fixture) enrollment(id uuid.UUID) *model.CustomerLoyalty {
	f.t.Helper()
	e, err := f.loyalty.GetEnrollment(context.Background(), f.admin, id)
	require.NoError(f.t, err)
	return e
}

func saleReq(method string, lines ...dto.SaleItemRequest) dto.CreateSaleRequest {
	return dto.CreateSaleRequest{Items: lines, PaymentMethod: method}
}

func line(id uuid.UUID, qty int) dto.SaleItemRequest {
	return dto.SaleItemRequest{ProductID: id.String(), Quantity: qty}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }
