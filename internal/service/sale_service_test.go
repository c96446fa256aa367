package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/eduardojeem/Mipos-sub008/internal/apierror"
	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSale_ComputesTotalsFromStoredPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coffee := f.product("coffee", "10.00", "21", 10)
	cups := f.product("cups", "2.50", "0", 100)

	req := saleReq(model.PaymentCard, line(coffee, 2), line(cups, 4))
	bogus := dec("0.01")
	req.Items[0].UnitPrice = &bogus

	resp, err := f.sales.CreateSale(ctx, f.cashier, req)
	require.NoError(t, err)

	assert.Equal(t, "30.00", resp.Summary.Subtotal.StringFixed(2))
	assert.Equal(t, "4.20", resp.Summary.Tax.StringFixed(2))
	assert.Equal(t, "34.20", resp.Summary.Total.StringFixed(2))
	assert.Equal(t, model.DiscountNone, resp.Summary.DiscountType)
	assert.Equal(t, 2, resp.Summary.ItemCount)
	assert.Equal(t, 6, resp.Summary.TotalQuantity)
	assert.Equal(t, "10.00", resp.Sale.Items[0].UnitPrice.StringFixed(2), "client unit price is ignored")
	assert.Equal(t, "SKU-coffee", resp.Sale.Items[0].SKU)

	assert.Equal(t, 8, f.stock(coffee))
	assert.Equal(t, 96, f.stock(cups))
}

func TestCreateSale_RecordsInventoryMovements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("tea", "4.00", "0", 5)

	resp, err := f.sales.CreateSale(ctx, f.cashier, saleReq(model.PaymentCard, line(p, 1), line(p, 2)))
	require.NoError(t, err)

	movs, err := f.sales.ListMovements(ctx, f.admin, dto.MovementFilter{SaleID: resp.Sale.ID, Page: 1, Limit: 50})
	require.NoError(t, err)
	require.Len(t, movs.Data, 2)

	// newest first
	assert.Equal(t, 4, movs.Data[0].StockBefore)
	assert.Equal(t, 2, movs.Data[0].StockAfter)
	assert.Equal(t, 5, movs.Data[1].StockBefore)
	assert.Equal(t, 4, movs.Data[1].StockAfter)
	for _, m := range movs.Data {
		assert.Equal(t, model.MovementOut, m.Direction)
		assert.Equal(t, "sale", m.Reason)
		require.NotNil(t, m.ReferenceID)
		assert.Equal(t, resp.Sale.ID, *m.ReferenceID)
	}
}

func TestCreateSale_ManualDiscountPolicy(t *testing.T) {
	cases := []struct {
		name   string
		actor  func(f *fixture) service.Actor
		value  string
		reason string
		kind   apierror.Kind
		ok     bool
	}{
		{"ten percent needs no reason", cashierOf, "10", "", 0, true},
		{"eleven percent needs a reason", cashierOf, "11", "", apierror.KindValidation, false},
		{"eleven percent with reason", cashierOf, "11", "loyal customer", 0, true},
		{"above twenty needs override", cashierOf, "21", "manager said so", apierror.KindPermission, false},
		{"supervisor may override", supervisorOf, "21", "damaged box", 0, true},
		{"over one hundred", supervisorOf, "101", "x", apierror.KindValidation, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.product("jam", "100.00", "0", 10)
			req := saleReq(model.PaymentCard, line(p, 1))
			req.ManualDiscount = &dto.ManualDiscountRequest{Type: model.DiscountPercentage, Value: dec(tc.value), Reason: tc.reason}

			resp, err := f.sales.CreateSale(context.Background(), tc.actor(f), req)
			if !tc.ok {
				require.Error(t, err)
				assert.Equal(t, tc.kind, apierror.KindOf(err))
				assert.Equal(t, 10, f.stock(p), "rejected sale must not touch stock")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, dec("100").Sub(dec(tc.value)).StringFixed(2), resp.Summary.Total.StringFixed(2))
		})
	}
}

func cashierOf(f *fixture) service.Actor    { return f.cashier }
func supervisorOf(f *fixture) service.Actor { return f.supervisor }

func TestCreateSale_FixedDiscountCappedAtSubtotal(t *testing.T) {
	f := newFixture(t)
	p := f.product("gum", "3.00", "10", 10)
	req := saleReq(model.PaymentCard, line(p, 2))
	req.ManualDiscount = &dto.ManualDiscountRequest{Type: model.DiscountFixedAmount, Value: dec("50")}

	resp, err := f.sales.CreateSale(context.Background(), f.cashier, req)
	require.NoError(t, err)
	assert.Equal(t, "6.00", resp.Summary.Discount.StringFixed(2))
	// tax is computed on the undiscounted subtotal
	assert.Equal(t, "0.60", resp.Summary.Total.StringFixed(2))
}

func TestCreateSale_SubCentDiscountRejectedBeforeWrite(t *testing.T) {
	f := newFixture(t)
	p := f.product("tea", "10.00", "0", 1)
	req := saleReq(model.PaymentCard, line(p, 1))
	req.ManualDiscount = &dto.ManualDiscountRequest{Type: model.DiscountFixedAmount, Value: dec("0.005")}

	_, err := f.sales.CreateSale(context.Background(), f.cashier, req)
	require.Error(t, err)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
	assert.Equal(t, 1, f.stock(p))

	_, err = f.catalog.CreateProduct(context.Background(), f.admin, dto.CreateProductRequest{
		Name: "odd", SKU: "ODD", SalePrice: dec("1.999"), TaxRate: dec("0"), StockQuantity: 1,
	})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
}

func TestCreateSale_CouponIsUnimplemented(t *testing.T) {
	f := newFixture(t)
	p := f.product("soap", "1.00", "0", 1)
	req := saleReq(model.PaymentCard, line(p, 1))
	req.CouponCode = strPtr("SUMMER")

	_, err := f.sales.CreateSale(context.Background(), f.cashier, req)
	require.Error(t, err)
	assert.Equal(t, apierror.KindUnimplemented, apierror.KindOf(err))
}

func TestCreateSale_UnknownProductOrCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("salt", "1.00", "0", 3)

	_, err := f.sales.CreateSale(ctx, f.cashier, saleReq(model.PaymentCard, line(uuid.New(), 1)))
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))

	req := saleReq(model.PaymentCard, line(p, 1))
	req.CustomerID = strPtr(uuid.NewString())
	_, err = f.sales.CreateSale(ctx, f.cashier, req)
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))

	other := service.Actor{UserID: uuid.New(), OrganizationID: uuid.New(), Role: service.RoleCashier}
	_, err = f.sales.CreateSale(ctx, other, saleReq(model.PaymentCard, line(p, 1)))
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err), "products are organization scoped")

	assert.Equal(t, 3, f.stock(p))
}

func TestCreateSale_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	p := f.product("rice", "2.00", "0", 3)

	// duplicate lines are summed before the check
	_, err := f.sales.CreateSale(context.Background(), f.cashier, saleReq(model.PaymentCard, line(p, 2), line(p, 2)))
	require.Error(t, err)
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))
	assert.Equal(t, 3, f.stock(p))
}

func TestCreateSale_ConcurrentSalesNeverOversell(t *testing.T) {
	const n, k = 20, 7
	f := newFixture(t)
	p := f.product("limited", "5.00", "0", k)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sales.CreateSale(context.Background(), f.cashier, saleReq(model.PaymentCard, line(p, 1)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apierror.Is(err, apierror.KindConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, k, succeeded)
	assert.Equal(t, n-k, conflicts)
	assert.Equal(t, 0, f.stock(p))
}

func TestCreateSale_CashRequiresOpenSession(t *testing.T) {
	f := newFixture(t)
	p := f.product("bread", "3.00", "0", 5)

	_, err := f.sales.CreateSale(context.Background(), f.cashier, saleReq(model.PaymentCash, line(p, 1)))
	require.Error(t, err)
	assert.Equal(t, apierror.KindPrecondition, apierror.KindOf(err))
	assert.Equal(t, 5, f.stock(p))
}

func TestCreateSale_CashSaleRecordsCashMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("milk", "1.50", "0", 5)
	session := f.openSession("100")

	req := saleReq(model.PaymentCash, line(p, 2))
	received, change := dec("5"), dec("2")
	req.CashReceived, req.Change = &received, &change
	resp, err := f.sales.CreateSale(ctx, f.cashier, req)
	require.NoError(t, err)
	assert.Equal(t, "5.00", resp.Sale.PaymentDetails["cash_received"])

	movs := f.store.CashMovements(uuid.MustParse(session.SessionID))
	require.Len(t, movs, 1)
	assert.Equal(t, model.CashMovementSale, movs[0].Type)
	assert.Equal(t, "3.00", movs[0].Amount.StringFixed(2))
	require.NotNil(t, movs[0].ReferenceID)
	assert.Equal(t, resp.Sale.ID, movs[0].ReferenceID.String())

	report, err := f.cash.CurrentSession(ctx, f.cashier)
	require.NoError(t, err)
	assert.Equal(t, "103.00", report.ExpectedAmount.StringFixed(2))
}

// staleCash reports an open session that no longer exists, as when the session
// is closed between the pre-check and the commit.
type staleCash struct{ service.CashService }

func (staleCash) FindOpenSession(_ context.Context, orgID uuid.UUID) (*model.CashSession, error) {
	return &model.CashSession{ID: uuid.New(), OrganizationID: orgID, Status: model.CashSessionOpen}, nil
}

func TestCreateSale_SessionClosedBeforeCommitKeepsSale(t *testing.T) {
	f := newFixture(t)
	p := f.product("eggs", "4.00", "0", 5)
	sales := service.NewSaleService(service.SaleDeps{
		Tx:        f.repos.Tx,
		Products:  f.repos.Products,
		Customers: f.repos.Customers,
		Sales:     f.repos.Sales,
		Movements: f.repos.Movements,
		Cash:      staleCash{f.cash},
		CashRepo:  f.repos.Cash,
		Pricing:   service.NewPricingResolver(service.DefaultDiscountPolicy(), service.DefaultRolePermissions()),
	})

	resp, err := sales.CreateSale(context.Background(), f.cashier, saleReq(model.PaymentCash, line(p, 1)))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Sale.ID)
	assert.Equal(t, 4, f.stock(p))
	assert.Equal(t, string(service.CreditSkipped), resp.Loyalty.Status)
}

func TestCreateSale_UpdatesCustomerTotalsAndCreditsPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("wine", "125.00", "0", 10)
	c := f.customer("Ana", nil)
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("0.02"), MinimumPurchase: dec("100")})
	e := f.enroll(c, prog.ID)

	req := saleReq(model.PaymentCard, line(p, 2))
	req.CustomerID = strPtr(c.String())
	resp, err := f.sales.CreateSale(ctx, f.cashier, req)
	require.NoError(t, err)

	assert.Equal(t, string(service.CreditCredited), resp.Loyalty.Status)
	assert.Equal(t, int64(5), resp.Loyalty.Points)
	require.NotNil(t, resp.Sale.Customer)
	assert.Equal(t, "250.00", resp.Sale.Customer.TotalPurchases.StringFixed(2))

	got := f.enrollment(e.ID)
	assert.Equal(t, int64(5), got.CurrentPoints)
	assert.Equal(t, got.TotalPointsEarned-got.TotalPointsUsed, got.CurrentPoints)

	list, err := f.sales.ListSales(ctx, f.admin, dto.SaleFilter{CustomerID: c.String(), Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
}

func TestCreateSale_LoyaltySkipReasons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("pen", "1.00", "0", 10)

	resp, err := f.sales.CreateSale(ctx, f.cashier, saleReq(model.PaymentCard, line(p, 1)))
	require.NoError(t, err)
	assert.Equal(t, "sale has no customer", resp.Loyalty.Reason)

	c := f.customer("Bo", nil)
	req := saleReq(model.PaymentCard, line(p, 1))
	req.CustomerID = strPtr(c.String())
	resp, err = f.sales.CreateSale(ctx, f.cashier, req)
	require.NoError(t, err)
	assert.Equal(t, "no active loyalty program", resp.Loyalty.Reason)

	f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1"), MinimumPurchase: dec("10")})
	resp, err = f.sales.CreateSale(ctx, f.cashier, req)
	require.NoError(t, err)
	assert.Equal(t, "customer is not enrolled", resp.Loyalty.Reason)
	assert.Equal(t, string(service.CreditSkipped), resp.Loyalty.Status)
}

func TestCreateSale_FailedCreditIsQueuedAndSaleSucceeds(t *testing.T) {
	f := newFixture(t)
	f.wire(failingCrediter{})
	p := f.product("cake", "12.00", "0", 2)
	c := f.customer("Cy", nil)

	req := saleReq(model.PaymentCard, line(p, 1))
	req.CustomerID = strPtr(c.String())
	resp, err := f.sales.CreateSale(context.Background(), f.cashier, req)
	require.NoError(t, err)
	assert.Equal(t, string(service.CreditFailed), resp.Loyalty.Status)

	jobs := f.retry.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, resp.Sale.ID, jobs[0].SaleID)
	assert.Equal(t, f.org.String(), jobs[0].OrganizationID)
	assert.Equal(t, c.String(), jobs[0].CustomerID)
}

func TestGetSale_OrganizationScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("box", "1.00", "0", 1)
	resp, err := f.sales.CreateSale(ctx, f.cashier, saleReq(model.PaymentCard, line(p, 1)))
	require.NoError(t, err)
	id := uuid.MustParse(resp.Sale.ID)

	got, err := f.sales.GetSale(ctx, f.admin, id)
	require.NoError(t, err)
	assert.Equal(t, resp.Sale.Total.String(), got.Total.String())

	other := service.Actor{UserID: uuid.New(), OrganizationID: uuid.New(), Role: service.RoleAdmin}
	_, err = f.sales.GetSale(ctx, other, id)
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
}

func TestListSales_RejectsBadDate(t *testing.T) {
	f := newFixture(t)
	_, err := f.sales.ListSales(context.Background(), f.admin, dto.SaleFilter{Date: "10/06/2025", Page: 1, Limit: 10})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
}
