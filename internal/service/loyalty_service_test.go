package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/apierror"
	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"
	"github.com/eduardojeem/Mipos-sub008/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePointsForPurchase(t *testing.T) {
	program := &model.LoyaltyProgram{PointsPerPurchase: dec("0.02"), MinimumPurchase: dec("100")}
	tier := &model.LoyaltyTier{Multiplier: dec("1.5")}

	assert.Equal(t, int64(7), service.CalculatePointsForPurchase(program, dec("250"), tier))
	assert.Equal(t, int64(5), service.CalculatePointsForPurchase(program, dec("250"), nil))
	assert.Equal(t, int64(0), service.CalculatePointsForPurchase(program, dec("99.99"), tier), "below minimum")
	assert.Equal(t, int64(2), service.CalculatePointsForPurchase(program, dec("100"), nil), "minimum is inclusive")
}

func TestSelectTier_BoundaryFavoursHigherTier(t *testing.T) {
	m1, m2 := int64(499), int64(1999)
	tiers := []model.LoyaltyTier{
		{Name: "Bronze", MinPoints: 0, MaxPoints: &m1, Multiplier: dec("1")},
		{Name: "Silver", MinPoints: 500, MaxPoints: &m2, Multiplier: dec("1.2")},
		{Name: "Gold", MinPoints: 2000, Multiplier: dec("1.5")},
	}

	assert.Equal(t, "Silver", service.SelectTier(tiers, 500).Name)
	assert.Equal(t, "Bronze", service.SelectTier(tiers, 499).Name)
	assert.Equal(t, "Gold", service.SelectTier(tiers, 1_000_000).Name)
	assert.Nil(t, service.SelectTier(tiers[1:], 10))
}

func TestCreateTier_RejectsOverlapAndBadRanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1")})

	max := int64(700)
	_, err := f.loyalty.CreateTier(ctx, f.admin, prog.ID, dto.TierRequest{Name: "Overlap", MinPoints: 450, MaxPoints: &max, Multiplier: dec("1")})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))

	low := int64(10)
	_, err = f.loyalty.CreateTier(ctx, f.admin, prog.ID, dto.TierRequest{Name: "Inverted", MinPoints: 20, MaxPoints: &low, Multiplier: dec("1")})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))

	_, err = f.loyalty.CreateTier(ctx, f.admin, uuid.New(), dto.TierRequest{Name: "Orphan", Multiplier: dec("1")})
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))

	tiers, err := f.loyalty.ListTiers(ctx, f.admin, prog.ID)
	require.NoError(t, err)
	require.Len(t, tiers, 3)

	// updating a tier in place does not collide with itself
	gold := tiers[2]
	updated, err := f.loyalty.UpdateTier(ctx, f.admin, prog.ID, gold.ID, dto.TierRequest{Name: "Gold+", MinPoints: 2000, Multiplier: dec("2")})
	require.NoError(t, err)
	assert.Equal(t, "Gold+", updated.Name)
	assert.Equal(t, "2", updated.Multiplier.String())
}

func TestEnroll_WelcomeAndReferralBonuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1"), WelcomeBonus: 50, ReferralBonus: 25})
	ana := f.customer("Ana", nil)
	bo := f.customer("Bo", nil)

	anaEnr := f.enroll(ana, prog.ID)
	assert.Equal(t, int64(50), anaEnr.CurrentPoints)
	require.NotNil(t, anaEnr.TierID)
	assert.Equal(t, "Bronze", anaEnr.Tier.Name)

	ref := ana.String()
	boEnr, err := f.loyalty.Enroll(ctx, f.cashier, dto.EnrollRequest{CustomerID: bo.String(), ProgramID: prog.ID.String(), ReferrerCustomerID: &ref})
	require.NoError(t, err)
	assert.Equal(t, int64(50), boEnr.CurrentPoints)

	anaEnr = f.enrollment(anaEnr.ID)
	assert.Equal(t, int64(75), anaEnr.CurrentPoints)
	assert.Equal(t, int64(75), anaEnr.TotalPointsEarned)

	txs, err := f.loyalty.ListTransactions(ctx, f.admin, anaEnr.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, model.ReferenceReferral, *txs[0].Reference)
	assert.Equal(t, bo.String(), txs[0].Metadata["referred_customer_id"])

	_, err = f.loyalty.Enroll(ctx, f.cashier, dto.EnrollRequest{CustomerID: ana.String(), ProgramID: prog.ID.String()})
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))
}

func TestEnroll_SelfReferralAndUnknownReferrer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1"), ReferralBonus: 25})
	cy := f.customer("Cy", nil)

	self := cy.String()
	_, err := f.loyalty.Enroll(ctx, f.cashier, dto.EnrollRequest{CustomerID: cy.String(), ProgramID: prog.ID.String(), ReferrerCustomerID: &self})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))

	stranger := uuid.NewString()
	e, err := f.loyalty.Enroll(ctx, f.cashier, dto.EnrollRequest{CustomerID: cy.String(), ProgramID: prog.ID.String(), ReferrerCustomerID: &stranger})
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.CurrentPoints)
}

func TestAdjustPoints_BalanceRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1")})
	e := f.enroll(f.customer("Di", nil), prog.ID)

	_, err := f.loyalty.AdjustPoints(ctx, f.supervisor, e.ID, dto.AdjustPointsRequest{Points: 0, Description: "noop"})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))

	_, err = f.loyalty.AdjustPoints(ctx, f.supervisor, e.ID, dto.AdjustPointsRequest{Points: 600, Description: "goodwill"})
	require.NoError(t, err)
	got := f.enrollment(e.ID)
	assert.Equal(t, int64(600), got.CurrentPoints)
	assert.Equal(t, "Silver", got.Tier.Name, "crossing 500 promotes")

	_, err = f.loyalty.AdjustPoints(ctx, f.supervisor, e.ID, dto.AdjustPointsRequest{Points: -700, Description: "too much"})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))

	_, err = f.loyalty.AdjustPoints(ctx, f.supervisor, e.ID, dto.AdjustPointsRequest{Points: -150, Description: "correction"})
	require.NoError(t, err)
	got = f.enrollment(e.ID)
	assert.Equal(t, int64(450), got.CurrentPoints)
	assert.Equal(t, int64(600), got.TotalPointsEarned)
	assert.Equal(t, int64(150), got.TotalPointsUsed)
	assert.Equal(t, "Bronze", got.Tier.Name, "dropping below 500 demotes")
}

func TestAddPointsForPurchase_UsesTierMultiplier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1"), MinimumPurchase: dec("5")})
	e := f.enroll(f.customer("Ed", nil), prog.ID)

	entry, err := f.loyalty.AddPointsForPurchase(ctx, f.cashier, e.ID, dec("4.99"), nil)
	require.NoError(t, err)
	assert.Nil(t, entry, "below minimum earns nothing")

	_, err = f.loyalty.AdjustPoints(ctx, f.admin, e.ID, dto.AdjustPointsRequest{Points: 2000, Description: "vip"})
	require.NoError(t, err)

	entry, err = f.loyalty.AddPointsForPurchase(ctx, f.cashier, e.ID, dec("10.90"), strPtr("POS-42"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(15), entry.Points, "floor(floor(10.90)*1.5)")
	assert.Equal(t, "Gold", entry.Metadata["tier"])
	assert.Equal(t, int64(2015), f.enrollment(e.ID).CurrentPoints)
}

func TestExpirePoints_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	days := 30
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1"), WelcomeBonus: 100, PointsExpirationDays: &days})
	e := f.enroll(f.customer("Flo", nil), prog.ID)
	_, err := f.loyalty.AddPointsForPurchase(ctx, f.cashier, e.ID, dec("200"), nil)
	require.NoError(t, err)

	n, err := f.loyalty.ExpirePoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "nothing is due yet")

	f.advance(31 * 24 * time.Hour)
	n, err = f.loyalty.ExpirePoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got := f.enrollment(e.ID)
	assert.Equal(t, int64(0), got.CurrentPoints)
	assert.Equal(t, int64(300), got.TotalPointsUsed)

	n, err = f.loyalty.ExpirePoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second run writes nothing")
	assert.Equal(t, got.CurrentPoints, f.enrollment(e.ID).CurrentPoints)
}

func TestExpirePoints_CapsAtCurrentBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	days := 10
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1"), WelcomeBonus: 100, PointsExpirationDays: &days})
	e := f.enroll(f.customer("Gus", nil), prog.ID)
	_, err := f.loyalty.AdjustPoints(ctx, f.admin, e.ID, dto.AdjustPointsRequest{Points: -80, Description: "spent"})
	require.NoError(t, err)

	f.advance(11 * 24 * time.Hour)
	n, err := f.loyalty.ExpirePoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := f.enrollment(e.ID)
	assert.Equal(t, int64(0), got.CurrentPoints)
	assert.Equal(t, got.TotalPointsEarned-got.TotalPointsUsed, got.CurrentPoints)

	txs, err := f.loyalty.ListTransactions(ctx, f.admin, e.ID, 1)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.PointsExpired, txs[0].Type)
	assert.Equal(t, int64(-20), txs[0].Points)
}

func TestProcessBirthdayBonuses_OncePerYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1"), BirthdayBonus: 30})
	e := f.enroll(f.customer("Hal", strPtr("1990-06-10")), prog.ID)
	f.enroll(f.customer("Ivy", strPtr("1991-07-01")), prog.ID)

	n, err := f.loyalty.ProcessBirthdayBonuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.loyalty.ProcessBirthdayBonuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(30), f.enrollment(e.ID).CurrentPoints)

	f.advance(365 * 24 * time.Hour)
	n, err = f.loyalty.ProcessBirthdayBonuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "awarded again the next calendar year")
}

func TestProcessBirthdayBonuses_LeapDayOnFeb28(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1"), BirthdayBonus: 10})
	f.enroll(f.customer("Jo", strPtr("2000-02-29")), prog.ID)

	f.setNow(time.Date(2024, time.February, 28, 9, 0, 0, 0, time.UTC))
	n, err := f.loyalty.ProcessBirthdayBonuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "leap years wait for Feb 29")

	f.setNow(time.Date(2025, time.February, 28, 9, 0, 0, 0, time.UTC))
	n, err = f.loyalty.ProcessBirthdayBonuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRetryCredit_NeverDoubleCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("oil", "40.00", "0", 5)
	c := f.customer("Kim", nil)
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1")})
	e := f.enroll(c, prog.ID)

	req := saleReq(model.PaymentCard, line(p, 1))
	req.CustomerID = strPtr(c.String())
	resp, err := f.sales.CreateSale(ctx, f.cashier, req)
	require.NoError(t, err)
	require.Equal(t, string(service.CreditCredited), resp.Loyalty.Status)
	saleID := uuid.MustParse(resp.Sale.ID)

	require.NoError(t, f.loyalty.RetryCredit(ctx, f.org, saleID))
	assert.Equal(t, int64(40), f.enrollment(e.ID).CurrentPoints)

	out := f.loyalty.CreditSaleByID(ctx, f.org, saleID)
	assert.Equal(t, service.CreditSkipped, out.Status)
	assert.Equal(t, "sale already credited", out.Reason)

	out = f.loyalty.CreditSaleByID(ctx, f.org, uuid.New())
	assert.Equal(t, "sale not found", out.Reason)
}

// blindLedger never sees existing rows, like a retry whose existence check
// ran before a concurrent credit committed.
type blindLedger struct{ repository.LoyaltyRepository }

func (blindLedger) HasEntry(context.Context, uuid.UUID, string, string, *time.Time) (bool, error) {
	return false, nil
}

func TestCreditSale_DuplicateInsertIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("flour", "25.00", "0", 5)
	c := f.customer("Noa", nil)
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1")})
	e := f.enroll(c, prog.ID)

	req := saleReq(model.PaymentCard, line(p, 1))
	req.CustomerID = strPtr(c.String())
	resp, err := f.sales.CreateSale(ctx, f.cashier, req)
	require.NoError(t, err)
	require.Equal(t, string(service.CreditCredited), resp.Loyalty.Status)

	racer := service.NewLoyaltyService(f.repos.Tx, blindLedger{f.repos.Loyalty}, f.repos.Customers, f.repos.Sales, f.clock)
	out := racer.CreditSaleByID(ctx, f.org, uuid.MustParse(resp.Sale.ID))
	assert.Equal(t, service.CreditSkipped, out.Status)
	assert.Equal(t, "sale already credited", out.Reason)

	got := f.enrollment(e.ID)
	assert.Equal(t, int64(25), got.CurrentPoints)
	assert.Equal(t, int64(25), got.TotalPointsEarned)
}
