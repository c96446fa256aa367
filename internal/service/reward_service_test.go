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

type rewardSetup struct {
	*fixture
	program  *model.LoyaltyProgram
	customer uuid.UUID
	enr      *model.CustomerLoyalty
}

func newRewardSetup(t *testing.T, points int64) *rewardSetup {
	f := newFixture(t)
	prog := f.program(dto.CreateProgramRequest{PointsPerPurchase: dec("1")})
	c := f.customer("Lia", nil)
	e := f.enroll(c, prog.ID)
	if points > 0 {
		_, err := f.loyalty.AdjustPoints(context.Background(), f.admin, e.ID, dto.AdjustPointsRequest{Points: points, Description: "opening balance"})
		require.NoError(t, err)
	}
	return &rewardSetup{fixture: f, program: prog, customer: c, enr: e}
}

func (s *rewardSetup) reward(req dto.CreateRewardRequest) *model.Reward {
	s.t.Helper()
	req.ProgramID = s.program.ID.String()
	if req.Name == "" {
		req.Name = "Free coffee"
	}
	r, err := s.rewards.CreateReward(context.Background(), s.admin, req)
	require.NoError(s.t, err)
	return r
}

func (s *rewardSetup) redeem(rewardID uuid.UUID) (*model.CustomerReward, error) {
	return s.rewards.RedeemReward(context.Background(), s.cashier, dto.RedeemRewardRequest{
		CustomerID: s.customer.String(),
		ProgramID:  s.program.ID.String(),
		RewardID:   rewardID.String(),
	})
}

func (s *rewardSetup) sale() string {
	s.t.Helper()
	p := s.product("filler-"+uuid.NewString()[:6], "1.00", "0", 1)
	resp, err := s.sales.CreateSale(context.Background(), s.cashier, saleReq(model.PaymentCard, line(p, 1)))
	require.NoError(s.t, err)
	return resp.Sale.ID
}

func TestRedeemReward_DebitsExactCost(t *testing.T) {
	s := newRewardSetup(t, 300)
	r := s.reward(dto.CreateRewardRequest{PointsCost: 120})

	cr, err := s.redeem(r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CustomerRewardAvailable, cr.Status)

	got := s.enrollment(s.enr.ID)
	assert.Equal(t, int64(180), got.CurrentPoints)
	assert.Equal(t, int64(120), got.TotalPointsUsed)

	txs, err := s.loyalty.ListTransactions(context.Background(), s.admin, s.enr.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.PointsRedeemed, txs[0].Type)
	assert.Equal(t, int64(-120), txs[0].Points)
	assert.Equal(t, cr.ID.String(), *txs[0].Reference)

	list, err := s.rewards.ListCustomerRewards(context.Background(), s.admin, s.enr.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r.ID, list[0].RewardID)
}

func TestRedeemReward_Failures(t *testing.T) {
	s := newRewardSetup(t, 100)
	ctx := context.Background()

	costly := s.reward(dto.CreateRewardRequest{PointsCost: 150})
	_, err := s.redeem(costly.ID)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err), "insufficient points")

	past := s.now.Add(-time.Hour)
	expired := s.reward(dto.CreateRewardRequest{PointsCost: 10, ValidUntil: &past})
	_, err = s.redeem(expired.ID)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))

	one := 1
	capped := s.reward(dto.CreateRewardRequest{PointsCost: 10, MaxRedemptions: &one})
	_, err = s.redeem(capped.ID)
	require.NoError(t, err)
	_, err = s.redeem(capped.ID)
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))

	_, err = s.redeem(uuid.New())
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))

	_, err = s.rewards.RedeemReward(ctx, s.cashier, dto.RedeemRewardRequest{
		CustomerID: uuid.NewString(),
		ProgramID:  s.program.ID.String(),
		RewardID:   capped.ID.String(),
	})
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err), "customer not enrolled")

	assert.Equal(t, int64(90), s.enrollment(s.enr.ID).CurrentPoints)
}

func TestUseCustomerReward_MarksUsed(t *testing.T) {
	s := newRewardSetup(t, 50)
	ctx := context.Background()
	cr, err := s.redeem(s.reward(dto.CreateRewardRequest{PointsCost: 20}).ID)
	require.NoError(t, err)
	saleID := s.sale()

	used, err := s.rewards.UseCustomerReward(ctx, s.cashier, cr.ID, dto.UseRewardRequest{SaleID: saleID})
	require.NoError(t, err)
	assert.Equal(t, model.CustomerRewardUsed, used.Status)
	require.NotNil(t, used.UsedInSaleID)
	assert.Equal(t, saleID, used.UsedInSaleID.String())

	_, err = s.rewards.UseCustomerReward(ctx, s.cashier, cr.ID, dto.UseRewardRequest{SaleID: saleID})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err), "cannot use twice")
}

// staleRewards serves customer rewards as they looked before any use, the
// view a request has when a concurrent use commits between its read and write.
type staleRewards struct{ repository.RewardRepository }

func (r staleRewards) FindCustomerReward(ctx context.Context, id uuid.UUID) (*model.CustomerReward, error) {
	cr, err := r.RewardRepository.FindCustomerReward(ctx, id)
	if err != nil {
		return nil, err
	}
	cr.Status, cr.UsedAt, cr.UsedInSaleID = model.CustomerRewardAvailable, nil, nil
	return cr, nil
}

func TestUseCustomerReward_LostRaceIsConflict(t *testing.T) {
	s := newRewardSetup(t, 50)
	ctx := context.Background()
	cr, err := s.redeem(s.reward(dto.CreateRewardRequest{PointsCost: 20}).ID)
	require.NoError(t, err)
	first, second := s.sale(), s.sale()

	racer := service.NewRewardService(s.repos.Tx, staleRewards{s.repos.Rewards}, s.repos.Loyalty, s.repos.Sales, s.loyalty, s.clock)

	_, err = racer.UseCustomerReward(ctx, s.cashier, cr.ID, dto.UseRewardRequest{SaleID: first})
	require.NoError(t, err)
	_, err = racer.UseCustomerReward(ctx, s.cashier, cr.ID, dto.UseRewardRequest{SaleID: second})
	require.Error(t, err)
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))

	stored, err := s.repos.Rewards.FindCustomerReward(ctx, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CustomerRewardUsed, stored.Status)
	require.NotNil(t, stored.UsedInSaleID)
	assert.Equal(t, first, stored.UsedInSaleID.String(), "the losing request must not overwrite the sale")
}

func TestUseCustomerReward_ExpiredFlipsStatus(t *testing.T) {
	s := newRewardSetup(t, 50)
	ctx := context.Background()
	until := s.now.Add(24 * time.Hour)
	cr, err := s.redeem(s.reward(dto.CreateRewardRequest{PointsCost: 20, ValidUntil: &until}).ID)
	require.NoError(t, err)
	require.NotNil(t, cr.ExpiresAt)
	saleID := s.sale()

	s.advance(48 * time.Hour)
	_, err = s.rewards.UseCustomerReward(ctx, s.cashier, cr.ID, dto.UseRewardRequest{SaleID: saleID})
	require.Error(t, err)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))

	list, err := s.rewards.ListCustomerRewards(ctx, s.admin, s.enr.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.CustomerRewardExpired, list[0].Status)
}

func TestUseCustomerReward_UnknownSale(t *testing.T) {
	s := newRewardSetup(t, 50)
	cr, err := s.redeem(s.reward(dto.CreateRewardRequest{PointsCost: 20}).ID)
	require.NoError(t, err)

	_, err = s.rewards.UseCustomerReward(context.Background(), s.cashier, cr.ID, dto.UseRewardRequest{SaleID: uuid.NewString()})
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
}
