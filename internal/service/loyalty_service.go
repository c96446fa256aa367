package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/apierror"
	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/metrics"
	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const expireBatchSize = 500

// CreditStatus is the result class of the post-commit loyalty step.
type CreditStatus string

const (
	CreditCredited CreditStatus = "credited"
	CreditSkipped  CreditStatus = "skipped"
	CreditFailed   CreditStatus = "failed"
)

// LoyaltyOutcome reports what crediting a sale did. Err is set only when
// Status is CreditFailed; the sale itself is never affected.
type LoyaltyOutcome struct {
	Status    CreditStatus
	Points    int64
	LoyaltyID uuid.UUID
	Reason    string
	Err       error
}

func skipped(reason string) LoyaltyOutcome { return LoyaltyOutcome{Status: CreditSkipped, Reason: reason} }

func failed(err error) LoyaltyOutcome {
	return LoyaltyOutcome{Status: CreditFailed, Reason: apierror.Public(err), Err: err}
}

type LoyaltyService interface {
	CreateProgram(ctx context.Context, actor Actor, req dto.CreateProgramRequest) (*model.LoyaltyProgram, error)
	GetProgram(ctx context.Context, actor Actor, id uuid.UUID) (*model.LoyaltyProgram, error)
	ListTiers(ctx context.Context, actor Actor, programID uuid.UUID) ([]model.LoyaltyTier, error)
	CreateTier(ctx context.Context, actor Actor, programID uuid.UUID, req dto.TierRequest) (*model.LoyaltyTier, error)
	UpdateTier(ctx context.Context, actor Actor, programID, tierID uuid.UUID, req dto.TierRequest) (*model.LoyaltyTier, error)

	Enroll(ctx context.Context, actor Actor, req dto.EnrollRequest) (*model.CustomerLoyalty, error)
	GetEnrollment(ctx context.Context, actor Actor, id uuid.UUID) (*model.CustomerLoyalty, error)
	ListTransactions(ctx context.Context, actor Actor, loyaltyID uuid.UUID, limit int) ([]model.PointsTransaction, error)

	// AddPointsForPurchase returns (nil, nil) when the amount earns no points.
	AddPointsForPurchase(ctx context.Context, actor Actor, loyaltyID uuid.UUID, amount decimal.Decimal, reference *string) (*model.PointsTransaction, error)
	AdjustPoints(ctx context.Context, actor Actor, loyaltyID uuid.UUID, req dto.AdjustPointsRequest) (*model.PointsTransaction, error)
	UpdateCustomerTier(ctx context.Context, loyaltyID uuid.UUID) (*model.LoyaltyTier, error)

	ExpirePoints(ctx context.Context) (int, error)
	ProcessBirthdayBonuses(ctx context.Context) (int, error)

	CreditSale(ctx context.Context, sale *model.Sale) LoyaltyOutcome
	CreditSaleByID(ctx context.Context, orgID, saleID uuid.UUID) LoyaltyOutcome
	// RetryCredit is CreditSaleByID for the retry worker: only a failed
	// outcome is an error.
	RetryCredit(ctx context.Context, orgID, saleID uuid.UUID) error
}

type loyaltyService struct {
	tx        repository.Transactor
	repo      repository.LoyaltyRepository
	customers repository.CustomerRepository
	sales     repository.SaleRepository
	clock     Clock
}

func NewLoyaltyService(
	tx repository.Transactor,
	repo repository.LoyaltyRepository,
	customers repository.CustomerRepository,
	sales repository.SaleRepository,
	clock Clock,
) LoyaltyService {
	return &loyaltyService{tx: tx, repo: repo, customers: customers, sales: sales, clock: clock}
}

// CalculatePointsForPurchase returns 0 below the program minimum, otherwise
// floor(amount × rate), then floor(base × multiplier) when a tier applies.
func CalculatePointsForPurchase(program *model.LoyaltyProgram, amount decimal.Decimal, tier *model.LoyaltyTier) int64 {
	if amount.LessThan(program.MinimumPurchase) {
		return 0
	}
	base := amount.Mul(program.PointsPerPurchase).Floor()
	if tier != nil {
		base = base.Mul(tier.Multiplier).Floor()
	}
	if !base.IsPositive() {
		return 0
	}
	return base.IntPart()
}

// SelectTier scans tiers from the highest min_points down and returns the
// first bracket containing points, or nil.
func SelectTier(tiers []model.LoyaltyTier, points int64) *model.LoyaltyTier {
	for i := len(tiers) - 1; i >= 0; i-- {
		if tiers[i].Contains(points) {
			t := tiers[i]
			return &t
		}
	}
	return nil
}

// ── Programs & tiers ──────────────────────────────────────────────────────────

func (s *loyaltyService) CreateProgram(ctx context.Context, actor Actor, req dto.CreateProgramRequest) (*model.LoyaltyProgram, error) {
	if !req.PointsPerPurchase.IsPositive() {
		return nil, apierror.Validation("points_per_purchase must be positive")
	}
	p := &model.LoyaltyProgram{
		OrganizationID:       actor.OrganizationID,
		Name:                 strings.TrimSpace(req.Name),
		PointsPerPurchase:    req.PointsPerPurchase,
		MinimumPurchase:      req.MinimumPurchase,
		PointsExpirationDays: req.PointsExpirationDays,
		WelcomeBonus:         req.WelcomeBonus,
		BirthdayBonus:        req.BirthdayBonus,
		ReferralBonus:        req.ReferralBonus,
		Active:               true,
	}
	if err := s.repo.CreateProgram(ctx, p); err != nil {
		return nil, apierror.Internal("failed to create loyalty program", err)
	}
	return p, nil
}

func (s *loyaltyService) GetProgram(ctx context.Context, actor Actor, id uuid.UUID) (*model.LoyaltyProgram, error) {
	p, err := s.repo.FindProgram(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, lookupErr(err, "loyalty program %s not found", id)
	}
	return p, nil
}

func (s *loyaltyService) ListTiers(ctx context.Context, actor Actor, programID uuid.UUID) ([]model.LoyaltyTier, error) {
	if _, err := s.GetProgram(ctx, actor, programID); err != nil {
		return nil, err
	}
	tiers, err := s.repo.ListTiers(ctx, programID)
	if err != nil {
		return nil, apierror.Internal("failed to list tiers", err)
	}
	return tiers, nil
}

func (s *loyaltyService) CreateTier(ctx context.Context, actor Actor, programID uuid.UUID, req dto.TierRequest) (*model.LoyaltyTier, error) {
	if _, err := s.GetProgram(ctx, actor, programID); err != nil {
		return nil, err
	}
	t := &model.LoyaltyTier{ProgramID: programID}
	applyTier(t, req)
	if err := s.validateTier(ctx, t); err != nil {
		return nil, err
	}
	if err := s.repo.SaveTier(ctx, t); err != nil {
		return nil, apierror.Internal("failed to save tier", err)
	}
	return t, nil
}

func (s *loyaltyService) UpdateTier(ctx context.Context, actor Actor, programID, tierID uuid.UUID, req dto.TierRequest) (*model.LoyaltyTier, error) {
	if _, err := s.GetProgram(ctx, actor, programID); err != nil {
		return nil, err
	}
	t, err := s.repo.FindTier(ctx, programID, tierID)
	if err != nil {
		return nil, lookupErr(err, "tier %s not found", tierID)
	}
	applyTier(t, req)
	if err := s.validateTier(ctx, t); err != nil {
		return nil, err
	}
	if err := s.repo.SaveTier(ctx, t); err != nil {
		return nil, apierror.Internal("failed to save tier", err)
	}
	return t, nil
}

func applyTier(t *model.LoyaltyTier, req dto.TierRequest) {
	t.Name = strings.TrimSpace(req.Name)
	t.MinPoints = req.MinPoints
	t.MaxPoints = req.MaxPoints
	t.Multiplier = req.Multiplier
}

// validateTier rejects malformed brackets and any overlap with another tier of
// the same program.
func (s *loyaltyService) validateTier(ctx context.Context, t *model.LoyaltyTier) error {
	if t.MinPoints < 0 {
		return apierror.Validation("min_points must not be negative")
	}
	if t.MaxPoints != nil && *t.MaxPoints < t.MinPoints {
		return apierror.Validation("max_points must be greater than or equal to min_points")
	}
	if !t.Multiplier.IsPositive() {
		return apierror.Validation("multiplier must be positive")
	}
	tiers, err := s.repo.ListTiers(ctx, t.ProgramID)
	if err != nil {
		return apierror.Internal("failed to list tiers", err)
	}
	for _, other := range tiers {
		if other.ID == t.ID {
			continue
		}
		if tiersOverlap(*t, other) {
			return apierror.Validation("tier range overlaps tier %q", other.Name)
		}
	}
	return nil
}

func tiersOverlap(a, b model.LoyaltyTier) bool {
	upper := func(t model.LoyaltyTier) int64 {
		if t.MaxPoints == nil {
			return math.MaxInt64
		}
		return *t.MaxPoints
	}
	return a.MinPoints <= upper(b) && b.MinPoints <= upper(a)
}

// ── Enrollment ────────────────────────────────────────────────────────────────

func (s *loyaltyService) Enroll(ctx context.Context, actor Actor, req dto.EnrollRequest) (*model.CustomerLoyalty, error) {
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, apierror.Validation("invalid customer_id")
	}
	programID, err := uuid.Parse(req.ProgramID)
	if err != nil {
		return nil, apierror.Validation("invalid program_id")
	}
	if _, err := s.customers.FindByID(ctx, actor.OrganizationID, customerID); err != nil {
		return nil, lookupErr(err, "customer %s not found", customerID)
	}
	program, err := s.GetProgram(ctx, actor, programID)
	if err != nil {
		return nil, err
	}
	if !program.Active {
		return nil, apierror.Precondition("loyalty program is not active")
	}

	var referrer *model.CustomerLoyalty
	if req.ReferrerCustomerID != nil {
		referrerID, err := uuid.Parse(*req.ReferrerCustomerID)
		if err != nil {
			return nil, apierror.Validation("invalid referrer_customer_id")
		}
		if referrerID == customerID {
			return nil, apierror.Validation("a customer cannot refer themselves")
		}
		r, err := s.repo.FindEnrollment(ctx, referrerID, programID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// referrer not enrolled: no referral bonus
		case err != nil:
			return nil, apierror.Internal("failed to look up referrer", err)
		case r.OrganizationID == actor.OrganizationID:
			referrer = r
		}
	}

	now := s.clock.now()
	e := &model.CustomerLoyalty{
		OrganizationID: actor.OrganizationID,
		CustomerID:     customerID,
		ProgramID:      programID,
		LastActivity:   &now,
	}
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateEnrollmentTx(ctx, tx, e); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apierror.Conflict("customer is already enrolled in this program")
			}
			return err
		}
		if program.WelcomeBonus > 0 {
			entry := bonusEntry(e.ID, program, program.WelcomeBonus, model.ReferenceWelcome, "Welcome bonus", now)
			entry.CreatedBy = &actor.UserID
			if err := s.repo.AppendLedgerTx(ctx, tx, entry, earn(program.WelcomeBonus), now); err != nil {
				return err
			}
		}
		if referrer != nil && program.ReferralBonus > 0 {
			entry := bonusEntry(referrer.ID, program, program.ReferralBonus, model.ReferenceReferral, "Referral bonus", now)
			entry.Metadata = datatypes.JSONMap{"referred_customer_id": customerID.String()}
			entry.CreatedBy = &actor.UserID
			if err := s.repo.AppendLedgerTx(ctx, tx, entry, earn(program.ReferralBonus), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify("failed to enroll customer", err)
	}

	if _, err := s.UpdateCustomerTier(ctx, e.ID); err != nil {
		return nil, err
	}
	if referrer != nil {
		if _, err := s.UpdateCustomerTier(ctx, referrer.ID); err != nil {
			return nil, err
		}
	}
	return s.GetEnrollment(ctx, actor, e.ID)
}

func (s *loyaltyService) GetEnrollment(ctx context.Context, actor Actor, id uuid.UUID) (*model.CustomerLoyalty, error) {
	e, err := s.repo.FindEnrollmentByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, lookupErr(err, "loyalty enrollment %s not found", id)
	}
	return e, nil
}

func (s *loyaltyService) ListTransactions(ctx context.Context, actor Actor, loyaltyID uuid.UUID, limit int) ([]model.PointsTransaction, error) {
	if _, err := s.GetEnrollment(ctx, actor, loyaltyID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListTransactions(ctx, loyaltyID, limit)
	if err != nil {
		return nil, apierror.Internal("failed to list points transactions", err)
	}
	return rows, nil
}

// ── Earning & adjustment ──────────────────────────────────────────────────────

func (s *loyaltyService) AddPointsForPurchase(ctx context.Context, actor Actor, loyaltyID uuid.UUID, amount decimal.Decimal, reference *string) (*model.PointsTransaction, error) {
	e, err := s.GetEnrollment(ctx, actor, loyaltyID)
	if err != nil {
		return nil, err
	}
	program, err := s.GetProgram(ctx, actor, e.ProgramID)
	if err != nil {
		return nil, err
	}
	return s.addPoints(ctx, e, program, amount, reference, &actor.UserID)
}

func (s *loyaltyService) addPoints(ctx context.Context, e *model.CustomerLoyalty, program *model.LoyaltyProgram, amount decimal.Decimal, reference *string, createdBy *uuid.UUID) (*model.PointsTransaction, error) {
	points := CalculatePointsForPurchase(program, amount, e.Tier)
	if points == 0 {
		return nil, nil
	}
	now := s.clock.now()
	entry := &model.PointsTransaction{
		CustomerLoyaltyID: e.ID,
		Type:              model.PointsEarned,
		Points:            points,
		Description:       fmt.Sprintf("Purchase of %s", amount.StringFixed(2)),
		Reference:         reference,
		ExpiresAt:         expiresAt(program, now),
		Metadata:          datatypes.JSONMap{"amount": amount.StringFixed(2)},
		CreatedBy:         createdBy,
	}
	if e.Tier != nil {
		entry.Metadata["tier"] = e.Tier.Name
		entry.Metadata["multiplier"] = e.Tier.Multiplier.String()
	}
	err := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		return s.repo.AppendLedgerTx(ctx, tx, entry, earn(points), now)
	})
	if err != nil {
		return nil, ledgerErr(err)
	}
	if _, err := s.UpdateCustomerTier(ctx, e.ID); err != nil {
		return entry, err
	}
	return entry, nil
}

func (s *loyaltyService) AdjustPoints(ctx context.Context, actor Actor, loyaltyID uuid.UUID, req dto.AdjustPointsRequest) (*model.PointsTransaction, error) {
	if req.Points == 0 {
		return nil, apierror.Validation("points must not be zero")
	}
	e, err := s.GetEnrollment(ctx, actor, loyaltyID)
	if err != nil {
		return nil, err
	}

	delta := repository.LedgerDelta{Current: req.Points}
	if req.Points > 0 {
		delta.Earned = req.Points
	} else {
		delta.Used = -req.Points
		delta.RequireBalance = true
	}
	now := s.clock.now()
	entry := &model.PointsTransaction{
		CustomerLoyaltyID: e.ID,
		Type:              model.PointsAdjusted,
		Points:            req.Points,
		Description:       strings.TrimSpace(req.Description),
		CreatedBy:         &actor.UserID,
	}
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		return s.repo.AppendLedgerTx(ctx, tx, entry, delta, now)
	})
	if err != nil {
		return nil, ledgerErr(err)
	}
	if _, err := s.UpdateCustomerTier(ctx, e.ID); err != nil {
		return entry, err
	}
	return entry, nil
}

// UpdateCustomerTier assigns the bracket containing the current balance and
// writes only when it differs from the stored tier.
func (s *loyaltyService) UpdateCustomerTier(ctx context.Context, loyaltyID uuid.UUID) (*model.LoyaltyTier, error) {
	e, err := s.repo.FindEnrollmentTx(ctx, nil, loyaltyID)
	if err != nil {
		return nil, lookupErr(err, "loyalty enrollment %s not found", loyaltyID)
	}
	tiers, err := s.repo.ListTiers(ctx, e.ProgramID)
	if err != nil {
		return nil, apierror.Internal("failed to list tiers", err)
	}
	tier := SelectTier(tiers, e.CurrentPoints)

	var next *uuid.UUID
	if tier != nil {
		next = &tier.ID
	}
	if sameTier(e.TierID, next) {
		return tier, nil
	}
	if err := s.repo.SetTier(ctx, e.ID, next); err != nil {
		return nil, apierror.Internal("failed to update tier", err)
	}
	log.Info().
		Str("loyalty_id", e.ID.String()).
		Int64("points", e.CurrentPoints).
		Interface("tier_id", next).
		Msg("loyalty: tier changed")
	return tier, nil
}

func sameTier(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ── Maintenance ───────────────────────────────────────────────────────────────

// ExpirePoints writes one EXPIRED row per expired EARNED/BONUS row. Each
// EXPIRED row references its source, and sources already referenced are not
// listed again, so a second run without new expirations writes nothing. The
// expired amount is capped at the current balance.
func (s *loyaltyService) ExpirePoints(ctx context.Context) (int, error) {
	now := s.clock.now()
	count := 0
	for {
		rows, err := s.repo.ListExpirable(ctx, now, expireBatchSize)
		if err != nil {
			return count, apierror.Internal("failed to list expirable points", err)
		}
		progressed := 0
		for i := range rows {
			if err := s.expireOne(ctx, &rows[i], now); err != nil {
				log.Error().Err(err).Str("transaction_id", rows[i].ID.String()).Msg("loyalty: failed to expire points")
				continue
			}
			progressed++
		}
		count += progressed
		if progressed == 0 || len(rows) < expireBatchSize {
			break
		}
	}
	metrics.LoyaltyMaintenanceProcessed.WithLabelValues("expire").Add(float64(count))
	log.Info().Int("expired", count).Msg("loyalty: points expiration finished")
	return count, nil
}

func (s *loyaltyService) expireOne(ctx context.Context, src *model.PointsTransaction, now time.Time) error {
	err := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		e, err := s.repo.FindEnrollmentTx(ctx, tx, src.CustomerLoyaltyID)
		if err != nil {
			return err
		}
		amount := min(src.Points, max(e.CurrentPoints, 0))
		ref := model.ReferenceExpirePrefix + src.ID.String()
		entry := &model.PointsTransaction{
			CustomerLoyaltyID: e.ID,
			Type:              model.PointsExpired,
			Points:            -amount,
			Description:       fmt.Sprintf("Expired %d of %d points", amount, src.Points),
			Reference:         &ref,
			Metadata:          datatypes.JSONMap{"source_id": src.ID.String(), "source_points": src.Points},
		}
		return s.repo.AppendLedgerTx(ctx, tx, entry, repository.LedgerDelta{Current: -amount, Used: amount}, now)
	})
	if err != nil {
		return err
	}
	_, err = s.UpdateCustomerTier(ctx, src.CustomerLoyaltyID)
	return err
}

// ProcessBirthdayBonuses awards the program birthday bonus once per calendar
// year. Customers born on Feb 29 are handled on Feb 28 in common years.
func (s *loyaltyService) ProcessBirthdayBonuses(ctx context.Context) (int, error) {
	now := s.clock.now()
	rows, err := s.repo.ListBirthdayEnrollments(ctx, now.Month(), now.Day())
	if err != nil {
		return 0, apierror.Internal("failed to list birthday enrollments", err)
	}
	if now.Month() == time.February && now.Day() == 28 && !isLeapYear(now.Year()) {
		leap, err := s.repo.ListBirthdayEnrollments(ctx, time.February, 29)
		if err != nil {
			return 0, apierror.Internal("failed to list birthday enrollments", err)
		}
		rows = append(rows, leap...)
	}

	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	count := 0
	for i := range rows {
		e := &rows[i]
		if e.Program == nil || e.Program.BirthdayBonus <= 0 {
			continue
		}
		done, err := s.repo.HasEntry(ctx, e.ID, model.PointsBonus, model.ReferenceBirthday, &yearStart)
		if err != nil {
			log.Error().Err(err).Str("loyalty_id", e.ID.String()).Msg("loyalty: birthday lookup failed")
			continue
		}
		if done {
			continue
		}
		entry := bonusEntry(e.ID, e.Program, e.Program.BirthdayBonus, model.ReferenceBirthday, "Birthday bonus", now)
		err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
			return s.repo.AppendLedgerTx(ctx, tx, entry, earn(e.Program.BirthdayBonus), now)
		})
		if err != nil {
			log.Error().Err(err).Str("loyalty_id", e.ID.String()).Msg("loyalty: birthday bonus failed")
			continue
		}
		if _, err := s.UpdateCustomerTier(ctx, e.ID); err != nil {
			log.Warn().Err(err).Str("loyalty_id", e.ID.String()).Msg("loyalty: tier update after birthday bonus failed")
		}
		count++
	}
	metrics.LoyaltyMaintenanceProcessed.WithLabelValues("birthday").Add(float64(count))
	log.Info().Int("awarded", count).Msg("loyalty: birthday bonuses finished")
	return count, nil
}

// ── Post-commit sale credit ───────────────────────────────────────────────────

// CreditSale credits the purchase to the customer's enrollment in the
// organization's active program. An EARNED row referencing the sale makes the
// call a no-op, so retries never double-credit.
func (s *loyaltyService) CreditSale(ctx context.Context, sale *model.Sale) LoyaltyOutcome {
	if sale.CustomerID == nil {
		return skipped("sale has no customer")
	}
	program, err := s.repo.FindActiveProgram(ctx, sale.OrganizationID)
	if errors.Is(err, repository.ErrNotFound) {
		return skipped("no active loyalty program")
	}
	if err != nil {
		return failed(apierror.Internal("failed to look up loyalty program", err))
	}
	e, err := s.repo.FindEnrollment(ctx, *sale.CustomerID, program.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return skipped("customer is not enrolled")
	}
	if err != nil {
		return failed(apierror.Internal("failed to look up enrollment", err))
	}

	ref := sale.ID.String()
	done, err := s.repo.HasEntry(ctx, e.ID, model.PointsEarned, ref, nil)
	if err != nil {
		return failed(apierror.Internal("failed to check ledger", err))
	}
	if done {
		return LoyaltyOutcome{Status: CreditSkipped, LoyaltyID: e.ID, Reason: "sale already credited"}
	}

	entry, err := s.addPoints(ctx, e, program, sale.Total, &ref, &sale.UserID)
	if errors.Is(err, repository.ErrDuplicate) {
		// a concurrent retry committed between the check above and the insert
		return LoyaltyOutcome{Status: CreditSkipped, LoyaltyID: e.ID, Reason: "sale already credited"}
	}
	if err != nil && entry == nil {
		return failed(err)
	}
	if entry == nil {
		return LoyaltyOutcome{Status: CreditSkipped, LoyaltyID: e.ID, Reason: "purchase earns no points"}
	}
	if err != nil {
		// points are booked; only the tier refresh failed
		log.Warn().Err(err).Str("loyalty_id", e.ID.String()).Msg("loyalty: tier update after credit failed")
	}
	return LoyaltyOutcome{Status: CreditCredited, Points: entry.Points, LoyaltyID: e.ID}
}

func (s *loyaltyService) CreditSaleByID(ctx context.Context, orgID, saleID uuid.UUID) LoyaltyOutcome {
	sale, err := s.sales.FindByID(ctx, orgID, saleID)
	if errors.Is(err, repository.ErrNotFound) {
		return skipped("sale not found")
	}
	if err != nil {
		return failed(apierror.Internal("failed to load sale", err))
	}
	return s.CreditSale(ctx, sale)
}

func (s *loyaltyService) RetryCredit(ctx context.Context, orgID, saleID uuid.UUID) error {
	outcome := s.CreditSaleByID(ctx, orgID, saleID)
	metrics.LoyaltyCreditsTotal.WithLabelValues(string(outcome.Status)).Inc()
	if outcome.Status == CreditFailed {
		return outcome.Err
	}
	log.Info().
		Str("sale_id", saleID.String()).
		Str("status", string(outcome.Status)).
		Int64("points", outcome.Points).
		Msg("loyalty: retried sale credit")
	return nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func earn(points int64) repository.LedgerDelta {
	return repository.LedgerDelta{Current: points, Earned: points}
}

func bonusEntry(loyaltyID uuid.UUID, program *model.LoyaltyProgram, points int64, reference, description string, now time.Time) *model.PointsTransaction {
	ref := reference
	return &model.PointsTransaction{
		CustomerLoyaltyID: loyaltyID,
		Type:              model.PointsBonus,
		Points:            points,
		Description:       description,
		Reference:         &ref,
		ExpiresAt:         expiresAt(program, now),
	}
}

func expiresAt(program *model.LoyaltyProgram, now time.Time) *time.Time {
	if program.PointsExpirationDays == nil || *program.PointsExpirationDays <= 0 {
		return nil
	}
	t := now.AddDate(0, 0, *program.PointsExpirationDays)
	return &t
}

func ledgerErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientPoints):
		return apierror.Validation("insufficient points")
	case errors.Is(err, repository.ErrNotFound):
		return apierror.NotFound("loyalty enrollment not found")
	case errors.Is(err, repository.ErrDuplicate):
		return &apierror.Error{Kind: apierror.KindConflict, Msg: "ledger entry already recorded", Err: err}
	}
	return classify("failed to write points ledger", err)
}

func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
