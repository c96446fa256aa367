package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/apierror"
	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deviation classifications recorded when a session closes.
const (
	DeviationNormal   = "normal"
	DeviationWarning  = "warning"
	DeviationCritical = "critical"
)

type CashService interface {
	OpenSession(ctx context.Context, actor Actor, req dto.OpenCashSessionRequest) (*dto.CashSessionReport, error)
	RegisterMovement(ctx context.Context, actor Actor, req dto.CashMovementRequest) (*dto.CashMovementResponse, error)
	CloseSession(ctx context.Context, actor Actor, req dto.CloseCashSessionRequest) (*dto.CashSessionReport, error)
	GetSession(ctx context.Context, actor Actor, id uuid.UUID) (*dto.CashSessionReport, error)
	CurrentSession(ctx context.Context, actor Actor) (*dto.CashSessionReport, error)
	// FindOpenSession returns nil without error when the organization has no
	// open session.
	FindOpenSession(ctx context.Context, orgID uuid.UUID) (*model.CashSession, error)
}

type cashService struct {
	repo  repository.CashRepository
	clock Clock
}

func NewCashService(repo repository.CashRepository, clock Clock) CashService {
	return &cashService{repo: repo, clock: clock}
}

// ── OpenSession ───────────────────────────────────────────────────────────────

func (s *cashService) OpenSession(ctx context.Context, actor Actor, req dto.OpenCashSessionRequest) (*dto.CashSessionReport, error) {
	existing, err := s.FindOpenSession(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierror.Precondition("a cash session is already open")
	}

	session := &model.CashSession{
		OrganizationID: actor.OrganizationID,
		UserID:         actor.UserID,
		OpeningAmount:  req.OpeningAmount,
		Status:         model.CashSessionOpen,
		OpenedAt:       s.clock.now(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		// the partial unique index catches a concurrent open
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apierror.Precondition("a cash session is already open")
		}
		return nil, apierror.Internal("failed to open cash session", err)
	}
	return s.buildReport(ctx, session)
}

// ── RegisterMovement ──────────────────────────────────────────────────────────
// Manual deposit / withdrawal. Movements are immutable.

func (s *cashService) RegisterMovement(ctx context.Context, actor Actor, req dto.CashMovementRequest) (*dto.CashMovementResponse, error) {
	session, err := s.requireOpen(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	if req.Type == model.CashMovementWithdrawal {
		amount = amount.Neg()
	}
	mov := &model.CashMovement{
		SessionID:   session.ID,
		Type:        req.Type,
		Amount:      amount,
		Description: req.Description,
	}
	if err := s.repo.CreateMovement(ctx, nil, mov); err != nil {
		return nil, apierror.Internal("failed to record cash movement", err)
	}
	resp := movementToResponse(*mov)
	return &resp, nil
}

// ── CloseSession ──────────────────────────────────────────────────────────────
// Blind count: the deviation is computed only after the declaration arrives.

func (s *cashService) CloseSession(ctx context.Context, actor Actor, req dto.CloseCashSessionRequest) (*dto.CashSessionReport, error) {
	session, err := s.requireOpen(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}

	sum, err := s.repo.SumMovements(ctx, session.ID)
	if err != nil {
		return nil, apierror.Internal("failed to sum cash movements", err)
	}
	expected := session.OpeningAmount.Add(sum)
	deviation := req.DeclaredAmount.Sub(expected)
	var pct decimal.Decimal
	class := DeviationNormal
	switch {
	case !expected.IsZero():
		pct = deviation.Div(expected).Mul(hundred).Round(2)
		class = classifyDeviation(pct)
	case !deviation.IsZero():
		// no base to measure against; any difference is unexplained cash
		class = DeviationCritical
	}

	if class == DeviationCritical && (req.Notes == nil || strings.TrimSpace(*req.Notes) == "") {
		return nil, apierror.Validation("critical deviation: closing notes are required")
	}

	closedAt := s.clock.now()
	declared := req.DeclaredAmount
	session.ExpectedAmount = &expected
	session.DeclaredAmount = &declared
	session.Deviation = &deviation
	session.DeviationPct = &pct
	session.DeviationClass = &class
	session.Notes = req.Notes
	session.Status = model.CashSessionClosed
	session.ClosedAt = &closedAt

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, apierror.Internal("failed to close cash session", err)
	}
	return s.buildReport(ctx, session)
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *cashService) GetSession(ctx context.Context, actor Actor, id uuid.UUID) (*dto.CashSessionReport, error) {
	session, err := s.repo.FindSessionByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, lookupErr(err, "cash session %s not found", id)
	}
	return s.buildReport(ctx, session)
}

func (s *cashService) CurrentSession(ctx context.Context, actor Actor) (*dto.CashSessionReport, error) {
	session, err := s.requireOpen(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, actor, session.ID)
}

func (s *cashService) FindOpenSession(ctx context.Context, orgID uuid.UUID) (*model.CashSession, error) {
	session, err := s.repo.FindOpenSession(ctx, nil, orgID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.Internal("failed to look up cash session", err)
	}
	return session, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *cashService) requireOpen(ctx context.Context, orgID uuid.UUID) (*model.CashSession, error) {
	session, err := s.FindOpenSession(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apierror.Precondition("no open cash session")
	}
	return session, nil
}

// classifyDeviation: normal when |pct| <= 1, warning when <= 5, critical above.
func classifyDeviation(pct decimal.Decimal) string {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return DeviationNormal
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return DeviationWarning
	default:
		return DeviationCritical
	}
}

func (s *cashService) buildReport(ctx context.Context, session *model.CashSession) (*dto.CashSessionReport, error) {
	expected := session.OpeningAmount
	if session.ExpectedAmount != nil {
		expected = *session.ExpectedAmount
	} else {
		sum, err := s.repo.SumMovements(ctx, session.ID)
		if err != nil {
			return nil, apierror.Internal("failed to sum cash movements", err)
		}
		expected = expected.Add(sum)
	}

	report := &dto.CashSessionReport{
		SessionID:      session.ID.String(),
		UserID:         session.UserID.String(),
		Status:         session.Status,
		OpeningAmount:  session.OpeningAmount,
		ExpectedAmount: expected,
		DeclaredAmount: session.DeclaredAmount,
		Notes:          session.Notes,
		OpenedAt:       session.OpenedAt.Format(time.RFC3339),
		Movements:      make([]dto.CashMovementResponse, 0, len(session.Movements)),
	}
	if session.Deviation != nil && session.DeviationPct != nil && session.DeviationClass != nil {
		report.Deviation = &dto.DeviationResponse{
			Amount:         *session.Deviation,
			Percentage:     *session.DeviationPct,
			Classification: *session.DeviationClass,
		}
	}
	if session.ClosedAt != nil {
		closed := session.ClosedAt.Format(time.RFC3339)
		report.ClosedAt = &closed
	}
	for _, m := range session.Movements {
		report.Movements = append(report.Movements, movementToResponse(m))
	}
	return report, nil
}

func movementToResponse(m model.CashMovement) dto.CashMovementResponse {
	resp := dto.CashMovementResponse{
		ID:          m.ID.String(),
		Type:        m.Type,
		Amount:      m.Amount,
		Description: m.Description,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
	}
	if m.ReferenceID != nil {
		ref := m.ReferenceID.String()
		resp.ReferenceID = &ref
	}
	return resp
}
