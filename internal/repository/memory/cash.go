package memory

import (
	"context"
	"slices"

	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type cashRepo struct{ s *Store }

func (r *cashRepo) CreateSession(_ context.Context, cs *model.CashSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cs.Status == model.CashSessionOpen {
		for _, other := range r.s.st.sessions {
			if other.OrganizationID == cs.OrganizationID && other.Status == model.CashSessionOpen {
				return repository.ErrDuplicate
			}
		}
	}
	ensureID(&cs.ID)
	if cs.OpenedAt.IsZero() {
		cs.OpenedAt = r.s.now()
	}
	stored := *cs
	stored.Movements = nil
	r.s.st.sessions[cs.ID] = stored
	return nil
}

func (r *cashRepo) FindOpenSession(_ context.Context, _ *gorm.DB, orgID uuid.UUID) (*model.CashSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *model.CashSession
	for _, cs := range r.s.st.sessions {
		if cs.OrganizationID != orgID || cs.Status != model.CashSessionOpen {
			continue
		}
		if found == nil || cs.OpenedAt.After(found.OpenedAt) {
			c := cs
			found = &c
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r *cashRepo) FindSessionByID(_ context.Context, orgID, id uuid.UUID) (*model.CashSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cs, ok := r.s.st.sessions[id]
	if !ok || cs.OrganizationID != orgID {
		return nil, repository.ErrNotFound
	}
	for _, m := range r.s.st.cashMovements {
		if m.SessionID == id {
			cs.Movements = append(cs.Movements, m)
		}
	}
	return &cs, nil
}

func (r *cashRepo) UpdateSession(_ context.Context, cs *model.CashSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.sessions[cs.ID]; !ok {
		return repository.ErrNotFound
	}
	stored := *cs
	stored.Movements = nil
	r.s.st.sessions[cs.ID] = stored
	return nil
}

func (r *cashRepo) CreateMovement(_ context.Context, _ *gorm.DB, m *model.CashMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&m.ID)
	m.CreatedAt = r.s.now()
	r.s.st.cashMovements = append(r.s.st.cashMovements, *m)
	return nil
}

func (r *cashRepo) SumMovements(_ context.Context, sessionID uuid.UUID) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, m := range r.s.st.cashMovements {
		if m.SessionID == sessionID {
			sum = sum.Add(m.Amount)
		}
	}
	return sum, nil
}

// CashMovements returns every recorded movement of a session in insertion order.
func (s *Store) CashMovements(sessionID uuid.UUID) []model.CashMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.DeleteFunc(slices.Clone(s.st.cashMovements), func(m model.CashMovement) bool {
		return m.SessionID != sessionID
	})
}
