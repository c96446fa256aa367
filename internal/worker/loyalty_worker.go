package worker

// loyalty_worker.go
// Re-runs loyalty point credits that failed after their sale committed. The
// credit itself is idempotent per sale, so a job may safely run twice.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const JobLoyaltyCredit = "loyalty_credit"

// LoyaltyCreditJob is the payload sent to QueueLoyaltyCredit.
type LoyaltyCreditJob struct {
	SaleID         string `json:"sale_id"`
	OrganizationID string `json:"organization_id"`
	CustomerID     string `json:"customer_id,omitempty"`
}

// SaleCreditor re-credits one committed sale.
type SaleCreditor interface {
	RetryCredit(ctx context.Context, orgID, saleID uuid.UUID) error
}

type LoyaltyCreditWorker struct {
	creditor SaleCreditor
}

func NewLoyaltyCreditWorker(creditor SaleCreditor) *LoyaltyCreditWorker {
	return &LoyaltyCreditWorker{creditor: creditor}
}

// Register wires the worker into p.
func (w *LoyaltyCreditWorker) Register(p *Pool) {
	p.Register(QueueLoyaltyCredit, JobLoyaltyCredit, w.Handle)
}

func (w *LoyaltyCreditWorker) Handle(ctx context.Context, payload json.RawMessage) error {
	var job LoyaltyCreditJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode loyalty credit job: %w", err)
	}
	saleID, err := uuid.Parse(job.SaleID)
	if err != nil {
		return fmt.Errorf("invalid sale_id %q: %w", job.SaleID, err)
	}
	orgID, err := uuid.Parse(job.OrganizationID)
	if err != nil {
		return fmt.Errorf("invalid organization_id %q: %w", job.OrganizationID, err)
	}

	if err := w.creditor.RetryCredit(ctx, orgID, saleID); err != nil {
		return err
	}
	log.Info().Str("sale_id", job.SaleID).Msg("loyalty_worker: credit retried")
	return nil
}
