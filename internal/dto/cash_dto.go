package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenCashSessionRequest struct {
	OpeningAmount decimal.Decimal `json:"opening_amount" validate:"min=0"`
}

type CashMovementRequest struct {
	Type        string          `json:"type"        validate:"required,oneof=DEPOSIT WITHDRAWAL"`
	Amount      decimal.Decimal `json:"amount"      validate:"required,gt=0"`
	Description string          `json:"description" validate:"required,min=3"`
}

type CloseCashSessionRequest struct {
	DeclaredAmount decimal.Decimal `json:"declared_amount" validate:"min=0"`
	Notes          *string         `json:"notes"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DeviationResponse struct {
	Amount         decimal.Decimal `json:"amount"`
	Percentage     decimal.Decimal `json:"percentage"`
	Classification string          `json:"classification"` // normal | warning | critical
}

type CashMovementResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	ReferenceID *string         `json:"reference_id,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

type CashSessionReport struct {
	SessionID      string                 `json:"session_id"`
	UserID         string                 `json:"user_id"`
	Status         string                 `json:"status"`
	OpeningAmount  decimal.Decimal        `json:"opening_amount"`
	ExpectedAmount decimal.Decimal        `json:"expected_amount"`
	DeclaredAmount *decimal.Decimal       `json:"declared_amount,omitempty"`
	Deviation      *DeviationResponse     `json:"deviation,omitempty"`
	Notes          *string                `json:"notes,omitempty"`
	OpenedAt       string                 `json:"opened_at"`
	ClosedAt       *string                `json:"closed_at,omitempty"`
	Movements      []CashMovementResponse `json:"movements"`
}
