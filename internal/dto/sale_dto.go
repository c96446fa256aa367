package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// SaleFilter is bound from query string of GET /v1/sales.
type SaleFilter struct {
	Date       string `form:"date"` // YYYY-MM-DD; empty = all
	CustomerID string `form:"customer_id" validate:"omitempty,uuid"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type SaleListResponse struct {
	Data  []SaleResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// MovementFilter is bound from query string of GET /v1/inventory/movements.
type MovementFilter struct {
	ProductID string `form:"product_id" validate:"omitempty,uuid"`
	SaleID    string `form:"sale_id"    validate:"omitempty,uuid"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type MovementResponse struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Direction   string  `json:"direction"`
	Quantity    int     `json:"quantity"`
	StockBefore int     `json:"stock_before"`
	StockAfter  int     `json:"stock_after"`
	Reason      string  `json:"reason"`
	ReferenceID *string `json:"reference_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type MovementListResponse struct {
	Data  []MovementResponse `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type SaleItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"   validate:"required,min=1"`
	// UnitPrice is accepted for compatibility with older clients and ignored.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type ManualDiscountRequest struct {
	Type   string          `json:"type"   validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	Value  decimal.Decimal `json:"value"  validate:"min=0"`
	Reason string          `json:"reason" validate:"max=500"`
}

type CreateSaleRequest struct {
	CustomerID        *string                `json:"customer_id"        validate:"omitempty,uuid"`
	Items             []SaleItemRequest      `json:"items"              validate:"required,min=1,dive"`
	PaymentMethod     string                 `json:"payment_method"     validate:"required,oneof=CASH CARD TRANSFER OTHER"`
	CouponCode        *string                `json:"coupon_code"`
	ManualDiscount    *ManualDiscountRequest `json:"manual_discount"`
	Notes             *string                `json:"notes"              validate:"omitempty,max=1000"`
	CashReceived      *decimal.Decimal       `json:"cash_received"      validate:"omitempty,min=0"`
	Change            *decimal.Decimal       `json:"change"             validate:"omitempty,min=0"`
	TransferReference *string                `json:"transfer_reference" validate:"omitempty,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SaleItemResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

type SaleResponse struct {
	ID             string             `json:"id"`
	UserID         string             `json:"user_id"`
	Customer       *CustomerResponse  `json:"customer,omitempty"`
	Items          []SaleItemResponse `json:"items"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	Discount       decimal.Decimal    `json:"discount"`
	DiscountType   string             `json:"discount_type"`
	DiscountReason *string            `json:"discount_reason,omitempty"`
	Tax            decimal.Decimal    `json:"tax"`
	Total          decimal.Decimal    `json:"total"`
	PaymentMethod  string             `json:"payment_method"`
	PaymentDetails map[string]any     `json:"payment_details,omitempty"`
	Notes          *string            `json:"notes,omitempty"`
	CreatedAt      string             `json:"created_at"`
}

type SaleSummary struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	DiscountType  string          `json:"discount_type"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	ItemCount     int             `json:"item_count"`
	TotalQuantity int             `json:"total_quantity"`
}

// LoyaltyOutcomeResponse reports the post-commit points credit.
type LoyaltyOutcomeResponse struct {
	Status string `json:"status"` // credited | skipped | failed
	Points int64  `json:"points,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type CreateSaleResponse struct {
	Sale    SaleResponse           `json:"sale"`
	Summary SaleSummary            `json:"summary"`
	Loyalty LoyaltyOutcomeResponse `json:"loyalty"`
}
