package service

import (
	"strings"

	"github.com/eduardojeem/Mipos-sub008/internal/apierror"
	"github.com/eduardojeem/Mipos-sub008/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount is one of NoDiscount, CouponDiscount or ManualDiscount.
type Discount interface{ isDiscount() }

type NoDiscount struct{}

// CouponDiscount has no resolver yet; pricing always rejects it.
type CouponDiscount struct{ Code string }

type ManualDiscount struct {
	Type   string // model.DiscountPercentage or model.DiscountFixedAmount
	Value  decimal.Decimal
	Reason string
}

func (NoDiscount) isDiscount()     {}
func (CouponDiscount) isDiscount() {}
func (ManualDiscount) isDiscount() {}

// DiscountPolicy holds percentage thresholds: above ReasonThreshold a reason
// is mandatory, above OverrideThreshold the caller needs the override permission.
type DiscountPolicy struct {
	ReasonThreshold   decimal.Decimal
	OverrideThreshold decimal.Decimal
}

func DefaultDiscountPolicy() DiscountPolicy {
	return DiscountPolicy{
		ReasonThreshold:   decimal.NewFromInt(10),
		OverrideThreshold: decimal.NewFromInt(20),
	}
}

// LineRequest is one requested sale line. Any client price is dropped before
// it reaches pricing.
type LineRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

type PricedLine struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
}

// Quote is the priced sale. Total == Subtotal - Discount + Tax holds exactly.
type Quote struct {
	Lines          []PricedLine
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	DiscountType   string
	DiscountReason string
	Tax            decimal.Decimal
	Total          decimal.Decimal
}

type PricingResolver struct {
	policy DiscountPolicy
	perms  PermissionChecker
}

func NewPricingResolver(policy DiscountPolicy, perms PermissionChecker) *PricingResolver {
	return &PricingResolver{policy: policy, perms: perms}
}

// CheckDiscount applies the discount policy without looking at prices, so the
// coordinator can reject a request before taking any lock.
func (r *PricingResolver) CheckDiscount(actor Actor, d Discount) error {
	switch d := d.(type) {
	case NoDiscount:
		return nil
	case CouponDiscount:
		return apierror.Unimplemented("coupon redemption is not implemented")
	case ManualDiscount:
		if d.Value.IsNegative() {
			return apierror.Validation("discount value must not be negative")
		}
		if !isCents(d.Value) {
			return apierror.Validation("discount value must have at most 2 decimal places")
		}
		switch d.Type {
		case model.DiscountPercentage:
			if d.Value.GreaterThan(hundred) {
				return apierror.Validation("percentage discount cannot exceed 100")
			}
			if d.Value.GreaterThan(r.policy.ReasonThreshold) && strings.TrimSpace(d.Reason) == "" {
				return apierror.Validation("a reason is required for discounts above %s%%", r.policy.ReasonThreshold)
			}
			if d.Value.GreaterThan(r.policy.OverrideThreshold) &&
				(r.perms == nil || !r.perms.HasPermission(actor, ResourceSales, ActionDiscountOverride)) {
				return apierror.Permission("discounts above %s%% require supervisor approval", r.policy.OverrideThreshold)
			}
			return nil
		case model.DiscountFixedAmount:
			return nil
		default:
			return apierror.Validation("unknown discount type %q", d.Type)
		}
	default:
		return apierror.Validation("unsupported discount")
	}
}

// Resolve prices lines from products (the locked, server-side rows) and
// applies d.
func (r *PricingResolver) Resolve(actor Actor, lines []LineRequest, products map[uuid.UUID]model.Product, d Discount) (*Quote, error) {
	if err := r.CheckDiscount(actor, d); err != nil {
		return nil, err
	}

	q := &Quote{DiscountType: model.DiscountNone}
	tax := decimal.Zero
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, apierror.NotFound("product %s not found", l.ProductID)
		}
		sub := p.SalePrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		lineTax := decimal.Zero
		if p.TaxRate.IsPositive() {
			lineTax = sub.Mul(p.TaxRate).Div(hundred)
		}
		tax = tax.Add(lineTax)
		q.Subtotal = q.Subtotal.Add(sub)
		q.Lines = append(q.Lines, PricedLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: p.SalePrice,
			Subtotal:  sub,
			TaxAmount: lineTax.Round(2),
		})
	}
	q.Tax = tax.Round(2)

	if md, ok := d.(ManualDiscount); ok {
		q.DiscountType = md.Type
		q.DiscountReason = strings.TrimSpace(md.Reason)
		switch md.Type {
		case model.DiscountPercentage:
			q.Discount = q.Subtotal.Mul(md.Value).Div(hundred).Round(2)
		case model.DiscountFixedAmount:
			q.Discount = decimal.Min(md.Value, q.Subtotal)
		}
	}

	q.Total = q.Subtotal.Sub(q.Discount).Add(q.Tax)
	return q, nil
}

// isCents reports whether v fits a decimal(_,2) column without rounding.
func isCents(v decimal.Decimal) bool {
	return v.Equal(v.Round(2))
}
