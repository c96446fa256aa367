package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/apierror"
	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/metrics"
	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"
	"github.com/eduardojeem/Mipos-sub008/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SaleService interface {
	CreateSale(ctx context.Context, actor Actor, req dto.CreateSaleRequest) (*dto.CreateSaleResponse, error)
	GetSale(ctx context.Context, actor Actor, id uuid.UUID) (*dto.SaleResponse, error)
	ListSales(ctx context.Context, actor Actor, filter dto.SaleFilter) (*dto.SaleListResponse, error)
	ListMovements(ctx context.Context, actor Actor, filter dto.MovementFilter) (*dto.MovementListResponse, error)
}

// LoyaltyCrediter credits a committed sale; it never fails the sale.
type LoyaltyCrediter interface {
	CreditSale(ctx context.Context, sale *model.Sale) LoyaltyOutcome
}

// CreditRetryQueue receives credits that failed after commit.
type CreditRetryQueue interface {
	EnqueueLoyaltyCredit(ctx context.Context, job worker.LoyaltyCreditJob) error
}

// SaleDeps wires the sale coordinator. Loyalty and Retry may be nil.
type SaleDeps struct {
	Tx        repository.Transactor
	Products  repository.ProductRepository
	Customers repository.CustomerRepository
	Sales     repository.SaleRepository
	Movements repository.InventoryMovementRepository
	Cash      CashService
	CashRepo  repository.CashRepository
	Pricing   *PricingResolver
	Loyalty   LoyaltyCrediter
	Retry     CreditRetryQueue
	Clock     Clock
}

type saleService struct {
	SaleDeps
}

func NewSaleService(deps SaleDeps) SaleService {
	return &saleService{SaleDeps: deps}
}

// ── CreateSale ────────────────────────────────────────────────────────────────
// One atomic unit per sale:
//   1. Validate input, discount policy and the open cash session (CASH only)
//   2. Resolve products and customer in the caller's organization
//   3. Stock pre-check on plain reads
//   4. BEGIN TX: lock product rows in id order, re-check, price, insert sale,
//      decrement stock + movements, customer totals, cash movement
//   5. COMMIT
//   6. Credit loyalty points; failures are queued for retry

func (s *saleService) CreateSale(ctx context.Context, actor Actor, req dto.CreateSaleRequest) (resp *dto.CreateSaleResponse, err error) {
	defer func() {
		outcome := "created"
		if err != nil {
			outcome = apierror.KindOf(err).String()
		}
		metrics.SalesTotal.WithLabelValues(outcome).Inc()
	}()

	lines, err := parseLines(req.Items)
	if err != nil {
		return nil, err
	}
	discount := discountFromRequest(req)
	if err := s.Pricing.CheckDiscount(actor, discount); err != nil {
		return nil, err
	}

	if req.PaymentMethod == model.PaymentCash {
		session, err := s.Cash.FindOpenSession(ctx, actor.OrganizationID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, apierror.Precondition("no open cash session for cash payments")
		}
	}

	requested := make(map[uuid.UUID]int, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if _, seen := requested[l.ProductID]; !seen {
			ids = append(ids, l.ProductID)
		}
		requested[l.ProductID] += l.Quantity
	}

	products, err := s.Products.FindByIDs(ctx, actor.OrganizationID, ids)
	if err != nil {
		return nil, apierror.Internal("failed to load products", err)
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, apierror.NotFound("product %s not found", id)
		}
	}

	var customer *model.Customer
	if req.CustomerID != nil && *req.CustomerID != "" {
		customerID, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			return nil, apierror.Validation("invalid customer_id")
		}
		customer, err = s.Customers.FindByID(ctx, actor.OrganizationID, customerID)
		if err != nil {
			return nil, lookupErr(err, "customer %s not found", customerID)
		}
	}

	if err := checkStock(products, requested); err != nil {
		return nil, err
	}

	var sale *model.Sale
	err = s.Tx.WithinTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		sale, txErr = s.commitSale(ctx, tx, actor, req, lines, ids, requested, discount, customer)
		return txErr
	})
	if err != nil {
		return nil, classify("failed to create sale", err)
	}

	for i := range sale.Items {
		p := products[sale.Items[i].ProductID]
		sale.Items[i].Product = &p
	}
	if customer != nil {
		// reload so the response carries the updated purchase totals
		if fresh, err := s.Customers.FindByID(ctx, actor.OrganizationID, customer.ID); err == nil {
			customer = fresh
		}
		sale.Customer = customer
	}

	log.Info().
		Str("sale_id", sale.ID.String()).
		Str("organization_id", actor.OrganizationID.String()).
		Str("total", sale.Total.StringFixed(2)).
		Int("lines", len(sale.Items)).
		Msg("sale created")

	outcome := s.creditLoyalty(ctx, sale)
	return &dto.CreateSaleResponse{
		Sale:    saleToResponse(sale),
		Summary: summarize(sale),
		Loyalty: dto.LoyaltyOutcomeResponse{Status: string(outcome.Status), Points: outcome.Points, Reason: outcome.Reason},
	}, nil
}

// commitSale runs inside the transaction and may be replayed after a
// serialization failure, so it rebuilds every value it writes.
func (s *saleService) commitSale(
	ctx context.Context,
	tx *gorm.DB,
	actor Actor,
	req dto.CreateSaleRequest,
	lines []LineRequest,
	ids []uuid.UUID,
	requested map[uuid.UUID]int,
	discount Discount,
	customer *model.Customer,
) (*model.Sale, error) {
	locked, err := s.Products.LockAndReadStock(ctx, tx, actor.OrganizationID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, apierror.NotFound("product %s not found", id)
		}
	}
	if err := checkStock(locked, requested); err != nil {
		return nil, err
	}

	quote, err := s.Pricing.Resolve(actor, lines, locked, discount)
	if err != nil {
		return nil, err
	}

	now := s.Clock.now()
	sale := &model.Sale{
		OrganizationID: actor.OrganizationID,
		UserID:         actor.UserID,
		Subtotal:       quote.Subtotal,
		Discount:       quote.Discount,
		DiscountType:   quote.DiscountType,
		Tax:            quote.Tax,
		Total:          quote.Total,
		PaymentMethod:  req.PaymentMethod,
		PaymentDetails: paymentDetails(req),
		Notes:          req.Notes,
		CreatedAt:      now,
	}
	if quote.DiscountReason != "" {
		reason := quote.DiscountReason
		sale.DiscountReason = &reason
	}
	if customer != nil {
		sale.CustomerID = &customer.ID
	}
	for _, l := range quote.Lines {
		sale.Items = append(sale.Items, model.SaleItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
			TaxAmount: l.TaxAmount,
		})
	}
	if err := s.Sales.CreateTx(ctx, tx, sale); err != nil {
		return nil, err
	}

	stock := make(map[uuid.UUID]int, len(locked))
	for id, p := range locked {
		stock[id] = p.StockQuantity
	}
	for _, item := range sale.Items {
		if err := s.Products.DecrementStockTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return nil, apierror.Conflict("insufficient stock for %s", locked[item.ProductID].Name)
			}
			return nil, err
		}
		before := stock[item.ProductID]
		stock[item.ProductID] = before - item.Quantity
		ref := sale.ID
		if err := s.Movements.CreateTx(ctx, tx, &model.InventoryMovement{
			OrganizationID: actor.OrganizationID,
			ProductID:      item.ProductID,
			Direction:      model.MovementOut,
			Quantity:       item.Quantity,
			StockBefore:    before,
			StockAfter:     before - item.Quantity,
			Reason:         "sale",
			ReferenceID:    &ref,
			CreatedAt:      now,
		}); err != nil {
			return nil, err
		}
	}

	if customer != nil {
		if err := s.Customers.RecordPurchaseTx(ctx, tx, customer.ID, sale.Total, now); err != nil {
			return nil, err
		}
	}

	if req.PaymentMethod == model.PaymentCash {
		session, err := s.CashRepo.FindOpenSession(ctx, tx, actor.OrganizationID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// closed between the pre-check and the commit: the sale stands
			log.Warn().
				Str("sale_id", sale.ID.String()).
				Msg("sale: cash session closed before commit, cash movement skipped")
		case err != nil:
			return nil, err
		default:
			ref := sale.ID
			if err := s.CashRepo.CreateMovement(ctx, tx, &model.CashMovement{
				SessionID:   session.ID,
				Type:        model.CashMovementSale,
				Amount:      sale.Total,
				Description: "Sale " + sale.ID.String()[:8],
				ReferenceID: &ref,
				CreatedAt:   now,
			}); err != nil {
				return nil, err
			}
		}
	}
	return sale, nil
}

// creditLoyalty runs after commit. A failure is logged and queued; the sale
// response is never affected.
func (s *saleService) creditLoyalty(ctx context.Context, sale *model.Sale) LoyaltyOutcome {
	if s.Loyalty == nil {
		return skipped("loyalty disabled")
	}
	outcome := s.Loyalty.CreditSale(ctx, sale)
	metrics.LoyaltyCreditsTotal.WithLabelValues(string(outcome.Status)).Inc()
	if outcome.Status != CreditFailed {
		return outcome
	}

	log.Warn().Err(outcome.Err).Str("sale_id", sale.ID.String()).Msg("sale: loyalty credit failed")
	if s.Retry == nil || sale.CustomerID == nil {
		return outcome
	}
	job := worker.LoyaltyCreditJob{
		SaleID:         sale.ID.String(),
		OrganizationID: sale.OrganizationID.String(),
		CustomerID:     sale.CustomerID.String(),
	}
	if err := s.Retry.EnqueueLoyaltyCredit(ctx, job); err != nil {
		log.Error().Err(err).Str("sale_id", sale.ID.String()).Msg("sale: failed to enqueue loyalty retry")
	}
	return outcome
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *saleService) GetSale(ctx context.Context, actor Actor, id uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.Sales.FindByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, lookupErr(err, "sale %s not found", id)
	}
	resp := saleToResponse(sale)
	return &resp, nil
}

func (s *saleService) ListSales(ctx context.Context, actor Actor, filter dto.SaleFilter) (*dto.SaleListResponse, error) {
	f := repository.SaleFilter{Page: filter.Page, Limit: filter.Limit}
	if filter.Date != "" {
		d, err := time.Parse(dateLayout, filter.Date)
		if err != nil {
			return nil, apierror.Validation("date must be YYYY-MM-DD")
		}
		f.Date = &d
	}
	if filter.CustomerID != "" {
		id, err := uuid.Parse(filter.CustomerID)
		if err != nil {
			return nil, apierror.Validation("invalid customer_id")
		}
		f.CustomerID = &id
	}

	sales, total, err := s.Sales.List(ctx, actor.OrganizationID, f)
	if err != nil {
		return nil, apierror.Internal("failed to list sales", err)
	}
	resp := &dto.SaleListResponse{Data: make([]dto.SaleResponse, 0, len(sales)), Total: total, Page: filter.Page, Limit: filter.Limit}
	for i := range sales {
		resp.Data = append(resp.Data, saleToResponse(&sales[i]))
	}
	return resp, nil
}

func (s *saleService) ListMovements(ctx context.Context, actor Actor, filter dto.MovementFilter) (*dto.MovementListResponse, error) {
	f := repository.MovementFilter{Page: filter.Page, Limit: filter.Limit}
	if filter.ProductID != "" {
		id, err := uuid.Parse(filter.ProductID)
		if err != nil {
			return nil, apierror.Validation("invalid product_id")
		}
		f.ProductID = &id
	}
	if filter.SaleID != "" {
		id, err := uuid.Parse(filter.SaleID)
		if err != nil {
			return nil, apierror.Validation("invalid sale_id")
		}
		f.ReferenceID = &id
	}

	rows, total, err := s.Movements.List(ctx, actor.OrganizationID, f)
	if err != nil {
		return nil, apierror.Internal("failed to list inventory movements", err)
	}
	resp := &dto.MovementListResponse{Data: make([]dto.MovementResponse, 0, len(rows)), Total: total, Page: filter.Page, Limit: filter.Limit}
	for _, m := range rows {
		r := dto.MovementResponse{
			ID:          m.ID.String(),
			ProductID:   m.ProductID.String(),
			Direction:   m.Direction,
			Quantity:    m.Quantity,
			StockBefore: m.StockBefore,
			StockAfter:  m.StockAfter,
			Reason:      m.Reason,
			CreatedAt:   m.CreatedAt.Format(time.RFC3339),
		}
		if m.Product != nil {
			r.ProductName = m.Product.Name
		}
		if m.ReferenceID != nil {
			ref := m.ReferenceID.String()
			r.ReferenceID = &ref
		}
		resp.Data = append(resp.Data, r)
	}
	return resp, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// parseLines drops any client-supplied unit price.
func parseLines(items []dto.SaleItemRequest) ([]LineRequest, error) {
	if len(items) == 0 {
		return nil, apierror.Validation("a sale needs at least one item")
	}
	lines := make([]LineRequest, 0, len(items))
	for _, it := range items {
		id, err := uuid.Parse(it.ProductID)
		if err != nil {
			return nil, apierror.Validation("invalid product_id %q", it.ProductID)
		}
		if it.Quantity < 1 {
			return nil, apierror.Validation("quantity must be at least 1")
		}
		lines = append(lines, LineRequest{ProductID: id, Quantity: it.Quantity})
	}
	return lines, nil
}

func discountFromRequest(req dto.CreateSaleRequest) Discount {
	if req.CouponCode != nil && strings.TrimSpace(*req.CouponCode) != "" {
		return CouponDiscount{Code: strings.TrimSpace(*req.CouponCode)}
	}
	if md := req.ManualDiscount; md != nil {
		return ManualDiscount{Type: md.Type, Value: md.Value, Reason: md.Reason}
	}
	return NoDiscount{}
}

func checkStock(products map[uuid.UUID]model.Product, requested map[uuid.UUID]int) error {
	for id, qty := range requested {
		p := products[id]
		if p.StockQuantity < qty {
			return apierror.Conflict("insufficient stock for %s: requested %d, available %d", p.Name, qty, p.StockQuantity)
		}
	}
	return nil
}

func paymentDetails(req dto.CreateSaleRequest) datatypes.JSONMap {
	details := datatypes.JSONMap{}
	if req.CashReceived != nil {
		details["cash_received"] = req.CashReceived.StringFixed(2)
	}
	if req.Change != nil {
		details["change"] = req.Change.StringFixed(2)
	}
	if req.TransferReference != nil {
		details["transfer_reference"] = *req.TransferReference
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func summarize(sale *model.Sale) dto.SaleSummary {
	sum := dto.SaleSummary{
		Subtotal:     sale.Subtotal,
		Discount:     sale.Discount,
		DiscountType: sale.DiscountType,
		Tax:          sale.Tax,
		Total:        sale.Total,
		ItemCount:    len(sale.Items),
	}
	for _, it := range sale.Items {
		sum.TotalQuantity += it.Quantity
	}
	return sum
}

func saleToResponse(sale *model.Sale) dto.SaleResponse {
	resp := dto.SaleResponse{
		ID:             sale.ID.String(),
		UserID:         sale.UserID.String(),
		Items:          make([]dto.SaleItemResponse, 0, len(sale.Items)),
		Subtotal:       sale.Subtotal,
		Discount:       sale.Discount,
		DiscountType:   sale.DiscountType,
		DiscountReason: sale.DiscountReason,
		Tax:            sale.Tax,
		Total:          sale.Total,
		PaymentMethod:  sale.PaymentMethod,
		Notes:          sale.Notes,
		CreatedAt:      sale.CreatedAt.Format(time.RFC3339),
	}
	if len(sale.PaymentDetails) > 0 {
		resp.PaymentDetails = map[string]any(sale.PaymentDetails)
	}
	if sale.Customer != nil {
		resp.Customer = customerToResponse(sale.Customer)
	}
	for _, it := range sale.Items {
		item := dto.SaleItemResponse{
			ID:        it.ID.String(),
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
			TaxAmount: it.TaxAmount,
		}
		if it.Product != nil {
			item.ProductName = it.Product.Name
			item.SKU = it.Product.SKU
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}
