package service

import (
	"context"
	"strings"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/apierror"
	"github.com/eduardojeem/Mipos-sub008/internal/dto"
	"github.com/eduardojeem/Mipos-sub008/internal/model"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// CatalogService is the minimal product and customer write surface the sale
// pipeline needs to operate.
type CatalogService interface {
	CreateProduct(ctx context.Context, actor Actor, req dto.CreateProductRequest) (*dto.ProductResponse, error)
	GetProduct(ctx context.Context, actor Actor, id uuid.UUID) (*dto.ProductResponse, error)
	CreateCustomer(ctx context.Context, actor Actor, req dto.CreateCustomerRequest) (*dto.CustomerResponse, error)
	GetCustomer(ctx context.Context, actor Actor, id uuid.UUID) (*dto.CustomerResponse, error)
}

type catalogService struct {
	products  repository.ProductRepository
	customers repository.CustomerRepository
}

func NewCatalogService(products repository.ProductRepository, customers repository.CustomerRepository) CatalogService {
	return &catalogService{products: products, customers: customers}
}

func (s *catalogService) CreateProduct(ctx context.Context, actor Actor, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if req.SalePrice.IsNegative() {
		return nil, apierror.Validation("sale_price must not be negative")
	}
	if !isCents(req.SalePrice) {
		return nil, apierror.Validation("sale_price must have at most 2 decimal places")
	}
	p := &model.Product{
		OrganizationID: actor.OrganizationID,
		SKU:            strings.TrimSpace(req.SKU),
		Name:           strings.TrimSpace(req.Name),
		SalePrice:      req.SalePrice,
		TaxRate:        req.TaxRate,
		StockQuantity:  req.StockQuantity,
		Active:         true,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, apierror.Internal("failed to create product", err)
	}
	return productToResponse(p), nil
}

func (s *catalogService) GetProduct(ctx context.Context, actor Actor, id uuid.UUID) (*dto.ProductResponse, error) {
	p, err := s.products.FindByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, lookupErr(err, "product %s not found", id)
	}
	return productToResponse(p), nil
}

func (s *catalogService) CreateCustomer(ctx context.Context, actor Actor, req dto.CreateCustomerRequest) (*dto.CustomerResponse, error) {
	c := &model.Customer{
		OrganizationID: actor.OrganizationID,
		Name:           strings.TrimSpace(req.Name),
		Email:          req.Email,
	}
	if req.BirthDate != nil {
		bd, err := time.Parse(dateLayout, *req.BirthDate)
		if err != nil {
			return nil, apierror.Validation("birth_date must be YYYY-MM-DD")
		}
		c.BirthDate = &bd
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, apierror.Internal("failed to create customer", err)
	}
	return customerToResponse(c), nil
}

func (s *catalogService) GetCustomer(ctx context.Context, actor Actor, id uuid.UUID) (*dto.CustomerResponse, error) {
	c, err := s.customers.FindByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, lookupErr(err, "customer %s not found", id)
	}
	return customerToResponse(c), nil
}

func productToResponse(p *model.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:            p.ID.String(),
		Name:          p.Name,
		SKU:           p.SKU,
		SalePrice:     p.SalePrice,
		TaxRate:       p.TaxRate,
		StockQuantity: p.StockQuantity,
		Active:        p.Active,
	}
}

func customerToResponse(c *model.Customer) *dto.CustomerResponse {
	resp := &dto.CustomerResponse{
		ID:             c.ID.String(),
		Name:           c.Name,
		Email:          c.Email,
		TotalPurchases: c.TotalPurchases,
	}
	if c.BirthDate != nil {
		bd := c.BirthDate.Format(dateLayout)
		resp.BirthDate = &bd
	}
	if c.LastPurchaseAt != nil {
		lp := c.LastPurchaseAt.Format(time.RFC3339)
		resp.LastPurchaseAt = &lp
	}
	return resp
}
