package dto

import "github.com/shopspring/decimal"

type CreateProductRequest struct {
	Name          string          `json:"name"           validate:"required,min=2,max=200"`
	SKU           string          `json:"sku"            validate:"required,max=64"`
	SalePrice     decimal.Decimal `json:"sale_price"     validate:"min=0"`
	TaxRate       decimal.Decimal `json:"tax_rate"       validate:"min=0,max=100"`
	StockQuantity int             `json:"stock_quantity" validate:"min=0"`
}

type ProductResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	StockQuantity int             `json:"stock_quantity"`
	Active        bool            `json:"active"`
}

type CreateCustomerRequest struct {
	Name      string  `json:"name"       validate:"required,min=2,max=200"`
	Email     *string `json:"email"      validate:"omitempty,email"`
	BirthDate *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
}

type CustomerResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          *string         `json:"email,omitempty"`
	BirthDate      *string         `json:"birth_date,omitempty"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	LastPurchaseAt *string         `json:"last_purchase_at,omitempty"`
}
