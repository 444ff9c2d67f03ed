package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleLineRequest struct {
	ProductID      string          `json:"product_id" validate:"required"`
	Quantity       int             `json:"quantity" validate:"min=1"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

type CreateSaleRequest struct {
	Items          []SaleLineRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod  PaymentMethod     `json:"payment_method" validate:"required,oneof=cash credit_card debit_card"`
	UserID         string            `json:"user_id,omitempty"`
	Installments   int               `json:"installments,omitempty" validate:"omitempty,min=1"`
	CardLastDigits string            `json:"card_last_digits,omitempty" validate:"omitempty,len=4,digits"`
	CouponCode     string            `json:"coupon_code,omitempty" validate:"max=64"`
}

type SaleStatusRequest struct {
	Status PaymentStatus `json:"status" validate:"required,oneof=pending completed cancelled"`
}

type ProductCreateRequest struct {
	Name               string           `json:"name" validate:"required,max=255"`
	Barcode            string           `json:"barcode" validate:"required,max=64"`
	Description        string           `json:"description" validate:"max=2000"`
	Category           string           `json:"category" validate:"max=100"`
	Price              decimal.Decimal  `json:"price"`
	Stock              int              `json:"stock" validate:"min=0"`
	ExpirationDate     *time.Time       `json:"expiration_date,omitempty"`
	IsDiscounted       bool             `json:"is_discounted"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
}

// ProductUpdate is a partial update: a nil field leaves the stored value unchanged.
type ProductUpdate struct {
	Name               *string          `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Barcode            *string          `json:"barcode,omitempty" validate:"omitempty,min=1,max=64"`
	Description        *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category           *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Price              *decimal.Decimal `json:"price,omitempty"`
	Stock              *int             `json:"stock,omitempty" validate:"omitempty,min=0"`
	ExpirationDate     *time.Time       `json:"expiration_date,omitempty"`
	IsDiscounted       *bool            `json:"is_discounted,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
}

type StockOperation string

const (
	StockAdd      StockOperation = "add"
	StockSubtract StockOperation = "subtract"
	StockSet      StockOperation = "set"
)

type StockAdjustRequest struct {
	Quantity  *int           `json:"quantity" validate:"required,min=0"`
	Operation StockOperation `json:"operation,omitempty" validate:"omitempty,oneof=add subtract set"`
	Reason    string         `json:"reason,omitempty" validate:"max=255"`
}

type DiscountRequest struct {
	IsDiscounted       *bool            `json:"is_discounted" validate:"required"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
}
