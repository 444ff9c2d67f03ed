// Package pricing derives sale prices from product snapshots. Every function
// here is pure: the same inputs always produce the same amounts.
package pricing

import (
	"github.com/shopspring/decimal"

	"kasirpos/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Resolve returns the unit price charged for p. An active discount is applied
// once per unit and rounded half-up to cents; otherwise the list price is
// returned untouched.
func Resolve(p domain.Product) decimal.Decimal {
	if !p.IsDiscounted || !p.DiscountPercentage.Valid {
		return p.Price
	}
	cut := p.Price.Mul(p.DiscountPercentage.Decimal).Div(hundred)
	return p.Price.Sub(cut).Round(2)
}

// Gross is the undiscounted line amount.
func Gross(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

func LineSubtotal(unitPrice decimal.Decimal, qty int, discount decimal.Decimal) decimal.Decimal {
	return Gross(unitPrice, qty).Sub(discount).Round(2)
}

// FillProduct sets the derived discounted price on p.
func FillProduct(p *domain.Product) {
	if p == nil {
		return
	}
	p.DiscountedPrice = Resolve(*p)
}

// FillSale sets the derived subtotal of every item and the discounted price of
// every attached product.
func FillSale(s *domain.Sale) {
	if s == nil {
		return
	}
	for i := range s.Items {
		item := &s.Items[i]
		item.Subtotal = LineSubtotal(item.PriceAtSale, item.Quantity, item.DiscountApplied)
		FillProduct(item.Product)
	}
}
