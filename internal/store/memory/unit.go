package memory

import (
	"context"
	"time"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

// unit is a unit of work over Store. It runs while the store's write lock is
// held and journals an undo step for every mutation it applies.
type unit struct {
	s    *Store
	undo []func()
}

var (
	_ store.UnitOfWork    = (*unit)(nil)
	_ store.ProductLedger = (*unit)(nil)
	_ store.SaleStore     = (*unit)(nil)
)

func (u *unit) Products() store.ProductLedger { return u }

func (u *unit) Sales() store.SaleStore { return u }

func (u *unit) rollback() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
}

func (u *unit) FindProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := u.s.products[id]
	if !ok {
		return nil, &store.NotFoundError{Entity: "product", ID: id}
	}
	out := cloneProduct(p)
	return &out, nil
}

func (u *unit) DecrementStock(_ context.Context, id string, qty int) (int, error) {
	p, ok := u.s.products[id]
	if !ok {
		return 0, &store.NotFoundError{Entity: "product", ID: id}
	}
	if p.Stock < qty {
		return 0, &store.InsufficientStockError{ProductID: id, Available: p.Stock, Requested: qty}
	}
	u.putProduct(p, func(next *domain.Product) { next.Stock -= qty })
	return p.Stock - qty, nil
}

func (u *unit) IncrementStock(_ context.Context, id string, qty int) (int, error) {
	p, ok := u.s.products[id]
	if !ok {
		return 0, &store.NotFoundError{Entity: "product", ID: id}
	}
	u.putProduct(p, func(next *domain.Product) { next.Stock += qty })
	return p.Stock + qty, nil
}

func (u *unit) SaveProduct(_ context.Context, product domain.Product) error {
	prev, ok := u.s.products[product.ID]
	if !ok {
		return &store.NotFoundError{Entity: "product", ID: product.ID}
	}
	if owner, taken := u.s.productIDByCode[product.Barcode]; taken && owner != product.ID {
		return &store.ConflictError{Entity: "product", Reason: "barcode already exists"}
	}

	if prev.Barcode != product.Barcode {
		oldCode, newCode := prev.Barcode, product.Barcode
		delete(u.s.productIDByCode, oldCode)
		u.s.productIDByCode[newCode] = product.ID
		u.undo = append(u.undo, func() {
			delete(u.s.productIDByCode, newCode)
			u.s.productIDByCode[oldCode] = product.ID
		})
	}

	u.putProduct(prev, func(next *domain.Product) {
		stock, createdAt := next.Stock, next.CreatedAt
		*next = cloneProduct(product)
		next.Stock = stock
		next.CreatedAt = createdAt
	})
	return nil
}

func (u *unit) RecordMovement(_ context.Context, movement domain.StockMovement) error {
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = u.s.now()
	}
	n := len(u.s.movements)
	u.s.movements = append(u.s.movements, movement)
	u.undo = append(u.undo, func() { u.s.movements = u.s.movements[:n] })
	return nil
}

func (u *unit) InsertSale(_ context.Context, sale *domain.Sale) error {
	if _, exists := u.s.sales[sale.ID]; exists {
		return &store.ConflictError{Entity: "sale", Reason: "id already exists"}
	}
	now := u.s.now()
	sale.CreatedAt = now
	sale.UpdatedAt = now
	stored := cloneSale(sale)
	u.s.sales[sale.ID] = &stored
	id := sale.ID
	u.undo = append(u.undo, func() { delete(u.s.sales, id) })
	return nil
}

func (u *unit) FindSale(_ context.Context, id string) (*domain.Sale, error) {
	sale, ok := u.s.sales[id]
	if !ok {
		return nil, &store.NotFoundError{Entity: "sale", ID: id}
	}
	out := cloneSale(sale)
	return &out, nil
}

func (u *unit) UpdateSaleStatus(_ context.Context, id string, status domain.PaymentStatus, at time.Time) error {
	sale, ok := u.s.sales[id]
	if !ok {
		return &store.NotFoundError{Entity: "sale", ID: id}
	}
	prevStatus, prevUpdated := sale.PaymentStatus, sale.UpdatedAt
	sale.PaymentStatus = status
	sale.UpdatedAt = at
	u.undo = append(u.undo, func() {
		sale.PaymentStatus = prevStatus
		sale.UpdatedAt = prevUpdated
	})
	return nil
}

// putProduct stores a mutated copy of prev and journals its restoration.
func (u *unit) putProduct(prev domain.Product, mutate func(next *domain.Product)) {
	next := cloneProduct(prev)
	mutate(&next)
	next.UpdatedAt = u.s.now()
	u.s.products[prev.ID] = next
	u.undo = append(u.undo, func() { u.s.products[prev.ID] = prev })
}
