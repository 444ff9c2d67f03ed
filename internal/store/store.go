package store

import (
	"context"
	"time"

	"kasirpos/backend/internal/domain"
)

// ProductLedger is the product side of a unit of work. Products returned by
// FindProduct stay locked until the unit ends.
type ProductLedger interface {
	FindProduct(ctx context.Context, id string) (*domain.Product, error)
	// DecrementStock fails with *InsufficientStockError instead of letting
	// stock go negative. It returns the new stock.
	DecrementStock(ctx context.Context, id string, qty int) (int, error)
	IncrementStock(ctx context.Context, id string, qty int) (int, error)
	// SaveProduct writes every field except stock.
	SaveProduct(ctx context.Context, product domain.Product) error
	RecordMovement(ctx context.Context, movement domain.StockMovement) error
}

type SaleStore interface {
	// InsertSale writes the sale and all of its items.
	InsertSale(ctx context.Context, sale *domain.Sale) error
	// FindSale returns the locked sale with its items, without products.
	FindSale(ctx context.Context, id string) (*domain.Sale, error)
	UpdateSaleStatus(ctx context.Context, id string, status domain.PaymentStatus, at time.Time) error
}

type UnitOfWork interface {
	Products() ProductLedger
	Sales() SaleStore
}

// Transactor runs fn as one atomic unit. The unit commits only when fn
// returns nil; an error or panic discards every staged mutation.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	Transactor
	UserStore

	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListStockMovements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error)

	// GetSale and ListSales return sales with items and their products.
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
}
