package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

// unit binds the ledger and sale store to one open transaction.
type unit struct {
	tx *sqlx.Tx
}

var (
	_ store.UnitOfWork    = (*unit)(nil)
	_ store.ProductLedger = (*unit)(nil)
	_ store.SaleStore     = (*unit)(nil)
)

func (u *unit) Products() store.ProductLedger { return u }

func (u *unit) Sales() store.SaleStore { return u }

func (u *unit) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := u.tx.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{Entity: "product", ID: id}
		}
		return nil, err
	}
	return &p, nil
}

func (u *unit) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	var stock int
	err := u.tx.GetContext(ctx, &stock, `
		UPDATE products
		SET stock = stock - $1, updated_at = now()
		WHERE id = $2 AND stock >= $1
		RETURNING stock
	`, qty, id)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		if pgCode(err) == codeCheckViolation {
			return 0, &store.InsufficientStockError{ProductID: id, Requested: qty}
		}
		return 0, err
	}

	// Nothing matched: either the product is gone or the guard rejected it.
	var available int
	err = u.tx.GetContext(ctx, &available, `SELECT stock FROM products WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, &store.NotFoundError{Entity: "product", ID: id}
		}
		return 0, err
	}
	return 0, &store.InsufficientStockError{ProductID: id, Available: available, Requested: qty}
}

func (u *unit) IncrementStock(ctx context.Context, id string, qty int) (int, error) {
	var stock int
	err := u.tx.GetContext(ctx, &stock, `
		UPDATE products
		SET stock = stock + $1, updated_at = now()
		WHERE id = $2
		RETURNING stock
	`, qty, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, &store.NotFoundError{Entity: "product", ID: id}
		}
		return 0, err
	}
	return stock, nil
}

func (u *unit) SaveProduct(ctx context.Context, product domain.Product) error {
	product.UpdatedAt = time.Now().UTC()
	res, err := u.tx.NamedExecContext(ctx, `
		UPDATE products
		SET name = :name,
			barcode = :barcode,
			description = :description,
			category = :category,
			price = :price,
			is_discounted = :is_discounted,
			discount_percentage = :discount_percentage,
			expiration_date = :expiration_date,
			updated_at = :updated_at
		WHERE id = :id
	`, product)
	if err != nil {
		if isUniqueViolation(err) {
			return &store.ConflictError{Entity: "product", Reason: "barcode already exists"}
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &store.NotFoundError{Entity: "product", ID: product.ID}
	}
	return nil
}

func (u *unit) RecordMovement(ctx context.Context, movement domain.StockMovement) error {
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	_, err := u.tx.NamedExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, type, quantity, stock_before, stock_after, reference, reason, created_at)
		VALUES (:id, :product_id, :type, :quantity, :stock_before, :stock_after, :reference, :reason, :created_at)
	`, movement)
	return err
}

func (u *unit) InsertSale(ctx context.Context, sale *domain.Sale) error {
	now := time.Now().UTC()
	sale.CreatedAt = now
	sale.UpdatedAt = now

	_, err := u.tx.NamedExecContext(ctx, `
		INSERT INTO sales (
			id, total_amount, payment_method, payment_status, installments, card_last_digits,
			discount_applied, coupon_code, sale_date, cashier_id, created_at, updated_at
		)
		VALUES (
			:id, :total_amount, :payment_method, :payment_status, :installments, :card_last_digits,
			:discount_applied, :coupon_code, :sale_date, :cashier_id, :created_at, :updated_at
		)
	`, sale)
	if err != nil {
		if isForeignKeyViolation(err) && sale.CashierID != nil {
			return &store.NotFoundError{Entity: "user", ID: *sale.CashierID}
		}
		if isUniqueViolation(err) {
			return &store.ConflictError{Entity: "sale", Reason: "id already exists"}
		}
		return err
	}

	for _, item := range sale.Items {
		_, err := u.tx.NamedExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, line_no, quantity, price_at_sale, discount_applied)
			VALUES (:id, :sale_id, :product_id, :line_no, :quantity, :price_at_sale, :discount_applied)
		`, item)
		if err != nil {
			if isForeignKeyViolation(err) {
				return &store.NotFoundError{Entity: "product", ID: item.ProductID}
			}
			return err
		}
	}
	return nil
}

func (u *unit) FindSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := u.tx.GetContext(ctx, &sale, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{Entity: "sale", ID: id}
		}
		return nil, err
	}

	sales := []domain.Sale{sale}
	if err := loadItems(ctx, u.tx, sales, false); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (u *unit) UpdateSaleStatus(ctx context.Context, id string, status domain.PaymentStatus, at time.Time) error {
	res, err := u.tx.ExecContext(ctx, `
		UPDATE sales
		SET payment_status = $2, updated_at = $3
		WHERE id = $1
	`, id, string(status), at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &store.NotFoundError{Entity: "sale", ID: id}
	}
	return nil
}
