package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

const saleColumns = `id, total_amount, payment_method, payment_status, installments,
	card_last_digits, discount_applied, coupon_code, sale_date, cashier_id, created_at, updated_at`

const saleItemColumns = `id, sale_id, product_id, line_no, quantity, price_at_sale, discount_applied`

type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.GetContext(ctx, &sale, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{Entity: "sale", ID: id}
		}
		return nil, err
	}

	sales := []domain.Sale{sale}
	if err := loadItems(ctx, s.db, sales, true); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("sale_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("sale_date <= $%d", len(args)))
	}

	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY sale_date DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	sales := make([]domain.Sale, 0, 32)
	if err := s.db.SelectContext(ctx, &sales, query, args...); err != nil {
		return nil, err
	}
	if err := loadItems(ctx, s.db, sales, true); err != nil {
		return nil, err
	}
	return sales, nil
}

// loadItems fills the items of every sale, in line order, and optionally the
// product each item references.
func loadItems(ctx context.Context, q queryer, sales []domain.Sale, withProducts bool) error {
	if len(sales) == 0 {
		return nil
	}

	ids := make([]string, 0, len(sales))
	index := make(map[string]int, len(sales))
	for i := range sales {
		ids = append(ids, sales[i].ID)
		index[sales[i].ID] = i
		sales[i].Items = make([]domain.SaleItem, 0, 4)
	}

	query, args, err := sqlx.In(`SELECT `+saleItemColumns+` FROM sale_items WHERE sale_id IN (?) ORDER BY sale_id, line_no`, ids)
	if err != nil {
		return err
	}
	var items []domain.SaleItem
	if err := sqlx.SelectContext(ctx, q, &items, q.Rebind(query), args...); err != nil {
		return err
	}

	var products map[string]domain.Product
	if withProducts && len(items) > 0 {
		products, err = productsByID(ctx, q, items)
		if err != nil {
			return err
		}
	}

	for _, item := range items {
		if p, ok := products[item.ProductID]; ok {
			product := p
			item.Product = &product
		}
		i := index[item.SaleID]
		sales[i].Items = append(sales[i].Items, item)
	}
	return nil
}

func productsByID(ctx context.Context, q queryer, items []domain.SaleItem) (map[string]domain.Product, error) {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var products []domain.Product
	if err := sqlx.SelectContext(ctx, q, &products, q.Rebind(query), args...); err != nil {
		return nil, err
	}

	out := make(map[string]domain.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}
