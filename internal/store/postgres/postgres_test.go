package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(sqlx.NewDb(db, "pgx")), mock
}

var productCols = []string{
	"id", "name", "barcode", "description", "category", "price", "stock",
	"is_discounted", "discount_percentage", "expiration_date", "created_at", "updated_at",
}

func TestWithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when the unit succeeds", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE products\s+SET stock = stock - \$1`).
			WithArgs(3, "prd-1").
			WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(2))
		mock.ExpectCommit()

		err := s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
			left, err := uow.Products().DecrementStock(ctx, "prd-1", 3)
			assert.Equal(t, 2, left)
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the unit fails", func(t *testing.T) {
		s, mock := newMockStore(t)
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
				panic("unexpected")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("serialization failure on commit is a transaction failure", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: codeSerializationFailure})

		err := s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
			return nil
		})
		require.ErrorIs(t, err, store.ErrTransactionFailure)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure is reported", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		called := false
		err := s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.False(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDecrementStock(t *testing.T) {
	ctx := context.Background()

	t.Run("guard rejects overdraw with the available quantity", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE products\s+SET stock = stock - \$1`).
			WithArgs(4, "prd-1").
			WillReturnRows(sqlmock.NewRows([]string{"stock"}))
		mock.ExpectQuery(`SELECT stock FROM products WHERE id = \$1`).
			WithArgs("prd-1").
			WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(1))
		mock.ExpectRollback()

		err := s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
			_, err := uow.Products().DecrementStock(ctx, "prd-1", 4)
			return err
		})

		var stockErr *store.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 1, stockErr.Available)
		assert.Equal(t, 4, stockErr.Requested)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing product", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE products\s+SET stock = stock - \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"stock"}))
		mock.ExpectQuery(`SELECT stock FROM products WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"stock"}))
		mock.ExpectRollback()

		err := s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
			_, err := uow.Products().DecrementStock(ctx, "missing", 1)
			return err
		})
		require.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindProductLocksRow(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM products WHERE id = \$1 FOR UPDATE`).
		WithArgs("prd-1").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("prd-1", "Roti Tawar", "899100", "", "bakery", "17800.00", 30, true, "10.00", nil, now, now))
	mock.ExpectCommit()

	var found *domain.Product
	err := s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		var err error
		found, err = uow.Products().FindProduct(ctx, "prd-1")
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Price.Equal(decimal.RequireFromString("17800")))
	assert.True(t, found.DiscountPercentage.Valid)
	assert.Equal(t, 30, found.Stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSale(t *testing.T) {
	ctx := context.Background()
	cashier := "ghost"
	sale := func() *domain.Sale {
		return &domain.Sale{
			ID:            "sale-1",
			TotalAmount:   decimal.RequireFromString("50.00"),
			PaymentMethod: domain.PaymentCash,
			PaymentStatus: domain.StatusCompleted,
			Installments:  1,
			SaleDate:      time.Now().UTC(),
			Items: []domain.SaleItem{
				{ID: "item-1", SaleID: "sale-1", ProductID: "prd-1", LineNo: 1, Quantity: 2, PriceAtSale: decimal.RequireFromString("10.00")},
				{ID: "item-2", SaleID: "sale-1", ProductID: "prd-2", LineNo: 2, Quantity: 3, PriceAtSale: decimal.RequireFromString("10.00")},
			},
		}
	}

	t.Run("writes the sale and every item", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO sales`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO sale_items`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO sale_items`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
			return uow.Sales().InsertSale(ctx, sale())
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown cashier is reported as a missing user", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO sales`).
			WillReturnError(&pgconn.PgError{Code: codeForeignKeyViolation, ConstraintName: "sales_cashier_id_fkey"})
		mock.ExpectRollback()

		err := s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
			in := sale()
			in.CashierID = &cashier
			return uow.Sales().InsertSale(ctx, in)
		})

		var nf *store.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "user", nf.Entity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("item failure rolls back the whole sale", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO sales`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO sale_items`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO sale_items`).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
			return uow.Sales().InsertSale(ctx, sale())
		})
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindSaleLocksAndLoadsItems(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM sales WHERE id = \$1 FOR UPDATE`).
		WithArgs("sale-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "total_amount", "payment_method", "payment_status", "installments",
			"card_last_digits", "discount_applied", "coupon_code", "sale_date", "cashier_id", "created_at", "updated_at",
		}).AddRow("sale-1", "50.00", "cash", "completed", 1, "", "0.00", "", now, nil, now, now))
	mock.ExpectQuery(`SELECT .+ FROM sale_items WHERE sale_id IN \(\$1\)`).
		WithArgs("sale-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sale_id", "product_id", "line_no", "quantity", "price_at_sale", "discount_applied"}).
			AddRow("item-1", "sale-1", "prd-1", 1, 3, "10.00", "0.00").
			AddRow("item-2", "sale-1", "prd-2", 2, 2, "10.00", "0.00"))
	mock.ExpectExec(`UPDATE sales\s+SET payment_status = \$2`).
		WithArgs("sale-1", "cancelled", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		sale, err := uow.Sales().FindSale(ctx, "sale-1")
		if err != nil {
			return err
		}
		assert.Equal(t, domain.StatusCompleted, sale.PaymentStatus)
		require.Len(t, sale.Items, 2)
		assert.Equal(t, 3, sale.Items[0].Quantity)
		assert.Nil(t, sale.Items[0].Product)
		return uow.Sales().UpdateSaleStatus(ctx, "sale-1", domain.StatusCancelled, now)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSaleStatusMissingSale(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE sales`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		return uow.Sales().UpdateSaleStatus(ctx, "missing", domain.StatusCancelled, time.Now())
	})
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductDuplicateBarcode(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO products`).WillReturnError(&pgconn.PgError{Code: codeUniqueViolation})

	_, err := s.CreateProduct(context.Background(), domain.Product{ID: "prd-1", Name: "Kopi", Barcode: "899", Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`DELETE FROM products WHERE id = \$1`).WithArgs("prd-x").WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.DeleteProduct(ctx, "prd-x")
		require.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("referenced by sales", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(`DELETE FROM products WHERE id = \$1`).WillReturnError(&pgconn.PgError{Code: codeForeignKeyViolation})

		err := s.DeleteProduct(ctx, "prd-1")
		require.ErrorIs(t, err, store.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListSalesLoadsItemsAndProducts(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	from := now.Add(-time.Hour)
	to := now.Add(time.Hour)

	mock.ExpectQuery(`SELECT .+ FROM sales WHERE payment_status = \$1 AND sale_date >= \$2 AND sale_date <= \$3 ORDER BY sale_date DESC, id LIMIT \$4`).
		WithArgs("completed", from, to, 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "total_amount", "payment_method", "payment_status", "installments",
			"card_last_digits", "discount_applied", "coupon_code", "sale_date", "cashier_id", "created_at", "updated_at",
		}).
			AddRow("sale-2", "20.00", "debit_card", "completed", 1, "4242", "0.00", "", now, "cashier", now, now).
			AddRow("sale-1", "50.00", "cash", "completed", 1, "", "0.00", "", now.Add(-time.Minute), nil, now, now))
	mock.ExpectQuery(`FROM sale_items WHERE sale_id IN \(\$1, \$2\)`).
		WithArgs("sale-2", "sale-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sale_id", "product_id", "line_no", "quantity", "price_at_sale", "discount_applied"}).
			AddRow("item-1", "sale-1", "prd-1", 1, 5, "10.00", "0.00").
			AddRow("item-2", "sale-2", "prd-2", 1, 2, "10.00", "0.00"))
	mock.ExpectQuery(`FROM products WHERE id IN \(\$1, \$2\)`).
		WithArgs("prd-1", "prd-2").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("prd-1", "Produk A", "111", "", "", "10.00", 0, false, nil, nil, now, now).
			AddRow("prd-2", "Produk B", "222", "", "", "20.00", 8, true, "50.00", nil, now, now))

	sales, err := s.ListSales(ctx, domain.SaleFilter{Status: domain.StatusCompleted, From: &from, To: &to, Limit: 10})
	require.NoError(t, err)
	require.Len(t, sales, 2)

	assert.Equal(t, "sale-2", sales[0].ID)
	require.NotNil(t, sales[0].CashierID)
	assert.Equal(t, "cashier", *sales[0].CashierID)
	require.Len(t, sales[0].Items, 1)
	require.NotNil(t, sales[0].Items[0].Product)
	assert.Equal(t, "Produk B", sales[0].Items[0].Product.Name)

	assert.Nil(t, sales[1].CashierID)
	require.Len(t, sales[1].Items, 1)
	assert.Equal(t, 5, sales[1].Items[0].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}
