package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
)

func TestAggregate(t *testing.T) {
	sales := []domain.Sale{
		{
			ID: "s1", TotalAmount: decimal.RequireFromString("50.00"),
			PaymentMethod: domain.PaymentCash, PaymentStatus: domain.StatusCompleted,
			Items: []domain.SaleItem{{Quantity: 5}},
		},
		{
			ID: "s2", TotalAmount: decimal.RequireFromString("20.00"),
			PaymentMethod: domain.PaymentCreditCard, PaymentStatus: domain.StatusCompleted,
			Items: []domain.SaleItem{{Quantity: 1}, {Quantity: 1}},
		},
		{
			ID: "s3", TotalAmount: decimal.RequireFromString("12.50"),
			PaymentMethod: domain.PaymentCash, PaymentStatus: domain.StatusCompleted,
			Items: []domain.SaleItem{{Quantity: 3}},
		},
		{
			ID: "s4", TotalAmount: decimal.RequireFromString("99.00"),
			PaymentMethod: domain.PaymentDebitCard, PaymentStatus: domain.StatusCancelled,
			Items: []domain.SaleItem{{Quantity: 9}},
		},
	}

	got := Aggregate("2026-10-19", sales)

	assert.Equal(t, "2026-10-19", got.Date)
	assert.Equal(t, 3, got.TotalSales)
	assert.Equal(t, 10, got.TotalItems)
	assert.True(t, got.TotalRevenue.Equal(decimal.RequireFromString("82.50")), got.TotalRevenue.String())
	assert.True(t, got.PaymentMethods[domain.PaymentCash].Equal(decimal.RequireFromString("62.50")))
	assert.True(t, got.PaymentMethods[domain.PaymentCreditCard].Equal(decimal.RequireFromString("20.00")))
	_, hasDebit := got.PaymentMethods[domain.PaymentDebitCard]
	assert.False(t, hasDebit)
	assert.Len(t, got.Sales, 3)
}

func TestAggregateEmptyDay(t *testing.T) {
	got := Aggregate("2026-01-01", nil)
	assert.Zero(t, got.TotalSales)
	assert.True(t, got.TotalRevenue.IsZero())
	assert.NotNil(t, got.PaymentMethods)
	assert.NotNil(t, got.Sales)
}

func TestDayBounds(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	t.Run("explicit date", func(t *testing.T) {
		date, start, end, err := DayBounds("2026-03-15", time.Now(), jakarta)
		require.NoError(t, err)
		assert.Equal(t, "2026-03-15", date)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, jakarta), start)
		assert.Equal(t, time.Date(2026, 3, 15, 23, 59, 59, 999999999, jakarta), end)
	})

	t.Run("defaults to today in the store timezone", func(t *testing.T) {
		// 20:00 UTC is already the next day in Jakarta (UTC+7).
		now := time.Date(2026, 3, 15, 20, 0, 0, 0, time.UTC)
		date, start, _, err := DayBounds("", now, jakarta)
		require.NoError(t, err)
		assert.Equal(t, "2026-03-16", date)
		assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, jakarta), start)
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		_, _, _, err := DayBounds("15/03/2026", time.Now(), jakarta)
		assert.Error(t, err)
	})
}
