// Package report aggregates completed sales into daily summaries.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kasirpos/backend/internal/domain"
)

const DateLayout = "2006-01-02"

// DayBounds returns the first and last instant of the calendar day named by
// date in loc. An empty date means today.
func DayBounds(date string, now time.Time, loc *time.Location) (string, time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	var day time.Time
	if date == "" {
		n := now.In(loc)
		day = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	} else {
		parsed, err := time.ParseInLocation(DateLayout, date, loc)
		if err != nil {
			return "", time.Time{}, time.Time{}, fmt.Errorf("date must use YYYY-MM-DD: %w", err)
		}
		day = parsed
	}

	start := day
	end := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return day.Format(DateLayout), start, end, nil
}

// Aggregate builds the report for sales that are already restricted to one
// day. Sales that are not completed are skipped.
func Aggregate(date string, sales []domain.Sale) domain.DailyReport {
	out := domain.DailyReport{
		Date:           date,
		TotalRevenue:   decimal.Zero,
		PaymentMethods: make(map[domain.PaymentMethod]decimal.Decimal, 3),
		Sales:          make([]domain.Sale, 0, len(sales)),
	}

	for _, sale := range sales {
		if sale.PaymentStatus != domain.StatusCompleted {
			continue
		}
		out.TotalSales++
		out.TotalRevenue = out.TotalRevenue.Add(sale.TotalAmount)
		for _, item := range sale.Items {
			out.TotalItems += item.Quantity
		}
		out.PaymentMethods[sale.PaymentMethod] = out.PaymentMethods[sale.PaymentMethod].Add(sale.TotalAmount)
		out.Sales = append(out.Sales, sale)
	}
	return out
}
