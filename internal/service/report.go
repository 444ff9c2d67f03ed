package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/pricing"
	"kasirpos/backend/internal/report"
	"kasirpos/backend/internal/store"
)

// DailyReport aggregates the completed sales of one calendar day in the store
// timezone. An empty date means today.
func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	day, from, to, err := report.DayBounds(strings.TrimSpace(date), s.now(), s.loc)
	if err != nil {
		return domain.DailyReport{}, store.Invalid("date", "must use the YYYY-MM-DD format")
	}

	cached, ok, err := s.reports.Get(ctx, day)
	if err != nil {
		s.log(ctx).Warn("daily report cache read failed", zap.String("date", day), zap.Error(err))
	} else if ok {
		return *cached, nil
	}

	epoch := s.reportEpoch.Load()
	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{
		Status: domain.StatusCompleted,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		return domain.DailyReport{}, err
	}
	for i := range sales {
		pricing.FillSale(&sales[i])
	}

	out := report.Aggregate(day, sales)
	if s.reportEpoch.Load() != epoch {
		s.log(ctx).Debug("sales changed while building daily report, not caching", zap.String("date", day))
		return out, nil
	}
	if err := s.reports.Set(ctx, day, &out, s.cacheTTL); err != nil {
		s.log(ctx).Warn("daily report cache write failed", zap.String("date", day), zap.Error(err))
	}
	return out, nil
}
