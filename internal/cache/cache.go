package cache

import (
	"context"
	"time"

	"kasirpos/backend/internal/domain"
)

// DailyReportCache stores computed daily reports keyed by YYYY-MM-DD.
type DailyReportCache interface {
	Get(ctx context.Context, date string) (*domain.DailyReport, bool, error)
	Set(ctx context.Context, date string, value *domain.DailyReport, ttl time.Duration) error
	Delete(ctx context.Context, date string) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.DailyReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.DailyReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Delete(_ context.Context, _ string) error {
	return nil
}
