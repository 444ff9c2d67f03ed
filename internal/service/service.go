package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"kasirpos/backend/internal/cache"
	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/logger"
	"kasirpos/backend/internal/metrics"
	"kasirpos/backend/internal/report"
	"kasirpos/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	ReportCache    cache.DailyReportCache
	ReportCacheTTL time.Duration
	Metrics        *metrics.Recorder
	Logger         *zap.Logger
	// Location defines the calendar day used by daily reports.
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	repo     store.Repository
	reports  cache.DailyReportCache
	cacheTTL time.Duration
	metrics  *metrics.Recorder
	logger   *zap.Logger
	loc      *time.Location
	now      func() time.Time

	// reportEpoch counts invalidations. A report computed across an
	// invalidation is not cached.
	reportEpoch atomic.Uint64
}

func New(repo store.Repository, opts Options) *Service {
	if opts.ReportCache == nil {
		opts.ReportCache = cache.NoopReportCache{}
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:     repo,
		reports:  opts.ReportCache,
		cacheTTL: opts.ReportCacheTTL,
		metrics:  opts.Metrics,
		logger:   opts.Logger.Named("service"),
		loc:      opts.Location,
		now:      opts.Now,
	}
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	if id := logger.RequestID(ctx); id != "" {
		return s.logger.With(zap.String("request_id", id))
	}
	return s.logger
}

// classify keeps domain errors as they are and reports every other failure
// of a unit of work as a transaction failure.
func classify(err error) error {
	if err == nil || store.IsDomain(err) {
		return err
	}
	return fmt.Errorf("%w: %w", store.ErrTransactionFailure, err)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, store.ErrValidation):
		return "validation"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	default:
		return "transaction_failure"
	}
}

// invalidateReport drops the cached daily report covering at.
func (s *Service) invalidateReport(ctx context.Context, at time.Time) {
	day := at.In(s.loc).Format(report.DateLayout)
	s.reportEpoch.Add(1)
	if err := s.reports.Delete(ctx, day); err != nil {
		s.log(ctx).Warn("failed to invalidate daily report cache", zap.String("date", day), zap.Error(err))
	}
}
