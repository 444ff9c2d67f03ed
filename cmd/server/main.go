package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kasirpos/backend/internal/cache"
	"kasirpos/backend/internal/config"
	"kasirpos/backend/internal/httpapi"
	"kasirpos/backend/internal/logger"
	"kasirpos/backend/internal/metrics"
	"kasirpos/backend/internal/service"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/store/memory"
	pgstore "kasirpos/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zlog, err := logger.New(&logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stdout"})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zap.ReplaceGlobals(zlog)

	if err := validateSecurityConfig(cfg); err != nil {
		zlog.Fatal("invalid security configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		repo  store.Repository
		ready func(context.Context) error
	)
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		if cfg.DatabaseAutoMigrate {
			if err := migrateUp(cfg.DatabaseURL, zlog); err != nil {
				zlog.Fatal("database migration failed", zap.Error(err))
			}
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, cfg.DatabaseMaxOpenConns)
		if err != nil {
			zlog.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		repo = pg
		ready = pg.Ping
		closers = append(closers, pg.Close)
		zlog.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		zlog.Info("repository: in-memory")
	}

	reportCache := cache.DailyReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			zlog.Warn("redis unavailable, daily reports are not cached", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = redisCache.Close()
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			zlog.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		zlog.Info("cache: noop")
	}

	recorder := metrics.New()
	svc := service.New(repo, service.Options{
		ReportCache:    reportCache,
		ReportCacheTTL: cfg.ReportCacheTTL(),
		Metrics:        recorder,
		Logger:         zlog,
		Location:       cfg.Location(),
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo, zlog)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin:      cfg.AllowedOrigin,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		Location:           cfg.Location(),
		Logger:             zlog,
		Metrics:            recorder,
		Ready:              ready,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(zlog.Named("http")),
	}

	go func() {
		zlog.Info("POS backend listening", zap.String("addr", cfg.Address()), zap.String("timezone", cfg.StoreTimezone))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zlog.Warn("close error", zap.Error(err))
		}
	}

	zlog.Info("server stopped")
}

func migrateUp(databaseURL string, zlog *zap.Logger) error {
	migrator, err := pgstore.NewMigrator(databaseURL, zlog)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()
	return migrator.Up()
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must name a concrete origin, not *")
	}
	return nil
}
