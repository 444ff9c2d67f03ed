package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/logger"
	"kasirpos/backend/internal/metrics"
	"kasirpos/backend/internal/service"
	"kasirpos/backend/internal/store"
)

const maxBodyBytes = 1 << 20

type Options struct {
	AllowedOrigin      string
	LoginRatePerMinute int
	// Location interprets date-only query parameters.
	Location *time.Location
	Logger   *zap.Logger
	Metrics  *metrics.Recorder
	// Ready reports whether backing services are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

type API struct {
	service      *service.Service
	auth         *AuthManager
	opts         Options
	logger       *zap.Logger
	loginLimiter *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	if opts.LoginRatePerMinute <= 0 {
		opts.LoginRatePerMinute = 5
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &API{
		service:      svc,
		auth:         auth,
		opts:         opts,
		logger:       opts.Logger.Named("http"),
		loginLimiter: newAttemptLimiter(opts.LoginRatePerMinute),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(a.logger))
	r.Use(middleware.Recoverer)
	r.Use(a.observe)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{a.opts.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(limitBody)

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", a.opts.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", a.handleListProducts)
				r.Get("/barcode/{barcode}", a.handleGetProductByBarcode)
				r.Get("/{id}", a.handleGetProduct)

				r.Group(func(r chi.Router) {
					r.Use(requireRole(domain.RoleAdmin, domain.RoleManager))
					r.Post("/", a.handleCreateProduct)
					r.Put("/{id}", a.handleUpdateProduct)
					r.Delete("/{id}", a.handleDeleteProduct)
					r.Put("/{id}/stock", a.handleAdjustStock)
					r.Put("/{id}/discount", a.handleSetDiscount)
					r.Get("/{id}/movements", a.handleListStockMovements)
				})
			})

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", a.handleListSales)
				r.Post("/", a.handleCreateSale)
				r.Get("/report/daily", a.handleDailyReport)
				r.Get("/{id}", a.handleGetSale)
				r.Put("/{id}/status", a.handleSetSaleStatus)
			})

			r.With(requireRole(domain.RoleAdmin)).Route("/users/cashiers", func(r chi.Router) {
				r.Get("/", a.handleListCashiers)
				r.Post("/", a.handleCreateCashier)
			})
		})
	})

	return r
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		ctx := service.WithActor(r.Context(), actor)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("actor", actor.Username)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := service.ActorFromContext(r.Context())
			if !ok || !isRoleAllowed(actor.Role, roles) {
				writeError(w, r, http.StatusForbidden, "forbidden role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// observe records request count and latency per matched route.
func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		a.opts.Metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	}
	if a.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.opts.Ready(ctx); err != nil {
			logger.FromContext(r.Context()).Warn("readiness check failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			body["ok"] = false
		}
	}
	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dest)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
	return false
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

type errorResponse struct {
	Error     string             `json:"error"`
	Fields    []store.FieldError `json:"fields,omitempty"`
	ProductID string             `json:"product_id,omitempty"`
	Available *int               `json:"available,omitempty"`
	Requested *int               `json:"requested,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps the store error taxonomy onto HTTP statuses. Errors
// outside the taxonomy are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *store.ValidationError
		stock *store.InsufficientStockError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: store.ErrValidation.Error(), Fields: verr.Fields})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:     err.Error(),
			ProductID: stock.ProductID,
			Available: &stock.Available,
			Requested: &stock.Requested,
		})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrTransactionFailure):
		logger.FromContext(r.Context()).Error("transaction failure", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "transaction could not be completed, retry later")
	default:
		logger.FromContext(r.Context()).Error("internal error", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
