package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/logger"
)

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	key := clientKey(r)
	if !a.loginLimiter.Allow(key) {
		logger.FromContext(r.Context()).Warn("login rate limited", zap.String("client", key))
		writeError(w, r, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	switch {
	case errors.Is(err, errInvalidCredentials), errors.Is(err, errInactiveAccount):
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListCashiers(w http.ResponseWriter, r *http.Request) {
	cashiers, err := a.auth.ListCashiers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cashiers": cashiers})
}

func (a *API) handleCreateCashier(w http.ResponseWriter, r *http.Request) {
	var req domain.CashierCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cashier, err := a.auth.CreateCashier(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
}
