package httpapi

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/logger"
	"kasirpos/backend/internal/report"
	"kasirpos/backend/internal/service"
	"kasirpos/backend/internal/store"
)

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		if actor, ok := service.ActorFromContext(r.Context()); ok {
			req.UserID = actor.Username
		}
	}

	sale, err := a.service.CreateSale(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleSetSaleStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sale, err := a.service.SetSaleStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.SaleFilter{
		Status: domain.PaymentStatus(strings.TrimSpace(query.Get("status"))),
		Limit:  parsePositiveLimit(query.Get("limit"), 100, 500),
	}

	var fields []store.FieldError
	if raw := query.Get("from"); raw != "" {
		from, err := a.parseTimeParam(raw, false)
		if err != nil {
			fields = append(fields, store.FieldError{Field: "from", Message: err.Error()})
		} else {
			filter.From = &from
		}
	}
	if raw := query.Get("to"); raw != "" {
		to, err := a.parseTimeParam(raw, true)
		if err != nil {
			fields = append(fields, store.FieldError{Field: "to", Message: err.Error()})
		} else {
			filter.To = &to
		}
	}
	if len(fields) > 0 {
		writeServiceError(w, r, &store.ValidationError{Fields: fields})
		return
	}

	sales, err := a.service.ListSales(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

// parseTimeParam accepts RFC 3339 timestamps or calendar dates. A date
// resolves to the start of that day, or to its last instant when endOfDay is
// set.
func (a *API) parseTimeParam(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	_, start, end, err := report.DayBounds(raw, time.Now(), a.opts.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be an RFC 3339 timestamp or a YYYY-MM-DD date")
	}
	if endOfDay {
		return end, nil
	}
	return start, nil
}

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(query.Get("format")))
	if format != "" && format != "json" && format != "csv" {
		writeServiceError(w, r, store.Invalid("format", "must be one of: json, csv"))
		return
	}

	daily, err := a.service.DailyReport(r.Context(), query.Get("date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"daily-report-%s.csv\"", daily.Date))
		w.WriteHeader(http.StatusOK)
		if err := writeDailyReportCSV(w, daily); err != nil {
			logger.FromContext(r.Context()).Error("failed to write daily report csv", zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

func writeDailyReportCSV(out io.Writer, daily domain.DailyReport) error {
	cw := csv.NewWriter(out)
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "date", daily.Date},
		{"summary", "total_sales", strconv.Itoa(daily.TotalSales)},
		{"summary", "total_items", strconv.Itoa(daily.TotalItems)},
		{"summary", "total_revenue", daily.TotalRevenue.StringFixed(2)},
	}

	methods := make([]string, 0, len(daily.PaymentMethods))
	for method := range daily.PaymentMethods {
		methods = append(methods, string(method))
	}
	sort.Strings(methods)
	for _, method := range methods {
		total := daily.PaymentMethods[domain.PaymentMethod(method)]
		rows = append(rows, []string{"payment", method, total.StringFixed(2)})
	}
	for _, sale := range daily.Sales {
		rows = append(rows, []string{"sale", sale.ID, sale.TotalAmount.StringFixed(2)})
	}

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
