package httpapi

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/metrics"
	"kasirpos/backend/internal/service"
	"kasirpos/backend/internal/store/memory"
)

// newTestAPI builds the full handler chain over a seeded in-memory store.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	repo := memory.NewSeeded()
	recorder := metrics.New()
	svc := service.New(repo, service.Options{Location: time.UTC, Metrics: recorder})
	auth := NewAuthManager(testSecret, time.Hour, repo, nil)

	return New(svc, auth, Options{
		AllowedOrigin: "http://localhost:5173",
		Location:      time.UTC,
		Metrics:       recorder,
	}).Handler()
}

func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	rec := call(t, h, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func call(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dest), rec.Body.String())
}

type saleEnvelope struct {
	Sale domain.Sale `json:"sale"`
}

type productEnvelope struct {
	Product domain.Product `json:"product"`
}

type errorEnvelope struct {
	Error     string `json:"error"`
	ProductID string `json:"product_id"`
	Available *int   `json:"available"`
	Requested *int   `json:"requested"`
	Fields    []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"fields"`
}

func TestHealth(t *testing.T) {
	h := newTestAPI(t)
	rec := call(t, h, http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decodeInto(t, rec, &body)
	assert.Equal(t, true, body["ok"])
}

func TestLogin(t *testing.T) {
	h := newTestAPI(t)

	token := login(t, h, "admin", "admin123")
	assert.NotEmpty(t, token)

	rec := call(t, h, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductsRequireAuth(t *testing.T) {
	h := newTestAPI(t)

	rec := call(t, h, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/v1/products", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductCatalog(t *testing.T) {
	h := newTestAPI(t)
	cashier := login(t, h, "cashier", "cashier123")
	admin := login(t, h, "admin", "admin123")

	rec := call(t, h, http.MethodGet, "/api/v1/products?category=beverage", cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Products []domain.Product `json:"products"`
	}
	decodeInto(t, rec, &list)
	assert.Len(t, list.Products, 2)

	rec = call(t, h, http.MethodGet, "/api/v1/products/barcode/8991001000042", cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var roti productEnvelope
	decodeInto(t, rec, &roti)
	assert.Equal(t, "prd-roti-01", roti.Product.ID)
	assert.True(t, roti.Product.DiscountedPrice.Equal(decimal.RequireFromString("16020")), roti.Product.DiscountedPrice.String())

	rec = call(t, h, http.MethodGet, "/api/v1/products/prd-missing", cashier, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	create := map[string]any{"name": "Air Mineral", "barcode": "8991001000097", "category": "beverage", "price": "4000", "stock": 24}
	rec = call(t, h, http.MethodPost, "/api/v1/products", cashier, create)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h, http.MethodPost, "/api/v1/products", admin, create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created productEnvelope
	decodeInto(t, rec, &created)
	assert.Equal(t, 24, created.Product.Stock)

	rec = call(t, h, http.MethodPost, "/api/v1/products", admin, create)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h, http.MethodPost, "/api/v1/products", admin, map[string]any{"name": "x", "unknown": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodPut, "/api/v1/products/"+created.Product.ID+"/stock", admin, map[string]any{"quantity": 6, "operation": "add"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var adjusted productEnvelope
	decodeInto(t, rec, &adjusted)
	assert.Equal(t, 30, adjusted.Product.Stock)

	rec = call(t, h, http.MethodPut, "/api/v1/products/"+created.Product.ID+"/discount", admin, map[string]any{"is_discounted": true, "discount_percentage": 50})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var discounted productEnvelope
	decodeInto(t, rec, &discounted)
	assert.True(t, discounted.Product.DiscountedPrice.Equal(decimal.RequireFromString("2000")))

	rec = call(t, h, http.MethodPut, "/api/v1/products/"+created.Product.ID, admin, map[string]any{"name": "Air Mineral 600ml"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodGet, "/api/v1/products/"+created.Product.ID+"/movements", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var movements struct {
		Movements []domain.StockMovement `json:"movements"`
	}
	decodeInto(t, rec, &movements)
	require.Len(t, movements.Movements, 1)
	assert.Equal(t, "admin", movements.Movements[0].Reference)

	rec = call(t, h, http.MethodDelete, "/api/v1/products/"+created.Product.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCheckoutAndCancel(t *testing.T) {
	h := newTestAPI(t)
	cashier := login(t, h, "cashier", "cashier123")

	rec := call(t, h, http.MethodPost, "/api/v1/sales", cashier, map[string]any{
		"items":          []map[string]any{{"product_id": "prd-roti-01", "quantity": 2}, {"product_id": "prd-kopi-01", "quantity": 3}},
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created saleEnvelope
	decodeInto(t, rec, &created)
	sale := created.Sale

	assert.Equal(t, domain.StatusCompleted, sale.PaymentStatus)
	assert.True(t, sale.TotalAmount.Equal(decimal.RequireFromString("39840")), sale.TotalAmount.String())
	require.NotNil(t, sale.CashierID)
	assert.Equal(t, "cashier", *sale.CashierID)
	require.Len(t, sale.Items, 2)

	rec = call(t, h, http.MethodGet, "/api/v1/products/prd-roti-01", cashier, nil)
	var roti productEnvelope
	decodeInto(t, rec, &roti)
	assert.Equal(t, 28, roti.Product.Stock)

	rec = call(t, h, http.MethodPut, "/api/v1/sales/"+sale.ID+"/status", cashier, map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cancelled saleEnvelope
	decodeInto(t, rec, &cancelled)
	assert.Equal(t, domain.StatusCancelled, cancelled.Sale.PaymentStatus)

	rec = call(t, h, http.MethodGet, "/api/v1/products/prd-roti-01", cashier, nil)
	decodeInto(t, rec, &roti)
	assert.Equal(t, 30, roti.Product.Stock)

	rec = call(t, h, http.MethodGet, "/api/v1/sales/"+sale.ID, cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, http.MethodPut, "/api/v1/sales/sale-missing/status", cashier, map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutErrors(t *testing.T) {
	h := newTestAPI(t)
	cashier := login(t, h, "cashier", "cashier123")

	rec := call(t, h, http.MethodPost, "/api/v1/sales", cashier, map[string]any{
		"items":          []map[string]any{{"product_id": "prd-roti-01", "quantity": 31}},
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	var stock errorEnvelope
	decodeInto(t, rec, &stock)
	assert.Equal(t, "prd-roti-01", stock.ProductID)
	require.NotNil(t, stock.Available)
	require.NotNil(t, stock.Requested)
	assert.Equal(t, 30, *stock.Available)
	assert.Equal(t, 31, *stock.Requested)

	rec = call(t, h, http.MethodPost, "/api/v1/sales", cashier, map[string]any{
		"items":          []map[string]any{},
		"payment_method": "bitcoin",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var invalid errorEnvelope
	decodeInto(t, rec, &invalid)
	fields := map[string]bool{}
	for _, f := range invalid.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["items"])
	assert.True(t, fields["payment_method"])

	rec = call(t, h, http.MethodPost, "/api/v1/sales", cashier, map[string]any{
		"items":          []map[string]any{{"product_id": "prd-missing", "quantity": 1}},
		"payment_method": "cash",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSalesAndDailyReport(t *testing.T) {
	h := newTestAPI(t)
	cashier := login(t, h, "cashier", "cashier123")

	rec := call(t, h, http.MethodPost, "/api/v1/sales", cashier, map[string]any{
		"items":            []map[string]any{{"product_id": "prd-susu-01", "quantity": 1}},
		"payment_method":   "debit_card",
		"card_last_digits": "4242",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodGet, "/api/v1/sales?status=completed&limit=10", cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Sales []domain.Sale `json:"sales"`
	}
	decodeInto(t, rec, &list)
	assert.Len(t, list.Sales, 1)

	rec = call(t, h, http.MethodGet, "/api/v1/sales?from=yesterday", cashier, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/v1/sales/report/daily", cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var daily domain.DailyReport
	decodeInto(t, rec, &daily)
	assert.Equal(t, 1, daily.TotalSales)
	assert.True(t, daily.TotalRevenue.Equal(decimal.RequireFromString("18900")))

	rec = call(t, h, http.MethodGet, "/api/v1/sales/report/daily?format=csv", cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"section", "key", "value"}, rows[0])
	assert.Contains(t, rows, []string{"payment", "debit_card", "18900.00"})

	rec = call(t, h, http.MethodGet, "/api/v1/sales/report/daily?format=pdf", cashier, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/v1/sales/report/daily?date=19-10-2026", cashier, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCashierAdministration(t *testing.T) {
	h := newTestAPI(t)
	admin := login(t, h, "admin", "admin123")
	cashier := login(t, h, "cashier", "cashier123")

	rec := call(t, h, http.MethodGet, "/api/v1/users/cashiers", cashier, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h, http.MethodPost, "/api/v1/users/cashiers", admin, domain.CashierCreateRequest{Username: "siti", Name: "Siti", Password: "rahasia1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodPost, "/api/v1/users/cashiers", admin, domain.CashierCreateRequest{Username: "siti", Password: "rahasia1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h, http.MethodPost, "/api/v1/users/cashiers", admin, domain.CashierCreateRequest{Username: "bo", Password: "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/v1/users/cashiers", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Cashiers []domain.CashierUser `json:"cashiers"`
	}
	decodeInto(t, rec, &list)
	names := make([]string, 0, len(list.Cashiers))
	for _, c := range list.Cashiers {
		names = append(names, c.Username)
	}
	assert.Equal(t, []string{"cashier", "siti"}, names)

	login(t, h, "siti", "rahasia1")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestAPI(t)
	call(t, h, http.MethodGet, "/healthz", "", nil)

	rec := call(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kasirpos_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}
