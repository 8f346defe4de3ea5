package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakery/internal/app"
	appctx "bakery/internal/core/context"
	"bakery/internal/domain/auth"
	v1 "bakery/internal/infrastructure/http/v1"
	"bakery/internal/infrastructure/metrics"
	"bakery/internal/infrastructure/storage/memory"
	"bakery/pkg/logger"
)

type apiFixture struct {
	t      *testing.T
	router http.Handler
	store  *memory.Store
}

func newAPI(t *testing.T, mutate func(*v1.RouterConfig)) *apiFixture {
	t.Helper()
	store := memory.New()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cfg := v1.RouterConfig{
		Services:    app.NewServices(app.MemoryStorage(store), app.Observers{Ledger: m, Posting: m, Reservation: m}),
		Logger:      logger.Nop(),
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Metrics:     m,
		Gatherer:    reg,
		Version:     "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &apiFixture{t: t, router: v1.NewRouter(cfg), store: store}
}

func (f *apiFixture) product(sku string) string {
	f.t.Helper()
	p, err := f.store.Products().Seed(context.Background(), sku, sku)
	require.NoError(f.t, err)
	return p.ID.String()
}

func (f *apiFixture) do(method, path string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func (f *apiFixture) createDraft(productID string, qty int) string {
	f.t.Helper()
	rec, body := f.do(http.MethodPost, "/api/v1/stock-ins", map[string]any{
		"date":      "2026-03-01",
		"warehouse": "Main",
		"items":     []map[string]any{{"product_id": productID, "qty": qty, "price": "12.50"}},
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return body["id"].(string)
}

func TestStockIn_ConfirmFlow(t *testing.T) {
	f := newAPI(t, nil)
	p := f.product("CROISSANT")
	docID := f.createDraft(p, 6)

	rec, body := f.do(http.MethodGet, "/api/v1/stock-ins/"+docID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "draft", body["status"])
	assert.Equal(t, "75", body["total_cost"])

	rec, body = f.do(http.MethodPost, "/api/v1/stock-ins/"+docID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, body["movement_ids"], 1)
	assert.Equal(t, "confirmed", body["document"].(map[string]any)["status"])

	rec, body = f.do(http.MethodPost, "/api/v1/stock-ins/"+docID+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_CONFIRMED", body["code"])

	rec, body = f.do(http.MethodGet, "/api/v1/products/"+p+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 6, body["on_hand"])
	assert.EqualValues(t, 0, body["reserved"])
	assert.EqualValues(t, 6, body["available"])

	rec, body = f.do(http.MethodDelete, "/api/v1/stock-ins/"+docID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DOCUMENT_LOCKED", body["code"])
}

func TestStockIn_ValidationListsEveryField(t *testing.T) {
	f := newAPI(t, nil)

	rec, body := f.do(http.MethodPost, "/api/v1/stock-ins", map[string]any{
		"date":  "2026-03-01",
		"items": []map[string]any{{"product_id": "nope", "qty": 0, "price": 1}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	fields := body["details"].(map[string]any)["fields"].([]any)
	assert.ElementsMatch(t, []any{"warehouse", "items[0].product_id", "items[0].qty"}, fields)
}

func TestStockIn_ValidationMergesTagAndProductErrors(t *testing.T) {
	f := newAPI(t, nil)
	p := f.product("CROISSANT")

	rec, body := f.do(http.MethodPost, "/api/v1/stock-ins", map[string]any{
		"date": "2026-03-01",
		"items": []map[string]any{
			{"product_id": p, "qty": 2, "price": -1},
			{"product_id": "0190a5e1-0000-7000-8000-000000000001", "qty": 1, "price": 1},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	fields := body["details"].(map[string]any)["fields"].([]any)
	assert.ElementsMatch(t, []any{"warehouse", "items[0].price", "items[1].product_id"}, fields)
}

func TestStockIn_LineEditing(t *testing.T) {
	f := newAPI(t, nil)
	p := f.product("BAGUETTE")
	docID := f.createDraft(p, 2)

	rec, body := f.do(http.MethodPost, "/api/v1/stock-ins/"+docID+"/items", map[string]any{
		"product_id": p, "qty": 3, "price": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	lineID := body["id"].(string)
	assert.EqualValues(t, 2, body["line_no"])

	rec, body = f.do(http.MethodPatch, "/api/v1/product-store/"+lineID, map[string]any{"qty": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 4, body["qty"])

	rec, _ = f.do(http.MethodDelete, "/api/v1/product-store/"+lineID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, body = f.do(http.MethodGet, "/api/v1/stock-ins/"+docID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["items"], 1)
	assert.EqualValues(t, 2, body["total_qty"])
}

func TestStockIn_ListFilters(t *testing.T) {
	f := newAPI(t, nil)
	p := f.product("RYE")
	first := f.createDraft(p, 1)
	f.createDraft(p, 2)

	rec, _ := f.do(http.MethodPost, "/api/v1/stock-ins/"+first+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(http.MethodGet, "/api/v1/stock-ins?status=confirmed&date_from=2026-03-01&date_to=2026-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, first, items[0].(map[string]any)["id"])
	assert.EqualValues(t, 1, body["meta"].(map[string]any)["total"])

	rec, body = f.do(http.MethodGet, "/api/v1/stock-ins?date_from=2026-03-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["items"])
}

func TestStocks_QueryErrors(t *testing.T) {
	f := newAPI(t, nil)

	tests := []struct {
		name string
		path string
		code string
	}{
		{"bad date", "/api/v1/stocks?date_from=yesterday", "VALIDATION_ERROR"},
		{"inverted range", "/api/v1/stocks?date_from=2026-03-05&date_to=2026-03-01", "VALIDATION_ERROR"},
		{"unknown type", "/api/v1/stocks?type=MOVE", "INVALID_MOVEMENT_TYPE"},
		{"bad product id", "/api/v1/products/42/balance", "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := f.do(http.MethodGet, tt.path, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, body["code"])
		})
	}

	rec, body := f.do(http.MethodGet, "/api/v1/products/0192c9a0-0000-7000-8000-000000000001/balance", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestStocks_MovementsAndSummary(t *testing.T) {
	f := newAPI(t, nil)
	p := f.product("BRIOCHE")
	docID := f.createDraft(p, 5)
	rec, _ := f.do(http.MethodPost, "/api/v1/stock-ins/"+docID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(http.MethodGet, "/api/v1/stocks?type=in&product_id="+p, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "IN", items[0].(map[string]any)["type"])
	assert.Equal(t, docID, items[0].(map[string]any)["ref_id"])

	rec, body = f.do(http.MethodGet, "/api/v1/stocks/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5, body["totals"].(map[string]any)["IN"])
	assert.EqualValues(t, 0, body["totals"].(map[string]any)["OUT"])

	rec, body = f.do(http.MethodGet, "/api/v1/products/"+p+"/movements?per_page=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["items"], 1)
}

func TestIdempotency_ReplaysCreate(t *testing.T) {
	f := newAPI(t, nil)
	p := f.product("PAIN")
	payload := map[string]any{
		"date":      "2026-03-01",
		"warehouse": "Main",
		"items":     []map[string]any{{"product_id": p, "qty": 1, "price": 1}},
	}

	first, firstBody := f.do(http.MethodPost, "/api/v1/stock-ins", payload, "X-Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second, secondBody := f.do(http.MethodPost, "/api/v1/stock-ins", payload, "X-Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, firstBody["id"], secondBody["id"])

	rec, body := f.do(http.MethodGet, "/api/v1/stock-ins", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["meta"].(map[string]any)["total"])

	payload["warehouse"] = "Other"
	rec, body = f.do(http.MethodPost, "/api/v1/stock-ins", payload, "X-Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "IDEMPOTENCY_CONFLICT", body["code"])
}

func TestIdempotency_ReplaysBusinessError(t *testing.T) {
	f := newAPI(t, nil)
	docID := f.createDraft(f.product("ECLAIR"), 1)
	path := "/api/v1/stock-ins/" + docID + "/confirm"

	rec, _ := f.do(http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(http.MethodPost, path, nil, "X-Idempotency-Key", "confirm-2")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_CONFIRMED", body["code"])

	rec, body = f.do(http.MethodPost, path, nil, "X-Idempotency-Key", "confirm-2")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, "ALREADY_CONFIRMED", body["code"])
}

func TestAuth(t *testing.T) {
	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	f := newAPI(t, func(cfg *v1.RouterConfig) {
		cfg.JWTValidator = jwtSvc
		cfg.WriteRoles = []string{"stock:write"}
	})
	p := f.product("TART")

	rec, body := f.do(http.MethodGet, "/api/v1/stock-ins", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	reader, _, err := jwtSvc.GenerateAccessToken(appctx.UserContext{UserID: "u1", Roles: []string{"viewer"}})
	require.NoError(t, err)
	rec, _ = f.do(http.MethodGet, "/api/v1/stock-ins", nil, "Authorization", "Bearer "+reader)
	assert.Equal(t, http.StatusOK, rec.Code)

	payload := map[string]any{
		"date":      "2026-03-01",
		"warehouse": "Main",
		"items":     []map[string]any{{"product_id": p, "qty": 1, "price": 1}},
	}
	rec, body = f.do(http.MethodPost, "/api/v1/stock-ins", payload, "Authorization", "Bearer "+reader)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])

	writer, _, err := jwtSvc.GenerateAccessToken(appctx.UserContext{UserID: "u2", Roles: []string{"stock:write"}})
	require.NoError(t, err)
	rec, _ = f.do(http.MethodPost, "/api/v1/stock-ins", payload, "Authorization", "Bearer "+writer)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPI(t, nil)

	rec, body := f.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", body["version"])

	rec, _ = f.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	f.do(http.MethodGet, "/api/v1/stocks", nil)
	rec, _ = f.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/api/v1/stocks",status="200"} 1`)
}
