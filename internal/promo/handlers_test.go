package promo_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/designer-pricing/internal/promo"
	"github.com/noah-isme/designer-pricing/internal/repo"
	"github.com/noah-isme/designer-pricing/internal/store"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

type codeResponse struct {
	Data promo.Code `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newPromoRouter(t *testing.T, q promo.Enqueuer) http.Handler {
	t.Helper()
	scoped, err := store.NewScoped(store.ScopedConfig{Inner: store.NewMemory()})
	require.NoError(t, err)
	h := promo.NewHandler(promo.HandlerConfig{Codes: repo.PromoCodes{Store: scoped}, Queue: q})

	r := chi.NewRouter()
	r.Use(tenant.NewResolver("", "shop.test", "").Middleware)
	r.Post("/api/v1/promo-redemptions", h.Redeem)
	r.Route("/api/v1/admin/promo-codes", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{code}", h.Get)
		r.Put("/{code}", h.Update)
		r.Delete("/{code}", h.Delete)
	})
	return r
}

func send(t *testing.T, h http.Handler, method, path, shop, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if shop != "" {
		req.Header.Set("X-Shop-Domain", shop)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPromoAdminHandlers(t *testing.T) {
	router := newPromoRouter(t, nil)

	rec := send(t, router, http.MethodPost, "/api/v1/admin/promo-codes/", "acme",
		`{"code":"save10","active":true,"usageLimit":5,"discountType":"percentage","discountValue":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created codeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "SAVE10", created.Data.Code)
	require.Equal(t, "acme", created.Data.Shop)

	rec = send(t, router, http.MethodPost, "/api/v1/admin/promo-codes/", "acme",
		`{"code":"SAVE10","active":true,"discountType":"percentage","discountValue":10}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	// Same code in another shop is independent.
	rec = send(t, router, http.MethodPost, "/api/v1/admin/promo-codes/", "bolt",
		`{"code":"SAVE10","active":true,"discountType":"fixed_amount","discountValue":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = send(t, router, http.MethodPut, "/api/v1/admin/promo-codes/save10", "acme",
		`{"code":"SAVE10","active":false,"usageCount":99,"discountType":"percentage","discountValue":20}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated codeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.False(t, updated.Data.Active)
	require.Zero(t, updated.Data.UsageCount)

	rec = send(t, router, http.MethodPut, "/api/v1/admin/promo-codes/OTHER", "acme",
		`{"code":"SAVE10","active":true,"discountType":"percentage","discountValue":20}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(t, router, http.MethodGet, "/api/v1/admin/promo-codes/", "acme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total_items":1`)

	rec = send(t, router, http.MethodPost, "/api/v1/admin/promo-codes/", "acme",
		`{"code":"","discountType":"bogus"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	require.Equal(t, "VALIDATION_FAILED", errBody.Error.Code)

	rec = send(t, router, http.MethodDelete, "/api/v1/admin/promo-codes/SAVE10", "acme", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = send(t, router, http.MethodGet, "/api/v1/admin/promo-codes/SAVE10", "acme", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = send(t, router, http.MethodGet, "/api/v1/admin/promo-codes/SAVE10", "bolt", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(t, router, http.MethodGet, "/api/v1/admin/promo-codes/", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	require.Equal(t, "TENANT_REQUIRED", errBody.Error.Code)
}

func TestPromoRedemptionHandlerEnqueues(t *testing.T) {
	q := &fakeEnqueuer{}
	router := newPromoRouter(t, q)

	rec := send(t, router, http.MethodPost, "/api/v1/promo-redemptions", "acme", `{"code":"save10","orderId":"o-1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, q.tasks, 1)
	var p promo.RedeemPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &p))
	require.Equal(t, promo.RedeemPayload{Shop: "acme", Code: "SAVE10", OrderID: "o-1"}, p)

	rec = send(t, router, http.MethodPost, "/api/v1/promo-redemptions", "", `{"code":"save10","orderId":"o-1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(t, router, http.MethodPost, "/api/v1/promo-redemptions", "acme", `{"code":"save10"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, q.tasks, 1)
}
