package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/designer-pricing/internal/common"
	"github.com/noah-isme/designer-pricing/internal/store"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

func newService(t *testing.T) Service {
	t.Helper()
	s, err := store.NewScoped(store.ScopedConfig{Inner: store.NewMemory()})
	require.NoError(t, err)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return Service{Store: s, Enabled: true, Now: func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}}
}

func withShop(shop string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := tenant.With(r.Context(), shop)
			ctx = common.WithActor(ctx, common.Actor{Subject: "merchant-1", Shop: shop})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRouter(svc Service, shop string, status int) http.Handler {
	r := chi.NewRouter()
	r.Use(withShop(shop))
	r.With(Recorder{Service: svc, Logger: zerolog.Nop(), Resource: "promo_code", Param: "code"}.Middleware).
		HandleFunc("/codes/{code}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(status) })
	r.Get("/audit", Handler{Service: svc}.List)
	return r
}

func TestRecorderStoresMutationsPerShop(t *testing.T) {
	svc := newService(t)
	acme := newRouter(svc, "acme", http.StatusOK)
	bolt := newRouter(svc, "bolt", http.StatusOK)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		acme.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, "/codes/SAVE10", nil))
	}
	bolt.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/codes/OTHER", nil))

	entries, err := svc.List(tenant.With(context.Background(), "acme"), 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "DELETE /codes/{code}", entries[0].Action)
	require.Equal(t, "PUT /codes/{code}", entries[1].Action)
	require.Equal(t, "SAVE10", entries[0].ResourceID)
	require.Equal(t, "promo_code", entries[0].Resource)
	require.Equal(t, "merchant-1", entries[0].Actor)
	require.Equal(t, "acme", entries[0].Shop)
	require.Equal(t, http.StatusOK, entries[0].Status)
}

func TestRecorderSkipsServerErrors(t *testing.T) {
	svc := newService(t)
	router := newRouter(svc, "acme", http.StatusServiceUnavailable)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/codes/SAVE10", nil))

	n, err := svc.Count(tenant.With(context.Background(), "acme"))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDisabledServiceRecordsNothing(t *testing.T) {
	svc := newService(t)
	svc.Enabled = false
	router := newRouter(svc, "acme", http.StatusOK)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/codes/SAVE10", nil))

	svc.Enabled = true
	n, err := svc.Count(tenant.With(context.Background(), "acme"))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRecordRequiresTenant(t *testing.T) {
	svc := newService(t)
	req := httptest.NewRequest(http.MethodPut, "/codes/X", nil)
	err := svc.Record(context.Background(), req, "promo_code", "X", http.StatusOK)
	require.ErrorIs(t, err, store.ErrTenantRequired)
}

func TestListHandlerPaginates(t *testing.T) {
	svc := newService(t)
	router := newRouter(svc, "acme", http.StatusNoContent)
	for i := 0; i < 3; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/codes/SAVE10", nil))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?limit=2&page=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data       []Entry           `json:"data"`
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	require.Equal(t, 3, body.Pagination.TotalItems)
	require.Equal(t, http.StatusNoContent, body.Data[0].Status)
}
