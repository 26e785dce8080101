package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/designer-pricing/internal/auth"
	"github.com/noah-isme/designer-pricing/internal/common"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

func newVerifier(t *testing.T, now time.Time) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:   "test-secret",
		Issuer:   "host-app",
		Audience: "designer-pricing",
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	return v
}

func TestVerifierRoundTrip(t *testing.T) {
	v := newVerifier(t, time.Now())
	token, err := v.Issue("merchant-1", "acme", time.Minute)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, auth.Claims{Subject: "merchant-1", Shop: "acme"}, claims)
}

func TestVerifierRejects(t *testing.T) {
	now := time.Now()
	v := newVerifier(t, now)

	noShop, err := v.Issue("merchant-1", "", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(noShop)
	require.Error(t, err)

	expired, err := newVerifier(t, now.Add(-time.Hour)).Issue("merchant-1", "acme", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	require.Error(t, err)

	other, err := auth.NewVerifier(auth.VerifierConfig{Secret: "other", Issuer: "host-app", Audience: "designer-pricing"})
	require.NoError(t, err)
	forged, err := other.Issue("merchant-1", "acme", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(forged)
	require.Error(t, err)

	_, err = v.Verify("not-a-token")
	require.Error(t, err)

	_, err = auth.NewVerifier(auth.VerifierConfig{})
	require.Error(t, err)
}

func TestRequireMerchantBindsShop(t *testing.T) {
	v := newVerifier(t, time.Now())
	mw := auth.Middleware{Verifier: v}
	token, err := v.Issue("merchant-1", "acme", time.Minute)
	require.NoError(t, err)

	var gotShop, gotUser string
	handler := mw.RequireMerchant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotShop = tenant.Current(r.Context())
		actor, _ := common.ActorFrom(r.Context())
		gotUser = actor.Subject
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/promo-codes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "acme", gotShop)
	require.Equal(t, "merchant-1", gotUser)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/promo-codes", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/promo-codes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req = req.WithContext(tenant.WithTenant(req.Context(), "bolt"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "TENANT_MISMATCH")
}
