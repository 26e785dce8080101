// Package middleware holds HTTP guards shared by the API routes.
package middleware

import (
	"net/http"

	"github.com/noah-isme/designer-pricing/internal/common"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

// RequireTenant rejects requests for which no shop was resolved, before any
// handler touches the tenant-scoped store.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tenant.Current(r.Context()) == "" {
			common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "shop is required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
