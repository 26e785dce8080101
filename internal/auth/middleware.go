package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/designer-pricing/internal/common"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

var errNoToken = errors.New("auth: token missing")

// Middleware authenticates merchant requests and binds the token's shop.
type Middleware struct {
	Verifier *Verifier
}

// RequireMerchant rejects requests without a valid merchant token. The shop
// from the token is bound to the context; a request that resolved a
// different shop from its header or host is refused.
func (m Middleware) RequireMerchant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				common.WriteError(w, appErr)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	if m.Verifier == nil {
		return r.Context(), errors.New("auth: verifier not configured")
	}
	token := extractToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	claims, err := m.Verifier.Verify(token)
	if err != nil {
		return r.Context(), err
	}
	if bound, ok := tenant.FromContext(r.Context()); ok && bound != "" && bound != claims.Shop {
		return r.Context(), common.NewAppError("TENANT_MISMATCH", "token is not valid for this shop", http.StatusForbidden, nil)
	}
	ctx := tenant.WithTenant(r.Context(), claims.Shop)
	return common.WithActor(ctx, common.Actor{Subject: claims.Subject, Shop: claims.Shop}), nil
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
