// Package tenant carries the current shop through request contexts and
// resolves it from incoming requests.
package tenant

import (
	"context"
	"strings"
)

type shopKey struct{}

// WithTenant binds shop to ctx.
func WithTenant(ctx context.Context, shop string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, shopKey{}, strings.TrimSpace(shop))
}

// With is shorthand for WithTenant.
func With(ctx context.Context, shop string) context.Context { return WithTenant(ctx, shop) }

// FromContext returns the bound shop; blank shops count as unbound.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	shop, _ := ctx.Value(shopKey{}).(string)
	return shop, shop != ""
}

// From is an alias of FromContext.
func From(ctx context.Context) (string, bool) { return FromContext(ctx) }

// Current returns the bound shop or "".
func Current(ctx context.Context) string {
	shop, _ := FromContext(ctx)
	return shop
}

// Run calls fn with a context bound to shop. Goroutines fn starts with that
// context see the same shop; the caller's context is untouched.
func Run(ctx context.Context, shop string, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(WithTenant(ctx, shop))
}

// PrefixKey namespaces a redis key by shop.
func PrefixKey(shop, key string) string {
	if shop == "" {
		return key
	}
	return shop + ":" + key
}
