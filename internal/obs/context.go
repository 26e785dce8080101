package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routeKey struct{}

// WithRoutePattern records the matched chi pattern on ctx.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RoutePatternFromContext returns the pattern stored by WithRoutePattern.
func RoutePatternFromContext(ctx context.Context) string {
	v, _ := ctx.Value(routeKey{}).(string)
	return v
}

// Route labels r: the stored pattern, then chi's pattern once routing has
// run, then the raw path.
func Route(r *http.Request) string {
	if route := MatchedRoute(r); route != "" {
		return route
	}
	return r.URL.Path
}

// MatchedRoute is Route without the raw-path fallback.
func MatchedRoute(r *http.Request) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}
