package obs

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/designer-pricing/internal/tenant"
)

// unmatchedRoute labels requests chi could not route, keeping raw paths out
// of metric labels.
const unmatchedRoute = "unknown"

// HTTPObs records request count, latency and in-flight gauges per route.
type HTTPObs struct {
	Metrics *HTTPMetrics
}

func (o HTTPObs) Middleware(next http.Handler) http.Handler {
	m := o.Metrics
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := NewStatusRecorder(w)
		m.InFlight.Inc()
		defer m.InFlight.Dec()
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := MatchedRoute(r)
		if route == "" {
			route = unmatchedRoute
		}
		m.ReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
		m.ReqDur.WithLabelValues(r.Method, route).Observe(DurationMillis(time.Since(start)))
	})
}

// TracingMiddleware opens an otelhttp server span and, once chi has routed
// the request, names it after the route and tags the shop.
func TracingMiddleware(next http.Handler) http.Handler {
	named := func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		route := Route(r)
		span := trace.SpanFromContext(r.Context())
		span.SetName(r.Method + " " + route)
		attrs := []attribute.KeyValue{attribute.String("http.route", route)}
		if shop := tenant.Current(r.Context()); shop != "" {
			attrs = append(attrs, attribute.String("shop", shop))
		}
		span.SetAttributes(attrs...)
	}
	return otelhttp.NewHandler(http.HandlerFunc(named), "http.server")
}
