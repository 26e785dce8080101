package app

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/designer-pricing/internal/audit"
	"github.com/noah-isme/designer-pricing/internal/auth"
	"github.com/noah-isme/designer-pricing/internal/common"
	"github.com/noah-isme/designer-pricing/internal/health"
	guard "github.com/noah-isme/designer-pricing/internal/http/middleware"
	"github.com/noah-isme/designer-pricing/internal/obs"
	"github.com/noah-isme/designer-pricing/internal/pricing"
	"github.com/noah-isme/designer-pricing/internal/promo"
	"github.com/noah-isme/designer-pricing/internal/ratelimit"
	"github.com/noah-isme/designer-pricing/internal/security"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

// RouterOptions toggles the observability layers around the API.
type RouterOptions struct {
	HTTPMetrics *obs.HTTPMetrics
	Tracing     bool
	Metrics     http.Handler
}

// NewRouter mounts the storefront, merchant and operational routes.
func NewRouter(d *Dependencies, opts RouterOptions) http.Handler {
	cfg := d.Config
	resolver := tenant.NewResolver(cfg.TenantHeader, cfg.TenantRootDomain, cfg.TenantDefault)

	pricingHandler := pricing.NewHandler(pricing.HandlerConfig{
		Service:   d.Pricing,
		Configs:   d.Configs,
		Cache:     d.ConfigCache,
		Validator: d.Validator,
		Logger:    &d.Logger,
		PageSize:  cfg.AdminPageSize,
	})
	promoHandler := promo.NewHandler(promo.HandlerConfig{
		Codes:     d.PromoCodes,
		Queue:     d.Queue,
		Validator: d.Validator,
		Logger:    &d.Logger,
		PageSize:  cfg.AdminPageSize,
	})
	merchant := auth.Middleware{Verifier: d.Verifier}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	calcLimit := ratelimit.Handler{
		Limiter: d.Limiter,
		Config: ratelimit.Config{
			Key:    ratelimit.ShopClientKey("calc"),
			Window: cfg.RateLimitCalcWindow,
			Max:    cfg.RateLimitCalcMax,
		},
		OnError: func(err error) { d.Logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(resolver.Middleware)
	if opts.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if opts.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: opts.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", cfg.TenantHeader, common.IdempotencyHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: cfg.SecurityHeadersEnable, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	if cfg.PprofEnable {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}

	probes := []health.Probe{health.RedisProbe(d.Redis, 0)}
	if d.DB != nil {
		probes = append(probes, health.PostgresProbe(d.DB, 0))
	}
	healthHandler := health.Handler{Probes: probes}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Group(func(storefront chi.Router) {
			storefront.Use(guard.RequireTenant)
			storefront.With(calcLimit.Middleware).Post("/pricing/calculate", pricingHandler.Calculate)
			storefront.With(idem.Middleware).Post("/promo-redemptions", promoHandler.Redeem)
		})
		v.Route("/admin", func(admin chi.Router) {
			admin.Use(merchant.RequireMerchant)
			admin.Use(guard.RequireTenant)
			admin.Get("/audit-logs", audit.Handler{Service: d.Audit}.List)
			admin.Route("/pricing-configs", func(pc chi.Router) {
				pc.Use(audit.Recorder{Service: d.Audit, Logger: d.Logger, Resource: "pricing_config", Param: "productId"}.Middleware)
				pc.Get("/", pricingHandler.ListConfigs)
				pc.Get("/{productId}", pricingHandler.GetConfig)
				pc.Put("/{productId}", pricingHandler.PutConfig)
				pc.Delete("/{productId}", pricingHandler.DeleteConfig)
			})
			admin.Route("/promo-codes", func(pr chi.Router) {
				pr.Use(audit.Recorder{Service: d.Audit, Logger: d.Logger, Resource: "promo_code", Param: "code"}.Middleware)
				pr.Get("/", promoHandler.List)
				pr.Post("/", promoHandler.Create)
				pr.Get("/{code}", promoHandler.Get)
				pr.Put("/{code}", promoHandler.Update)
				pr.Delete("/{code}", promoHandler.Delete)
			})
		})
	})
	return r
}

// DefaultMetricsHandler serves the default Prometheus registry.
func DefaultMetricsHandler() http.Handler { return promhttp.Handler() }

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorised", nil)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
