package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingCalculationsTotal counts price calculations by outcome.
	PricingCalculationsTotal *prometheus.CounterVec
	// PricingCalculationLatency records end-to-end calculation latency in milliseconds.
	PricingCalculationLatency *prometheus.HistogramVec
	// PricingConfigCacheTotal counts configuration cache lookups by outcome.
	PricingConfigCacheTotal *prometheus.CounterVec
	// PromoEvaluationsTotal counts promo code evaluations by outcome.
	PromoEvaluationsTotal *prometheus.CounterVec
	// PromoRedemptionsTotal counts promo redemption task outcomes.
	PromoRedemptionsTotal *prometheus.CounterVec
	// StoreTenantRequiredTotal counts scoped store calls rejected for a missing shop.
	StoreTenantRequiredTotal *prometheus.CounterVec
	// StoreExplicitTenantTotal counts scoped store calls carrying a foreign shop constraint.
	StoreExplicitTenantTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingCalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_calculations_total",
			Help:      "Count of price calculations by outcome.",
		}, []string{"result"})
		PricingCalculationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_calculation_duration_ms",
			Help:      "Latency for price calculations in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"result"})
		PricingConfigCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_config_cache_total",
			Help:      "Count of pricing configuration cache lookups by outcome.",
		}, []string{"result"})
		PromoEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_evaluations_total",
			Help:      "Count of promo code evaluations by outcome.",
		}, []string{"result"})
		PromoRedemptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_redemptions_total",
			Help:      "Count of promo redemption outcomes.",
		}, []string{"result"})
		StoreTenantRequiredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_tenant_required_total",
			Help:      "Count of scoped store operations rejected because no shop was bound.",
		}, []string{"operation"})
		StoreExplicitTenantTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_explicit_tenant_total",
			Help:      "Count of scoped store operations carrying a shop constraint different from the bound shop.",
		}, []string{"policy"})

		PricingCalculationsTotal = register(reg, PricingCalculationsTotal)
		PricingCalculationLatency = register(reg, PricingCalculationLatency)
		PricingConfigCacheTotal = register(reg, PricingConfigCacheTotal)
		PromoEvaluationsTotal = register(reg, PromoEvaluationsTotal)
		PromoRedemptionsTotal = register(reg, PromoRedemptionsTotal)
		StoreTenantRequiredTotal = register(reg, StoreTenantRequiredTotal)
		StoreExplicitTenantTotal = register(reg, StoreExplicitTenantTotal)
	})
}
