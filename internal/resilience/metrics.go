package resilience

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Breaker collectors, labelled by the guarded target ("pricing-store").
// They record whether or not they are registered; RegisterMetrics exposes
// them on a registry.
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "breaker_state",
		Help: "Breaker state per guarded target: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_transition_total",
		Help: "Breaker state transitions per guarded target.",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_open_total",
		Help: "Times a breaker started failing calls fast.",
	}, []string{"target"})

	registerOnce sync.Once
)

// RegisterMetrics registers the breaker collectors once. A nil registerer
// means the default one.
func RegisterMetrics(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
	})
}
