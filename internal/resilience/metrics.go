package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker metrics are labelled by target so the MoMo and DPO gateways show
// up as separate series.
var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "butchery",
			Name:      "breaker_state",
			Help:      "Breaker state: 0=closed, 1=open, 2=half-open",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "butchery",
			Name:      "breaker_transition_total",
			Help:      "Breaker state transitions",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "butchery",
			Name:      "breaker_open_total",
			Help:      "Times a breaker tripped open",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
