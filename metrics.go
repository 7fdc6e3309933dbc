package savon

import "github.com/prometheus/client_golang/prometheus"

var callDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics holds the Prometheus instruments for client calls. Attach one via
// WithMetrics to instrument a client; one Metrics value may be shared by
// several clients.
type Metrics struct {
	CallsTotal                *prometheus.CounterVec
	CallDuration              *prometheus.HistogramVec
	VerificationFailuresTotal prometheus.Counter
}

// NewMetrics creates and registers the client metric instruments.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "savon_calls_total",
			Help: "Total number of finalized SOAP calls.",
		}, []string{"operation", "status"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "savon_call_duration_seconds",
			Help:    "SOAP call duration in seconds.",
			Buckets: callDurationBuckets,
		}, []string{"operation"}),
		VerificationFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "savon_verification_failures_total",
			Help: "Total number of response signature verification failures.",
		}),
	}

	reg.MustRegister(m.CallsTotal, m.CallDuration, m.VerificationFailuresTotal)
	return m
}
