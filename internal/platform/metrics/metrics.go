package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide HTTP and registration metrics.
type Metrics struct {
	UsersRegistered  prometheus.Counter
	RegistrationFail *prometheus.CounterVec
	RequestLatency   *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg; tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "kycgate_users_registered_total",
			Help: "Total number of users registered",
		}),
		RegistrationFail: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_registration_failures_total",
			Help: "Rejected registrations by reason",
		}, []string{"reason"}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycgate_http_request_duration_seconds",
			Help:    "HTTP request latency by route, method and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "method", "status"}),
	}
}

// IncrementUsersRegistered increments the registered users counter by 1.
func (m *Metrics) IncrementUsersRegistered() {
	if m != nil && m.UsersRegistered != nil {
		m.UsersRegistered.Inc()
	}
}

// IncrementRegistrationFailure records a rejected registration.
func (m *Metrics) IncrementRegistrationFailure(reason string) {
	if m != nil && m.RegistrationFail != nil {
		m.RegistrationFail.WithLabelValues(reason).Inc()
	}
}

// ObserveRequest records the latency of a served request.
func (m *Metrics) ObserveRequest(route, method, status string, d time.Duration) {
	if m != nil && m.RequestLatency != nil {
		m.RequestLatency.WithLabelValues(route, method, status).Observe(d.Seconds())
	}
}
