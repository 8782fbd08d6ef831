package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline.
type Metrics struct {
	// Upload attempts by result: accepted, already_verified, in_progress, not_found, error
	Uploads *prometheus.CounterVec

	// Classification outcomes by status and reason
	Outcomes *prometheus.CounterVec

	ClassifyLatency prometheus.Histogram

	// Verifications accepted but not yet classified
	InFlight prometheus.Gauge
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_kyc_uploads_total",
			Help: "Document upload attempts by result",
		}, []string{"result"}),

		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_kyc_outcomes_total",
			Help: "Classification outcomes by status and reason",
		}, []string{"status", "reason"}),

		ClassifyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kycgate_kyc_classify_duration_seconds",
			Help:    "Duration of document classification",
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10, 20, 30},
		}),

		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "kycgate_kyc_verifications_in_flight",
			Help: "Verifications accepted and awaiting classification",
		}),
	}
}

func (m *Metrics) IncrementUpload(result string) {
	if m != nil {
		m.Uploads.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementOutcome(status, reason string) {
	if m != nil {
		m.Outcomes.WithLabelValues(status, reason).Inc()
	}
}

func (m *Metrics) ObserveClassifyLatency(d time.Duration) {
	if m != nil {
		m.ClassifyLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) VerificationStarted() {
	if m != nil {
		m.InFlight.Inc()
	}
}

func (m *Metrics) VerificationFinished() {
	if m != nil {
		m.InFlight.Dec()
	}
}
