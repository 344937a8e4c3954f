package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// BookingMetrics exposes counters/histograms for booking runs and the webhook.
type BookingMetrics struct {
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	stepDuration *prometheus.HistogramVec
	webhookTotal *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

// NewBookingMetrics registers the collectors on reg, or on the default
// registry when reg is nil.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "runs_total",
			Help:      "Total booking automation runs by outcome",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a booking run including fixed waits",
			Buckets:   []float64{5, 10, 20, 30, 45, 60, 90, 120, 180},
		}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "step_duration_seconds",
			Help:      "Duration of each booking step",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step", "status"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "webhook",
			Name:      "responses_total",
			Help:      "Webhook responses by HTTP status code",
		}, []string{"code"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.runDuration, m.stepDuration, m.webhookTotal)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

func (m *BookingMetrics) ObserveRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(seconds)
}

func (m *BookingMetrics) ObserveStep(step, status string, seconds float64) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step, status).Observe(seconds)
}

func (m *BookingMetrics) ObserveWebhook(code int) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// Handler serves the registry the metrics were registered on.
func (m *BookingMetrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
