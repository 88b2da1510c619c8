package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yuutai_sentinel"

// Metrics holds all Prometheus collectors for the application.
type Metrics struct {
	FetchRequestsTotal *prometheus.CounterVec
	FetchErrorsTotal   *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec

	ScreenRunsTotal *prometheus.CounterVec
	ScreenDuration  *prometheus.HistogramVec
	ScreenResults   *prometheus.GaugeVec

	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// durationBuckets are in seconds; screening a month of candidates can take minutes.
var durationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

var (
	global *Metrics
	once   sync.Once
)

// New registers all collectors on reg, or on the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FetchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fetch", Name: "requests_total",
			Help: "Outbound data-source requests",
		}, []string{"source"}),
		FetchErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fetch", Name: "errors_total",
			Help: "Failed data-source requests",
		}, []string{"source"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "fetch", Name: "duration_seconds",
			Help: "Data-source request latency", Buckets: durationBuckets,
		}, []string{"source"}),

		ScreenRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "screen", Name: "runs_total",
			Help: "Screening runs by kind",
		}, []string{"kind"}),
		ScreenDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "screen", Name: "duration_seconds",
			Help: "Screening run duration", Buckets: durationBuckets,
		}, []string{"kind"}),
		ScreenResults: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "screen", Name: "results",
			Help: "Result count of the latest run by kind",
		}, []string{"kind"}),

		CircuitBreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "circuit_breaker", Name: "state",
			Help: "0=closed, 1=half-open, 2=open",
		}, []string{"breaker"}),
		CircuitBreakerTrips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "circuit_breaker", Name: "trips_total",
			Help: "Transitions into the open state",
		}, []string{"breaker"}),
	}
}

// Get returns the process-wide metrics, registering them on first use.
func Get() *Metrics {
	once.Do(func() { global = New(nil) })
	return global
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one data-source request.
func (m *Metrics) ObserveFetch(source string, start time.Time, err error) {
	m.FetchRequestsTotal.WithLabelValues(source).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		m.FetchErrorsTotal.WithLabelValues(source).Inc()
	}
}

// ObserveScreen records one screening run and its result count.
func (m *Metrics) ObserveScreen(kind string, start time.Time, results int) {
	m.ScreenRunsTotal.WithLabelValues(kind).Inc()
	m.ScreenDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	m.ScreenResults.WithLabelValues(kind).Set(float64(results))
}

// SetBreakerState records a breaker state as 0/1/2.
func (m *Metrics) SetBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordBreakerTrip counts a transition into the open state.
func (m *Metrics) RecordBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(name).Inc()
}
