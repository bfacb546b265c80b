package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics prometheus collectors of the readmission service
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	ingestedTotal   *prometheus.CounterVec
	ingestErrors    *prometheus.CounterVec
	predictionProb  prometheus.Histogram
	calcTimeSeconds *prometheus.HistogramVec
	publishErrTotal prometheus.Counter
}

// New registers every collector on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readmission_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "readmission_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ingestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readmission_measurements_ingested_total",
			Help: "Measurements ingested with a stored prediction",
		}, []string{"strategy", "parameter"}),
		ingestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readmission_ingest_errors_total",
			Help: "Failed ingestions by stage",
		}, []string{"strategy", "stage"}),
		predictionProb: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "readmission_prediction_probability",
			Help:    "Distribution of predicted readmission probabilities",
			Buckets: prometheus.LinearBuckets(0.05, 0.05, 19),
		}),
		calcTimeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "readmission_strategy_duration_seconds",
			Help:    "Time spent computing one prediction",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"strategy"}),
		publishErrTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readmission_stream_publish_errors_total",
			Help: "Predictions that could not be published to the event stream",
		}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.ingestedTotal,
		m.ingestErrors,
		m.predictionProb,
		m.calcTimeSeconds,
		m.publishErrTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) ObserveIngest(strategy, parameter string, probability float64, calc time.Duration) {
	if m == nil {
		return
	}
	m.ingestedTotal.WithLabelValues(strategy, parameter).Inc()
	m.predictionProb.Observe(probability)
	m.calcTimeSeconds.WithLabelValues(strategy).Observe(calc.Seconds())
}

// IngestFailed stage is one of patient, measurement, strategy, prediction
func (m *Metrics) IngestFailed(strategy, stage string) {
	if m == nil {
		return
	}
	m.ingestErrors.WithLabelValues(strategy, stage).Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishErrTotal.Inc()
}
