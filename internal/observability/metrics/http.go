package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
)

type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	cascadeAnswersTotal *prometheus.CounterVec
	cascadeTierTotal    *prometheus.CounterVec
	cascadeScore        *prometheus.HistogramVec
	cascadeDuration     *prometheus.HistogramVec

	index *IndexMetrics
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faq",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faq",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "faq",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	cascadeAnswersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faq",
			Subsystem: "cascade",
			Name:      "answers_total",
			Help:      "Answered queries by the tier that produced the answer.",
		},
		[]string{"service", "source"},
	)
	cascadeTierTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faq",
			Subsystem: "cascade",
			Name:      "tier_attempts_total",
			Help:      "Tier attempts by outcome (hit, miss, failed).",
		},
		[]string{"service", "tier", "outcome"},
	)
	cascadeScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faq",
			Subsystem: "cascade",
			Name:      "answer_score",
			Help:      "Similarity score of the returned answer.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.35, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service", "source"},
	)
	cascadeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faq",
			Subsystem: "cascade",
			Name:      "duration_seconds",
			Help:      "Cascade execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "source"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		cascadeAnswersTotal,
		cascadeTierTotal,
		cascadeScore,
		cascadeDuration,
	)

	return &HTTPServerMetrics{
		service:             service,
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		cascadeAnswersTotal: cascadeAnswersTotal,
		cascadeTierTotal:    cascadeTierTotal,
		cascadeScore:        cascadeScore,
		cascadeDuration:     cascadeDuration,
		index:               newIndexMetrics(service, registry),
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Index exposes startup index-build metrics sharing this registry.
func (m *HTTPServerMetrics) Index() *IndexMetrics {
	return m.index
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) ObserveTier(source domain.Source, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.cascadeTierTotal.WithLabelValues(m.service, string(source), outcome).Inc()
}

func (m *HTTPServerMetrics) ObserveAnswer(source domain.Source, score float64, durationSeconds float64) {
	m.cascadeAnswersTotal.WithLabelValues(m.service, string(source)).Inc()
	m.cascadeScore.WithLabelValues(m.service, string(source)).Observe(score)
	m.cascadeDuration.WithLabelValues(m.service, string(source)).Observe(durationSeconds)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
