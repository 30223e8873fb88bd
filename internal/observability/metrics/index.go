package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
)

type IndexMetrics struct {
	service string

	corpusEntries prometheus.Gauge
	buildDuration *prometheus.HistogramVec
	buildTotal    *prometheus.CounterVec
	tierEnabled   *prometheus.GaugeVec
}

func newIndexMetrics(service string, registry *prometheus.Registry) *IndexMetrics {
	corpusEntries := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "faq",
			Subsystem: "index",
			Name:      "corpus_entries",
			Help:      "Number of corpus entries retained after load.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	buildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faq",
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Startup index build duration by index and status.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service", "index", "status"},
	)
	buildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faq",
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Startup index builds by index and status.",
		},
		[]string{"service", "index", "status"},
	)
	tierEnabled := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "faq",
			Subsystem: "cascade",
			Name:      "tier_enabled",
			Help:      "1 when the optional tier passed startup probing.",
		},
		[]string{"service", "tier"},
	)

	registry.MustRegister(corpusEntries, buildDuration, buildTotal, tierEnabled)

	return &IndexMetrics{
		service:       service,
		corpusEntries: corpusEntries,
		buildDuration: buildDuration,
		buildTotal:    buildTotal,
		tierEnabled:   tierEnabled,
	}
}

func (m *IndexMetrics) SetCorpusEntries(n int) {
	m.corpusEntries.Set(float64(n))
}

func (m *IndexMetrics) FinishBuild(index string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.buildTotal.WithLabelValues(m.service, index, status).Inc()
	m.buildDuration.WithLabelValues(m.service, index, status).Observe(duration.Seconds())
}

func (m *IndexMetrics) SetCapabilities(caps domain.Capabilities) {
	m.tierEnabled.WithLabelValues(m.service, string(domain.SourceLexical)).Set(1)
	m.tierEnabled.WithLabelValues(m.service, string(domain.SourceSemantic)).Set(boolGauge(caps.SemanticEnabled))
	m.tierEnabled.WithLabelValues(m.service, string(domain.SourceGenerative)).Set(boolGauge(caps.GenerativeEnabled))
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
