package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the DM webhook.
type ConversationMetrics struct {
	webhookTotal *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	ctaTotal     prometheus.Counter
	neutralTotal *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentx",
			Subsystem: "conversation",
			Name:      "webhook_total",
			Help:      "Total conversation webhook responses",
		}, []string{"status", "intent"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentx",
			Subsystem: "conversation",
			Name:      "llm_latency_seconds",
			Help:      "Latency of model completions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"purpose", "outcome"}),
		ctaTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentx",
			Subsystem: "conversation",
			Name:      "cta_injected_total",
			Help:      "Replies that carried a call to action",
		}),
		neutralTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentx",
			Subsystem: "conversation",
			Name:      "neutral_reply_total",
			Help:      "Canned replies sent without a model call",
		}, []string{"intent"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.llmLatency, m.ctaTotal, m.neutralTotal)
	return m
}

func (m *ConversationMetrics) ObserveWebhook(status int, intent string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(statusLabel(status), intent).Inc()
}

func (m *ConversationMetrics) ObserveLLM(purpose string, seconds float64, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmLatency.WithLabelValues(purpose, outcome).Observe(seconds)
}

func (m *ConversationMetrics) ObserveCTA() {
	if m == nil {
		return
	}
	m.ctaTotal.Inc()
}

func (m *ConversationMetrics) ObserveNeutral(intent string) {
	if m == nil {
		return
	}
	m.neutralTotal.WithLabelValues(intent).Inc()
}

// IngestionMetrics exposes counters/histograms for content ingestion.
type IngestionMetrics struct {
	runsTotal   *prometheus.CounterVec
	chunksTotal prometheus.Counter
	duration    prometheus.Histogram
}

func NewIngestionMetrics(reg prometheus.Registerer) *IngestionMetrics {
	m := &IngestionMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentx",
			Subsystem: "ingestion",
			Name:      "runs_total",
			Help:      "Ingestion runs by outcome",
		}, []string{"outcome"}),
		chunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentx",
			Subsystem: "ingestion",
			Name:      "chunks_total",
			Help:      "Knowledge chunks written",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agentx",
			Subsystem: "ingestion",
			Name:      "duration_seconds",
			Help:      "Duration of ingestion runs",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.chunksTotal, m.duration)
	return m
}

func (m *IngestionMetrics) ObserveRun(outcome string, chunks int, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	if chunks > 0 {
		m.chunksTotal.Add(float64(chunks))
	}
	m.duration.Observe(seconds)
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
