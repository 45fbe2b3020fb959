package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gateway metrics
	GatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redteam_gateway_calls_total",
			Help: "Total number of model gateway calls",
		},
		[]string{"provider", "model", "status"}, // status: success|<error kind>
	)

	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redteam_gateway_latency_seconds",
			Help:    "Model gateway call latency in seconds, retries included",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	GatewayRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redteam_gateway_retries_total",
			Help: "Retried gateway attempts by error kind",
		},
		[]string{"kind"},
	)

	GatewayTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redteam_gateway_tokens_total",
			Help: "Tokens consumed through the gateway",
		},
		[]string{"provider", "model", "type"}, // type: input|output
	)

	// Analysis metrics
	PerspectiveOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redteam_perspective_outcomes_total",
			Help: "Perspective analyses by outcome",
		},
		[]string{"perspective", "outcome"}, // outcome: parsed|raw|failed
	)

	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redteam_analysis_duration_seconds",
			Help:    "Wall time of a full multi-perspective analysis",
			Buckets: []float64{5, 10, 30, 60, 120, 300, 600},
		},
	)

	SynthesisOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redteam_synthesis_outcomes_total",
			Help: "Synthesis results by source",
		},
		[]string{"source"}, // source: model|fallback
	)

	SynthesisAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redteam_synthesis_attempts",
			Help:    "Model attempts used per synthesis",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// Context provider metrics
	ContextLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redteam_context_lookups_total",
			Help: "External context lookups by outcome",
		},
		[]string{"outcome"}, // outcome: hit|miss|error|empty|timeout
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redteam_kafka_messages_total",
			Help: "Total Kafka messages published",
		},
		[]string{"topic", "status"}, // status: success|failed
	)
)

var registerOnce sync.Once

// Init registers all metrics with Prometheus
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(GatewayCalls)
		prometheus.MustRegister(GatewayLatency)
		prometheus.MustRegister(GatewayRetries)
		prometheus.MustRegister(GatewayTokens)

		prometheus.MustRegister(PerspectiveOutcomes)
		prometheus.MustRegister(AnalysisDuration)
		prometheus.MustRegister(SynthesisOutcomes)
		prometheus.MustRegister(SynthesisAttempts)

		prometheus.MustRegister(ContextLookups)
		prometheus.MustRegister(KafkaMessages)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordGatewayCall records a finished gateway call. status is "success" or the error kind.
func RecordGatewayCall(provider, model, status string, latency time.Duration, inputTokens, outputTokens int) {
	GatewayCalls.WithLabelValues(provider, model, status).Inc()
	GatewayLatency.WithLabelValues(provider, model).Observe(latency.Seconds())

	if inputTokens > 0 {
		GatewayTokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		GatewayTokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordGatewayRetry records one retried attempt
func RecordGatewayRetry(kind string) {
	GatewayRetries.WithLabelValues(kind).Inc()
}

// RecordPerspective records how a perspective analysis resolved
func RecordPerspective(perspective, outcome string) {
	PerspectiveOutcomes.WithLabelValues(perspective, outcome).Inc()
}

// RecordAnalysis records the duration of a full analysis run
func RecordAnalysis(duration time.Duration) {
	AnalysisDuration.Observe(duration.Seconds())
}

// RecordSynthesis records the synthesis source and model attempts used
func RecordSynthesis(fallback bool, attempts int) {
	source := "model"
	if fallback {
		source = "fallback"
	}
	SynthesisOutcomes.WithLabelValues(source).Inc()
	SynthesisAttempts.Observe(float64(attempts))
}

// RecordContextLookup records a context provider lookup
func RecordContextLookup(outcome string) {
	ContextLookups.WithLabelValues(outcome).Inc()
}

// RecordKafkaMessage records a publish attempt
func RecordKafkaMessage(topic string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	KafkaMessages.WithLabelValues(topic, status).Inc()
}
