package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ingestDecisions counts write-path outcomes.
	// Labels: action (created, merged), tier (0..3; 0 means no tier fired)
	ingestDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incident_engine",
		Subsystem: "ingest",
		Name:      "decisions_total",
		Help:      "Ingest outcomes by action and deciding tier",
	}, []string{"action", "tier"})

	// ingestRejections counts 4xx rejections by category.
	// Labels: category (missing_coords, satire_domain, policy_discussion, ...)
	ingestRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incident_engine",
		Subsystem: "ingest",
		Name:      "rejections_total",
		Help:      "Rejected candidates by category",
	}, []string{"category"})

	// requestLatency measures HTTP handler latency.
	// Labels: route, status
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "incident_engine",
		Subsystem: "http",
		Name:      "request_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
	}, []string{"route", "status"})

	// llmCalls counts adjudicator traffic.
	// Labels: kind (classify, duplicate), outcome (ok, cached, error, unavailable)
	llmCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incident_engine",
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "LLM adjudication calls by kind and outcome",
	}, []string{"kind", "outcome"})

	// embeddingCalls counts embedding provider traffic.
	// Labels: outcome (ok, error)
	embeddingCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incident_engine",
		Subsystem: "embedding",
		Name:      "calls_total",
		Help:      "Embedding calls by outcome",
	}, []string{"outcome"})

	// sourcesAttached counts article links written to the store.
	sourcesAttached = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "incident_engine",
		Subsystem: "ingest",
		Name:      "sources_attached_total",
		Help:      "Source rows attached to incidents",
	})

	// reconcileMerged counts incidents absorbed by batch reconciliation.
	reconcileMerged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "incident_engine",
		Subsystem: "reconcile",
		Name:      "absorbed_total",
		Help:      "Incidents absorbed into cluster survivors",
	})

	// reconcileRuns counts completed reconciliation sweeps.
	reconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "incident_engine",
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Completed reconciliation sweeps",
	})

	// websocketClients tracks currently connected stream subscribers.
	websocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "incident_engine",
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Connected websocket subscribers",
	})

	// rateLimited counts requests refused by the per-IP limiter.
	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "incident_engine",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests refused by the per-IP rate limiter",
	})
)

// ObserveDecision records one write-path outcome.
func ObserveDecision(action string, tier int) {
	ingestDecisions.WithLabelValues(action, strconv.Itoa(tier)).Inc()
}

// ObserveRejection records one 4xx rejection.
func ObserveRejection(category string) {
	ingestRejections.WithLabelValues(category).Inc()
}

// ObserveRequest records one handler completion.
func ObserveRequest(route string, status int, seconds float64) {
	requestLatency.WithLabelValues(route, strconv.Itoa(status)).Observe(seconds)
}

// ObserveLLM records one adjudicator call.
func ObserveLLM(kind, outcome string) {
	llmCalls.WithLabelValues(kind, outcome).Inc()
}

// ObserveEmbedding records one embedding call.
func ObserveEmbedding(outcome string) {
	embeddingCalls.WithLabelValues(outcome).Inc()
}

// AddSourcesAttached records n source rows written.
func AddSourcesAttached(n int) {
	sourcesAttached.Add(float64(n))
}

// ReconcileCompleted records one finished sweep that absorbed n incidents.
func ReconcileCompleted(absorbed int) {
	reconcileRuns.Inc()
	reconcileMerged.Add(float64(absorbed))
}

// WebsocketClientChange moves the subscriber gauge by delta.
func WebsocketClientChange(delta int) {
	websocketClients.Add(float64(delta))
}

// ObserveRateLimited records one refused request.
func ObserveRateLimited() {
	rateLimited.Inc()
}

// Handler serves the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
