package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speech_relay_active_sessions",
		Help: "Number of active recognition sessions per role",
	}, []string{"role"})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_relay_sessions_total",
		Help: "Total number of recognition sessions started",
	}, []string{"role"})

	// Utterance metrics
	utterancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_relay_utterances_total",
		Help: "Total number of recognized utterances routed",
	}, []string{"role"})

	// Synthesis metrics
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_relay_synthesis_requests_total",
		Help: "Total number of synthesis requests",
	}, []string{"status"})

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_relay_synthesis_latency_seconds",
		Help:    "Synthesis request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// File translation metrics
	fileTranslations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_relay_file_translations_total",
		Help: "Total number of file translation requests",
	}, []string{"status"})

	fileTranslationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_relay_file_translation_latency_seconds",
		Help:    "End-to-end file translation latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Realtime channel metrics
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speech_relay_connected_clients",
		Help: "Number of connected realtime channel subscribers",
	})

	eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_relay_events_emitted_total",
		Help: "Total number of events broadcast on the realtime channel",
	}, []string{"event"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_relay_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// RecordSessionStart records a session becoming active for a role
func RecordSessionStart(role string) {
	activeSessions.WithLabelValues(role).Inc()
	sessionsTotal.WithLabelValues(role).Inc()
}

// RecordSessionStop records a session ending for a role
func RecordSessionStop(role string) {
	activeSessions.WithLabelValues(role).Dec()
}

// RecordUtterance records one routed utterance for a role
func RecordUtterance(role string) {
	utterancesTotal.WithLabelValues(role).Inc()
}

// RecordSynthesis records the outcome and latency of a synthesis request
func RecordSynthesis(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	synthesisRequests.WithLabelValues(status).Inc()
	synthesisLatency.Observe(seconds)
}

// RecordFileTranslation records the outcome and latency of a file translation
func RecordFileTranslation(status string, seconds float64) {
	fileTranslations.WithLabelValues(status).Inc()
	fileTranslationLatency.Observe(seconds)
}

// RecordClientConnect records a realtime subscriber connecting
func RecordClientConnect() {
	connectedClients.Inc()
}

// RecordClientDisconnect records a realtime subscriber disconnecting
func RecordClientDisconnect() {
	connectedClients.Dec()
}

// RecordEventEmitted records one broadcast event by name
func RecordEventEmitted(event string) {
	eventsEmitted.WithLabelValues(event).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
