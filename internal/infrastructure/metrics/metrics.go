package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Rounds
	RoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebuilder_rounds_total",
			Help: "Handled task rounds by result",
		},
		[]string{"result"}, // ok|failed|unauthorized|invalid
	)
	ActiveRounds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitebuilder_rounds_active",
			Help: "Rounds currently being processed",
		},
	)
	StageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitebuilder_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms..~100s
		},
		[]string{"stage"},
	)

	// LLM
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebuilder_llm_requests_total",
			Help: "Number of LLM requests by model",
		},
		[]string{"model"},
	)
	GeneratedFiles = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitebuilder_generated_files",
			Help:    "Number of files per generated artifact",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)

	// GitHub API
	GitHubCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebuilder_github_api_calls_total",
			Help: "GitHub REST calls by operation and status code",
		},
		[]string{"op", "status"},
	)

	// git
	GitCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebuilder_git_commands_total",
			Help: "git subprocess invocations by subcommand and result",
		},
		[]string{"subcommand", "result"}, // result: ok|fail
	)
	PushRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitebuilder_push_retries_total",
			Help: "Pushes retried after a rebase onto origin",
		},
	)

	// Notifications
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebuilder_notifications_total",
			Help: "Evaluation callbacks by result",
		},
		[]string{"result"},
	)

	// Websockets
	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitebuilder_ws_connections",
			Help: "Current number of open websocket connections",
		},
	)

	// Errors
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebuilder_errors_total",
			Help: "Errors encountered in components",
		},
		[]string{"component", "type"},
	)
)

func init() {
	prometheus.MustRegister(
		RoundsTotal,
		ActiveRounds,
		StageDurationSeconds,
		LLMRequests,
		GeneratedFiles,
		GitHubCalls,
		GitCommands,
		PushRetries,
		Notifications,
		WebsocketConnections,
		Errors,
	)
}

// StartMetricsServer serves /metrics on its own listener. It blocks.
func StartMetricsServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

// Rounds
func IncRound(result string) {
	RoundsTotal.WithLabelValues(result).Inc()
}

func IncActiveRounds() {
	ActiveRounds.Inc()
}

func DecActiveRounds() {
	ActiveRounds.Dec()
}

func ObserveStage(stage string, d time.Duration) {
	StageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// LLM
func IncLLMRequest(model string) {
	LLMRequests.WithLabelValues(model).Inc()
}

func ObserveGeneratedFiles(n int) {
	GeneratedFiles.Observe(float64(n))
}

// GitHub
func IncGitHubCall(op, status string) {
	GitHubCalls.WithLabelValues(op, status).Inc()
}

// git
func IncGitCommand(subcommand, result string) {
	GitCommands.WithLabelValues(subcommand, result).Inc()
}

func IncPushRetry() {
	PushRetries.Inc()
}

// Notifications
func IncNotification(result string) {
	Notifications.WithLabelValues(result).Inc()
}

// Websocket
func IncWSConnections() {
	WebsocketConnections.Inc()
}

func DecWSConnections() {
	WebsocketConnections.Dec()
}

// Errors
func IncError(component, typ string) {
	Errors.WithLabelValues(component, typ).Inc()
}
