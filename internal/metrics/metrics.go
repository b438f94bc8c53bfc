package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GaugeFixes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdr3q_gauge_fixes_total",
		Help: "Total gauge fixing passes",
	})
	EnergyEvaluations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdr3q_energy_evaluations_total",
		Help: "Total per-sequence energy evaluations",
	})
	SamplingRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdr3q_sampling_runs_total",
		Help: "Total rejection sampling runs",
	})
	AllRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdr3q_sampling_all_rejected_total",
		Help: "Rejection sampling runs with a zero or non-finite normalizing estimate",
	})
	AcceptanceFrequency = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cdr3q_sampling_acceptance_frequency",
		Help: "Fraction of generated sequences accepted by the last sampling run",
	})
	PartitionEstimate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cdr3q_sampling_partition_estimate",
		Help: "Monte-Carlo estimate Z of the last sampling run",
	})
	OracleCalls = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdr3q_oracle_calls_total",
		Help: "Total per-sequence generation probability calls",
	})
	OracleErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdr3q_oracle_errors_total",
		Help: "Total failed generation probability batches",
	})
	OracleCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdr3q_oracle_cache_hits_total",
		Help: "Generation probabilities served from cache",
	})
	OracleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cdr3q_oracle_batch_duration_seconds",
		Help:    "Generation probability batch duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cdr3q_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cdr3q_command_runs_total",
		Help: "Total CLI command runs",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cdr3q_command_errors_total",
		Help: "Total CLI command errors",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(
		GaugeFixes, EnergyEvaluations, SamplingRuns, AllRejected,
		AcceptanceFrequency, PartitionEstimate,
		OracleCalls, OracleErrors, OracleCacheHits, OracleDuration, APIRetries,
		CommandRuns, CommandErrors,
	)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("CDR3Q_METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveOracleDuration records a batch duration.
func ObserveOracleDuration(start time.Time) {
	OracleDuration.Observe(time.Since(start).Seconds())
}

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }

// ObserveSampling records the outcome of one rejection sampling run.
func ObserveSampling(acceptance, z float64, allRejected bool) {
	SamplingRuns.Inc()
	AcceptanceFrequency.Set(acceptance)
	PartitionEstimate.Set(z)
	if allRejected {
		AllRejected.Inc()
	}
}
