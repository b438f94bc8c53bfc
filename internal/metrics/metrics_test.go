package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsExposure(t *testing.T) {
	GaugeFixes.Inc()
	OracleCalls.Inc()
	IncAPIRetry("/pgen")
	IncCommandRun("run")
	ObserveSampling(0.25, 1.5, false)
	ObserveOracleDuration(time.Now().Add(-1500 * time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"cdr3q_gauge_fixes_total",
		"cdr3q_oracle_calls_total",
		"cdr3q_oracle_batch_duration_seconds",
		"cdr3q_api_retries_total",
		"cdr3q_command_runs_total",
		"cdr3q_sampling_acceptance_frequency 0.25",
		"cdr3q_sampling_partition_estimate 1.5",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}
