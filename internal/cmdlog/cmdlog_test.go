package cmdlog

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cdr3q/internal/logging"
)

func TestRunCountsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	defer logging.SetOutput(os.Stdout)

	if err := Run("probe", func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	if err := Run("probe", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"message":"probe_ok"`) || !strings.Contains(out, `"message":"probe_error"`) {
		t.Fatalf("missing log lines: %s", out)
	}

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, m := range []string{
		`cdr3q_command_runs_total{command="probe"} 2`,
		`cdr3q_command_errors_total{command="probe"} 1`,
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected %s in metrics body", m)
		}
	}
}
