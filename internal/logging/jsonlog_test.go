package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

func TestInfoWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Info("rejection_sampled", map[string]any{"accepted": 3})

	var e map[string]any
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("not JSON: %v: %s", err, buf.String())
	}
	if e["message"] != "rejection_sampled" || e["level"] != "info" {
		t.Fatalf("unexpected entry: %v", e)
	}
	if e["accepted"] != float64(3) {
		t.Fatalf("field missing: %v", e)
	}
}

func TestSetLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	if err := SetLevel("error"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = SetLevel("info") }()

	Info("dropped", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below error, got %s", buf.String())
	}
	if err := SetLevel("loud"); err == nil {
		t.Fatal("expected bad level error")
	}
}
