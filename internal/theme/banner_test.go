package theme

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	if !strings.Contains(buf.String(), "cdr3q") {
		t.Fatalf("banner missing name: %q", buf.String())
	}
}
