package sqlitestore

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"cdr3q/internal/model"
)

func TestPgenCache(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil { t.Fatal(err) }
	defer db.Close()
	ctx := context.Background()

	s := model.Sequence{CDR3: "CASSF", V: "TRBV5-1*01", J: "TRBJ2-7*01"}
	if _, err := db.GetPgen(ctx, "humanTRB", s); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.PutPgen(ctx, "humanTRB", s, 1e-9); err != nil { t.Fatal(err) }
	if err := db.PutPgen(ctx, "humanTRB", s, 2e-9); err != nil { t.Fatal(err) }
	p, err := db.GetPgen(ctx, "humanTRB", s)
	if err != nil || p != 2e-9 { t.Fatalf("pgen mismatch: %v %g", err, p) }

	// gene calls are part of the key
	if _, err := db.GetPgen(ctx, "humanTRB", model.Sequence{CDR3: "CASSF"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected miss without genes, got %v", err)
	}
	if _, err := db.GetPgen(ctx, "humanTRA", s); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected miss for other chain, got %v", err)
	}
	n, err := db.CountPgen(ctx, "humanTRB")
	if err != nil || n != 1 { t.Fatalf("count mismatch: %v %d", err, n) }
}

func TestRunsRoundTrip(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil { t.Fatal(err) }
	defer db.Close()
	ctx := context.Background()

	mask := []bool{true, false, false, true, true, false, false, false, true, false}
	older := Run{TS: time.Now().Add(-time.Hour), Chain: "humanTRB", UpperBound: 10, Z: 0.8, Accepted: 4, Mask: mask, Params: []float64{0.5, -1.25}}
	id, err := db.PutRun(ctx, older)
	if err != nil { t.Fatal(err) }
	if id == "" { t.Fatal("expected generated id") }

	got, err := db.LoadRun(ctx, id)
	if err != nil { t.Fatal(err) }
	if len(got.Mask) != len(mask) { t.Fatalf("mask length %d", len(got.Mask)) }
	for i := range mask {
		if got.Mask[i] != mask[i] { t.Fatalf("mask[%d] mismatch", i) }
	}
	if got.Z != 0.8 || got.Accepted != 4 || got.UpperBound != 10 { t.Fatalf("run mismatch: %+v", got) }
	if len(got.Params) != 2 || got.Params[1] != -1.25 { t.Fatalf("params mismatch: %v", got.Params) }

	if _, err := db.PutRun(ctx, Run{Chain: "humanTRB", UpperBound: 10, Z: math.Inf(1), Mask: []bool{false}}); err != nil { t.Fatal(err) }
	runs, err := db.LoadRuns(ctx, 10)
	if err != nil || len(runs) != 2 { t.Fatalf("runs mismatch: %v %d", err, len(runs)) }
	if runs[0].ID == id { t.Fatal("expected newest run first") }
	if !math.IsNaN(runs[0].Z) { t.Fatalf("expected NaN z for non-finite estimate, got %g", runs[0].Z) }

	if _, err := db.LoadRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMaskPacking(t *testing.T) {
	for _, n := range []int{0, 1, 7, 8, 9, 17} {
		m := make([]bool, n)
		for i := range m { m[i] = i%3 == 0 }
		b := encodeMask(m)
		if len(b) != (n+7)/8 { t.Fatalf("n=%d: %d bytes", n, len(b)) }
		got := decodeMask(b, n)
		for i := range m {
			if got[i] != m[i] { t.Fatalf("n=%d: entry %d mismatch", n, i) }
		}
	}
}
