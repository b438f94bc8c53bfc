// Package seqio reads CDR3 sequence sets and writes per-sequence
// probability tables.
package seqio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"cdr3q/internal/model"
)

var whitespace = regexp.MustCompile(`\s+`)

var (
	cdr3Columns = []string{"cdr3", "cdr3_aa", "amino_acid", "junction_aa"}
	vColumns    = []string{"v", "v_gene", "v_call", "vgene"}
	jColumns    = []string{"j", "j_gene", "j_call", "jgene"}
)

// ReadFile reads sequences from a CSV or TSV file. Files ending in .tsv or
// .txt are tab separated.
func ReadFile(path string) ([]model.Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	comma := ','
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt":
		comma = '\t'
	}
	seqs, err := Read(f, comma)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seqs, nil
}

// Read parses rows of cdr3[,v,j]. A first row naming a cdr3 column is taken
// as a header and may place the columns anywhere; without one the first
// three columns are cdr3, v and j. Blank CDR3 rows are skipped.
func Read(r io.Reader, comma rune) ([]model.Sequence, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	cols := [3]int{0, 1, 2}
	var out []model.Sequence
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 {
			if h, ok := header(rec); ok {
				cols = h
				continue
			}
		}
		s := model.Sequence{
			CDR3: field(rec, cols[0]),
			V:    field(rec, cols[1]),
			J:    field(rec, cols[2]),
		}.Normalize()
		s.CDR3 = whitespace.ReplaceAllString(s.CDR3, "")
		if s.CDR3 == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func header(rec []string) ([3]int, bool) {
	cols := [3]int{-1, -1, -1}
	for i, name := range rec {
		name = strings.ToLower(strings.TrimSpace(name))
		switch {
		case contains(cdr3Columns, name):
			cols[0] = i
		case contains(vColumns, name):
			cols[1] = i
		case contains(jColumns, name):
			cols[2] = i
		}
	}
	return cols, cols[0] >= 0
}

func contains(names []string, s string) bool {
	for _, n := range names {
		if n == s {
			return true
		}
	}
	return false
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// Row is one line of a probability table. Selected is nil for sequences
// outside the generated set.
type Row struct {
	Seq      model.Sequence
	Set      model.Set
	Pgen     float64
	Energy   float64
	Ppost    float64
	Selected *bool
}

// TableHeader lists the columns written by WriteTable.
var TableHeader = []string{"cdr3", "v", "j", "set", "pgen", "energy", "ppost", "selected"}

// WriteTable writes rows as tab-separated values with a header line.
func WriteTable(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(TableHeader); err != nil {
		return err
	}
	for _, r := range rows {
		sel := ""
		if r.Selected != nil {
			sel = strconv.FormatBool(*r.Selected)
		}
		rec := []string{
			r.Seq.CDR3, r.Seq.V, r.Seq.J, string(r.Set),
			formatFloat(r.Pgen), formatFloat(r.Energy), formatFloat(r.Ppost), sel,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', 10, 64) }
