package seqio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdr3q/internal/model"
)

func TestReadWithHeader(t *testing.T) {
	in := "v_call,cdr3_aa,j_call\nTRBV5-1*01, cassf ,TRBJ2-7*01\n,,\nTRBV7-9*01,CASSLGF,TRBJ1-1*01\n"
	seqs, err := Read(strings.NewReader(in), ',')
	require.NoError(t, err)
	assert.Equal(t, []model.Sequence{
		{CDR3: "CASSF", V: "TRBV5-1*01", J: "TRBJ2-7*01"},
		{CDR3: "CASSLGF", V: "TRBV7-9*01", J: "TRBJ1-1*01"},
	}, seqs)
}

func TestReadWithoutHeader(t *testing.T) {
	in := "CASSF\tTRBV5-1\tTRBJ2-7\nCAF\n# comment\nCASS LGF\n"
	seqs, err := Read(strings.NewReader(in), '\t')
	require.NoError(t, err)
	require.Len(t, seqs, 3)
	assert.Equal(t, "TRBV5-1", seqs[0].V)
	assert.False(t, seqs[1].HasGenes())
	assert.Equal(t, "CASSLGF", seqs[2].CDR3)
}

func TestReadFileTSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.tsv")
	require.NoError(t, os.WriteFile(path, []byte("cdr3\tv\tj\nCASSF\tTRBV5-1\tTRBJ2-7\n"), 0o644))
	seqs, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, seqs, 1)
	assert.Equal(t, "TRBJ2-7", seqs[0].J)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestWriteTable(t *testing.T) {
	yes := true
	var buf bytes.Buffer
	err := WriteTable(&buf, []Row{
		{Seq: model.Sequence{CDR3: "CASSF"}, Set: model.SetData, Pgen: 1e-9, Energy: 0.5, Ppost: 6.065306597e-10},
		{Seq: model.Sequence{CDR3: "CAF", V: "5-1", J: "2-7"}, Set: model.SetGen, Pgen: 0.25, Energy: 0, Ppost: 0.25, Selected: &yes},
	})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "cdr3\tv\tj\tset\tpgen\tenergy\tppost\tselected", lines[0])
	assert.Equal(t, "CASSF\t\t\tdata\t1e-09\t0.5\t6.065306597e-10\t", lines[1])
	assert.Equal(t, "CAF\t5-1\t2-7\tgen\t0.25\t0\t0.25\ttrue", lines[2])
}
