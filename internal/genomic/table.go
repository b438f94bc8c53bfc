package genomic

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	vAnchorFile = "V_gene_CDR3_anchors.csv"
	jAnchorFile = "J_gene_CDR3_anchors.csv"
)

// TableSource reads gene names from per-chain anchor tables laid out as
// <Dir>/<chain>/V_gene_CDR3_anchors.csv and J_gene_CDR3_anchors.csv. The
// gene name is the first column; a header row starting with "gene" is skipped.
type TableSource struct {
	Dir string
}

func (s TableSource) FamilyLabels(chain string) ([]string, []string, error) {
	if err := CheckChain(chain); err != nil {
		return nil, nil, err
	}
	vNames, err := readGeneColumn(filepath.Join(s.Dir, chain, vAnchorFile))
	if err != nil {
		return nil, nil, err
	}
	jNames, err := readGeneColumn(filepath.Join(s.Dir, chain, jAnchorFile))
	if err != nil {
		return nil, nil, err
	}
	return Labels(vNames, 'V'), Labels(jNames, 'J'), nil
}

func readGeneColumn(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var out []string
	for first := true; ; first = false {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		if first && strings.EqualFold(rec[0], "gene") {
			continue
		}
		out = append(out, rec[0])
	}
	return out, nil
}
