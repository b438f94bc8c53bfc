// Package genomic isolates reference genomic data: it is the only place that
// parses V/J gene names, reducing them to family labels.
package genomic

import (
	"fmt"
	"sort"
	"strings"

	"cdr3q/internal/qerr"
)

// FamilySource yields the distinct V and J family labels of a chain type.
type FamilySource interface {
	FamilyLabels(chain string) (v, j []string, err error)
}

var supportedChains = map[string]struct{}{
	"humanTRA": {},
	"humanTRB": {},
	"humanIGH": {},
	"humanIGK": {},
	"humanIGL": {},
	"mouseTRA": {},
	"mouseTRB": {},
}

// CheckChain returns ErrConfiguration for unsupported chain types.
func CheckChain(chain string) error {
	if _, ok := supportedChains[chain]; !ok {
		return fmt.Errorf("%w: unsupported chain type %q", qerr.ErrConfiguration, chain)
	}
	return nil
}

// Chains lists the supported chain types.
func Chains() []string {
	out := make([]string, 0, len(supportedChains))
	for c := range supportedChains {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// FamilyLabel strips the allele suffix of a gene name and keeps what follows
// the last gene-type letter: FamilyLabel("TRBV5-1*01", 'V') == "5-1".
func FamilyLabel(name string, geneType byte) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, '*'); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, geneType); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// VLabel is FamilyLabel for V genes.
func VLabel(name string) string { return FamilyLabel(name, 'V') }

// JLabel is FamilyLabel for J genes.
func JLabel(name string) string { return FamilyLabel(name, 'J') }

// Labels reduces gene names to their distinct family labels, sorted.
func Labels(names []string, geneType byte) []string {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if l := FamilyLabel(n, geneType); l != "" {
			set[l] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// StaticSource serves fixed gene names for every supported chain.
type StaticSource struct {
	VGenes []string
	JGenes []string
}

func (s StaticSource) FamilyLabels(chain string) ([]string, []string, error) {
	if err := CheckChain(chain); err != nil {
		return nil, nil, err
	}
	return Labels(s.VGenes, 'V'), Labels(s.JGenes, 'J'), nil
}
