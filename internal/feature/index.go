// Package feature builds the feature space of the length/position/amino-acid
// selection model: a dense, immutable mapping from feature keys to vector
// indices, plus the (length, position) groups used for gauge fixing.
package feature

import (
	"fmt"
	"sort"

	"cdr3q/internal/qerr"
)

// DefaultAlphabet is the 20 standard amino acids in the canonical model order.
const DefaultAlphabet = "ARNDCQEGHILKMFPSTWYV"

// Options configures Build.
type Options struct {
	MinL         int
	MaxL         int
	Alphabet     string // DefaultAlphabet when empty
	IncludeGenes bool
	VFamilies    []string
	JFamilies    []string
}

// Group lists the feature indices of every amino acid at one (length,
// position), in alphabet order.
type Group struct {
	L       int
	Pos     int
	Members []int
}

// Index is the feature space. It is immutable after Build and safe for
// concurrent readers.
type Index struct {
	keys     []Key
	lookup   map[Key]int
	alphabet string
	minL     int
	maxL     int

	lengths     []int   // lengths[L-minL] is the index of l<L>
	groups      []Group // all (L, i) groups, ordered by L then i
	groupOffset []int   // groupOffset[L-minL] is the first group of length L
	arena       []int   // backing store for Group.Members

	vFamilies []string
	jFamilies []string
}

// Build enumerates the unit length features, every (length, position,
// amino acid) feature and, when genes are included, the full Cartesian
// product of V and J family labels.
func Build(opts Options) (*Index, error) {
	if opts.MinL < 1 || opts.MaxL < opts.MinL {
		return nil, fmt.Errorf("%w: invalid length bounds [%d, %d]", qerr.ErrConfiguration, opts.MinL, opts.MaxL)
	}
	alphabet := opts.Alphabet
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	seen := make(map[byte]struct{}, len(alphabet))
	for i := 0; i < len(alphabet); i++ {
		if _, dup := seen[alphabet[i]]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %q in alphabet", qerr.ErrConfiguration, alphabet[i])
		}
		seen[alphabet[i]] = struct{}{}
	}

	idx := &Index{
		alphabet: alphabet,
		minL:     opts.MinL,
		maxL:     opts.MaxL,
	}
	if opts.IncludeGenes {
		idx.vFamilies = uniqueSorted(opts.VFamilies)
		idx.jFamilies = uniqueSorted(opts.JFamilies)
		if len(idx.vFamilies) == 0 || len(idx.jFamilies) == 0 {
			return nil, fmt.Errorf("%w: gene features requested without V or J families", qerr.ErrConfiguration)
		}
	}

	nLengths := opts.MaxL - opts.MinL + 1
	nPositions := 0
	for l := opts.MinL; l <= opts.MaxL; l++ {
		nPositions += l
	}
	total := nLengths + nPositions*len(alphabet) + len(idx.vFamilies)*len(idx.jFamilies)
	idx.keys = make([]Key, 0, total)
	idx.lookup = make(map[Key]int, total)
	idx.lengths = make([]int, 0, nLengths)
	idx.groups = make([]Group, 0, nPositions)
	idx.groupOffset = make([]int, 0, nLengths)
	idx.arena = make([]int, 0, nPositions*len(alphabet))

	for l := opts.MinL; l <= opts.MaxL; l++ {
		idx.lengths = append(idx.lengths, idx.add(LengthKey(l)))
	}
	for l := opts.MinL; l <= opts.MaxL; l++ {
		idx.groupOffset = append(idx.groupOffset, len(idx.groups))
		for i := 0; i < l; i++ {
			start := len(idx.arena)
			for a := 0; a < len(alphabet); a++ {
				idx.arena = append(idx.arena, idx.add(PositionKey(l, i, alphabet[a])))
			}
			idx.groups = append(idx.groups, Group{L: l, Pos: i, Members: idx.arena[start:len(idx.arena):len(idx.arena)]})
		}
	}
	for _, v := range idx.vFamilies {
		for _, j := range idx.jFamilies {
			idx.add(GenePairKey(v, j))
		}
	}
	return idx, nil
}

func (x *Index) add(k Key) int {
	i := len(x.keys)
	x.keys = append(x.keys, k)
	x.lookup[k] = i
	return i
}

// Len returns the number of features.
func (x *Index) Len() int { return len(x.keys) }

// Key returns the feature at index i.
func (x *Index) Key(i int) Key { return x.keys[i] }

// Keys returns a copy of all features in index order.
func (x *Index) Keys() []Key { return append([]Key(nil), x.keys...) }

// Lookup returns the index of k, or ErrFeatureLookupMiss.
func (x *Index) Lookup(k Key) (int, error) {
	i, ok := x.lookup[k]
	if !ok {
		return -1, fmt.Errorf("%w: %s", qerr.ErrFeatureLookupMiss, k)
	}
	return i, nil
}

// Alphabet returns the amino-acid alphabet in index order.
func (x *Index) Alphabet() string { return x.alphabet }

// MinL returns the smallest modeled length.
func (x *Index) MinL() int { return x.minL }

// MaxL returns the largest modeled length.
func (x *Index) MaxL() int { return x.maxL }

// HasLength reports whether l lies in the modeled range.
func (x *Index) HasLength(l int) bool { return l >= x.minL && l <= x.maxL }

// LengthIndex returns the index of the unit feature l<L>.
func (x *Index) LengthIndex(l int) (int, bool) {
	if !x.HasLength(l) {
		return -1, false
	}
	return x.lengths[l-x.minL], true
}

// LengthFeatures returns the indices of the unit length features. These are
// the constant features of the model.
func (x *Index) LengthFeatures() []int { return append([]int(nil), x.lengths...) }

// Groups returns every (length, position) group. The returned slice is
// shared and must not be modified.
func (x *Index) Groups() []Group { return x.groups }

// GroupsForLength returns the groups of positions 0..l-1 for length l.
func (x *Index) GroupsForLength(l int) []Group {
	if !x.HasLength(l) {
		return nil
	}
	start := x.groupOffset[l-x.minL]
	return x.groups[start : start+l]
}

// IncludesGenes reports whether gene-pair features were built.
func (x *Index) IncludesGenes() bool { return len(x.vFamilies) > 0 }

// VFamilies returns the sorted V family labels.
func (x *Index) VFamilies() []string { return append([]string(nil), x.vFamilies...) }

// JFamilies returns the sorted J family labels.
func (x *Index) JFamilies() []string { return append([]string(nil), x.jFamilies...) }

func uniqueSorted(in []string) []string {
	set := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
