package feature

import (
	"strconv"
	"strings"
)

// Kind tells which tag tuple a Key stands for.
type Kind uint8

const (
	// KindLength is the unit feature l<L>.
	KindLength Kind = iota
	// KindLengthPosAA is the compound feature (l<L>, a<AA><i>).
	KindLengthPosAA
	// KindGenePair is the compound feature (v<id>, j<id>).
	KindGenePair
)

// Key identifies a feature by value. Two keys are equal iff their tag
// tuples are equal, so Key can be used directly as a map key.
type Key struct {
	Kind Kind
	L    int
	Pos  int
	AA   byte
	V    string
	J    string
}

// LengthKey returns the unit feature for CDR3 length l.
func LengthKey(l int) Key { return Key{Kind: KindLength, L: l} }

// PositionKey returns the compound feature for amino acid aa at position
// pos of a CDR3 of length l.
func PositionKey(l, pos int, aa byte) Key {
	return Key{Kind: KindLengthPosAA, L: l, Pos: pos, AA: aa}
}

// GenePairKey returns the compound feature for a V/J family pair.
func GenePairKey(v, j string) Key { return Key{Kind: KindGenePair, V: v, J: j} }

// Tags renders the key as its tag tuple, e.g. ["l12", "aC0"] or ["v5-1", "j2-7"].
func (k Key) Tags() []string {
	switch k.Kind {
	case KindLength:
		return []string{"l" + strconv.Itoa(k.L)}
	case KindLengthPosAA:
		return []string{"l" + strconv.Itoa(k.L), "a" + string(k.AA) + strconv.Itoa(k.Pos)}
	case KindGenePair:
		return []string{"v" + k.V, "j" + k.J}
	}
	return nil
}

func (k Key) String() string { return "(" + strings.Join(k.Tags(), ",") + ")" }

// Unit reports whether the key is a single-tag feature.
func (k Key) Unit() bool { return k.Kind == KindLength }
