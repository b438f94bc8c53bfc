package model

import "strings"

// Sequence is a CDR3 amino-acid sequence with optional V/J gene calls.
// V and J are left empty when gene usage is not modeled.
type Sequence struct {
	CDR3 string
	V    string
	J    string
}

// Len returns the CDR3 length in amino acids.
func (s Sequence) Len() int { return len(s.CDR3) }

// HasGenes reports whether both gene calls are present.
func (s Sequence) HasGenes() bool { return s.V != "" && s.J != "" }

// Normalize upper-cases the CDR3 and trims surrounding whitespace from all fields.
func (s Sequence) Normalize() Sequence {
	return Sequence{
		CDR3: strings.ToUpper(strings.TrimSpace(s.CDR3)),
		V:    strings.TrimSpace(s.V),
		J:    strings.TrimSpace(s.J),
	}
}

// Set names which sequence list a record belongs to.
type Set string

const (
	SetData Set = "data"
	SetGen  Set = "gen"
)
