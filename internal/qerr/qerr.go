// Package qerr holds the error kinds surfaced by the selection model.
// Callers match them with errors.Is; producers wrap them with context.
package qerr

import "errors"

var (
	// ErrConfiguration reports a caller configuration mistake, such as
	// length bounds that cannot be derived or an unsupported chain type.
	ErrConfiguration = errors.New("configuration error")

	// ErrFeatureLookupMiss reports a feature key with no entry in the index.
	ErrFeatureLookupMiss = errors.New("feature lookup miss")

	// ErrPrecomputationMissing reports an operation requested before its
	// prerequisite (energies, generation probabilities or a selection mask).
	ErrPrecomputationMissing = errors.New("precomputation missing")

	// ErrAllRejected reports a rejection sampling run whose normalizing
	// estimate is zero or non-finite.
	ErrAllRejected = errors.New("all sequences rejected")
)
