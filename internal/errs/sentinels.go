// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDataIntegrity indicates a uniqueness invariant violation in the
	// backing store (e.g. two rows matching one username case-insensitively).
	// Never resolved silently; fatal for the run.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrAborted indicates the operator chose not to proceed.
	ErrAborted = errors.New("aborted")
)
