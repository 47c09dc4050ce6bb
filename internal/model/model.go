// Package model defines domain entities used by services and repositories.
package model

// Account is a transient read-through copy of a row in the game server's
// account table. The two credential hash columns are write-only from this
// tool's point of view and are therefore not carried here.
type Account struct {
	// ID is the immutable primary key of the account row.
	ID int64
	// Username in the exact case stored in the database. Lookups are
	// case-insensitive but the launcher hash derivation depends on this
	// exact spelling.
	Username string
	// Inactive marks a disabled account. The tool never mutates it,
	// only surfaces it as a warning.
	Inactive bool
}
