// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/2revoemag/psforever-password-reset/internal/model"
)

// AccountRepository provides the account access this tool needs: a
// case-insensitive lookup and the atomic two-field credential update.
type AccountRepository interface {
	// FindByUsername resolves an account by case-insensitive username
	// comparison and returns it with the stored exact-case username.
	// Returns errs.ErrNotFound when no row matches and
	// errs.ErrDataIntegrity when more than one row matches.
	FindByUsername(ctx context.Context, username string) (*model.Account, error)
	// UpdateCredentials writes both credential hash columns of one
	// account row in a single transaction. Either both columns change
	// durably or neither does.
	UpdateCredentials(ctx context.Context, id int64, launcherHash, clientHash string) error
}
