package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/2revoemag/psforever-password-reset/internal/errs"
	"github.com/2revoemag/psforever-password-reset/internal/model"
)

// AccountRepo implements repository.AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// FindByUsername selects an account by case-insensitive username match.
// The stored exact-case username is returned, not the search term.
// A second matching row means the store's uniqueness invariant is broken;
// that is reported as errs.ErrDataIntegrity, never resolved silently.
func (r *AccountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	const q = `
SELECT id, username, inactive FROM account WHERE LOWER(username) = LOWER($1)`
	rows, err := r.db.Pool.Query(ctx, q, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		acct  model.Account
		found bool
	)
	for rows.Next() {
		if found {
			return nil, fmt.Errorf("multiple accounts match username %q: %w", username, errs.ErrDataIntegrity)
		}
		if err := rows.Scan(&acct.ID, &acct.Username, &acct.Inactive); err != nil {
			return nil, err
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.ErrNotFound
	}
	return &acct, nil
}

// UpdateCredentials rewrites both credential hash columns of one row in a
// single transaction. The two columns belong to two different client
// verifiers; writing only one would lock the account out of the other
// client, so partial writes are never allowed to become visible.
func (r *AccountRepo) UpdateCredentials(ctx context.Context, id int64, launcherHash, clientHash string) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const q = `
UPDATE account SET password = $1, passhash = $2 WHERE id = $3`
	tag, err := tx.Exec(ctx, q, launcherHash, clientHash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
