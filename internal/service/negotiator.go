package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/2revoemag/psforever-password-reset/internal/errs"
	"github.com/2revoemag/psforever-password-reset/internal/repository/postgres"
)

// Dialer opens a classified store connection. Production wiring passes
// postgres.Connect; tests script failures.
type Dialer func(ctx context.Context, p postgres.ConnectParams) (*postgres.DB, error)

// connectAttempts bounds the whole negotiation, across all recoverable
// failure classes.
const connectAttempts = 3

// Negotiator establishes the store connection, recovering interactively
// from rejected credentials and wrong database names. Unreachable
// targets are fatal immediately; anything else is retried unchanged
// until the attempt budget runs out.
type Negotiator struct {
	params    postgres.ConnectParams
	defaultDB string
	dial      Dialer
	prompt    Prompter
	out       io.Writer
	log       *zap.Logger
}

// NewNegotiator wires a negotiator. defaultDB is substituted when the
// operator answers the database re-prompt with an empty line.
func NewNegotiator(params postgres.ConnectParams, defaultDB string, dial Dialer, prompt Prompter, out io.Writer, log *zap.Logger) *Negotiator {
	return &Negotiator{
		params:    params,
		defaultDB: defaultDB,
		dial:      dial,
		prompt:    prompt,
		out:       out,
		log:       log,
	}
}

// Negotiate attempts to connect up to three times. When no password was
// configured it first tries the conventional default, the database user
// name itself.
func (n *Negotiator) Negotiate(ctx context.Context) (*postgres.DB, error) {
	p := n.params
	if p.Password == "" {
		p.Password = p.User
	}

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		// An interrupt is a user abort, not a connection failure; it
		// must never burn retry attempts.
		if ctx.Err() != nil {
			return nil, errs.ErrAborted
		}

		db, err := n.dial(ctx, p)
		if err == nil {
			return db, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, errs.ErrAborted
		}

		var cerr *postgres.ConnectError
		if !errors.As(err, &cerr) {
			return nil, err
		}
		n.log.Debug("connection attempt failed",
			zap.Int("attempt", attempt),
			zap.String("addr", cerr.Addr),
			zap.Error(cerr.Err),
		)

		switch cerr.Kind {
		case postgres.ConnectAuthFailed:
			fmt.Fprintf(n.out, "\nAuthentication failed for user '%s'\n", p.User)
			pw, perr := n.prompt.Secret(fmt.Sprintf("Database password for user '%s': ", p.User))
			if perr != nil {
				return nil, fmt.Errorf("read password: %w", perr)
			}
			p.Password = pw

		case postgres.ConnectDatabaseMissing:
			fmt.Fprintf(n.out, "\nDatabase '%s' not found on %s\n", p.Database, p.Addr())
			name, perr := n.prompt.Line("Database name: ")
			if perr != nil {
				return nil, fmt.Errorf("read database name: %w", perr)
			}
			if name == "" {
				name = n.defaultDB
			}
			p.Database = name

		case postgres.ConnectUnreachable:
			fmt.Fprintf(n.out, "\nERROR: Cannot connect to PostgreSQL at %s\n", p.Addr())
			fmt.Fprintln(n.out, "Possible causes:")
			fmt.Fprintln(n.out, "  - PostgreSQL server is not running")
			fmt.Fprintln(n.out, "  - Server is not accepting connections on this address")
			fmt.Fprintln(n.out, "  - Firewall blocking connection")
			return nil, cerr

		default:
			fmt.Fprintf(n.out, "\nDatabase connection error: %v\n", cerr.Err)
			if attempt < connectAttempts {
				fmt.Fprintf(n.out, "Retrying... (attempt %d/%d)\n", attempt+1, connectAttempts)
			}
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts", connectAttempts)
}
