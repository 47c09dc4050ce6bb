package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectKind classifies a failed connection attempt. The negotiator's
// retry logic branches on this closed set instead of matching error text,
// so it is independent of any particular server's wording.
type ConnectKind int

const (
	// ConnectOther is any failure not covered below; retryable with
	// unchanged parameters.
	ConnectOther ConnectKind = iota
	// ConnectAuthFailed means the server rejected the credentials.
	ConnectAuthFailed
	// ConnectDatabaseMissing means the target database name does not exist.
	ConnectDatabaseMissing
	// ConnectUnreachable means the server could not be reached at all
	// (refused, no route, timed out). Not retryable.
	ConnectUnreachable
)

// ConnectError wraps a failed connection attempt with its classification
// and the host:port it targeted.
type ConnectError struct {
	Kind ConnectKind
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	switch e.Kind {
	case ConnectAuthFailed:
		return fmt.Sprintf("authentication failed connecting to %s: %v", e.Addr, e.Err)
	case ConnectDatabaseMissing:
		return fmt.Sprintf("database not found on %s: %v", e.Addr, e.Err)
	case ConnectUnreachable:
		return fmt.Sprintf("cannot reach PostgreSQL at %s: %v", e.Addr, e.Err)
	default:
		return fmt.Sprintf("connection to %s failed: %v", e.Addr, e.Err)
	}
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ConnectParams carries one connection attempt's parameters.
type ConnectParams struct {
	Host     string
	Port     uint16
	User     string
	Password string
	Database string
	// Timeout bounds the whole attempt, dial plus ping.
	Timeout time.Duration
}

// Addr returns the host:port the params target.
func (p ConnectParams) Addr() string {
	return net.JoinHostPort(p.Host, fmt.Sprint(p.Port))
}

// Connect opens a pool and verifies it with a ping inside the attempt
// timeout. Failures come back as *ConnectError so callers can branch on
// the classification.
func Connect(ctx context.Context, p ConnectParams) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	// Empty DSN: start from defaults, then set fields explicitly so no
	// value ever needs DSN escaping.
	cfg, err := pgxpool.ParseConfig("")
	if err != nil {
		return nil, &ConnectError{Kind: ConnectOther, Addr: p.Addr(), Err: err}
	}
	cfg.ConnConfig.Host = p.Host
	cfg.ConnConfig.Port = p.Port
	cfg.ConnConfig.User = p.User
	cfg.ConnConfig.Password = p.Password
	cfg.ConnConfig.Database = p.Database
	cfg.ConnConfig.ConnectTimeout = p.Timeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &ConnectError{Kind: Classify(err), Addr: p.Addr(), Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &ConnectError{Kind: Classify(err), Addr: p.Addr(), Err: err}
	}
	return &DB{Pool: pool}, nil
}

// Classify maps a raw connection failure onto a ConnectKind.
//
// Auth and missing-database failures arrive as server errors with
// SQLSTATE class 28 (invalid authorization) and 3D000 (invalid catalog
// name). Refused or unroutable targets surface as net errors before any
// server response; a deadline expiry during dial is treated the same way.
func Classify(err error) ConnectKind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.InvalidPassword, pgerrcode.InvalidAuthorizationSpecification:
			return ConnectAuthFailed
		case pgerrcode.InvalidCatalogName:
			return ConnectDatabaseMissing
		}
		return ConnectOther
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return ConnectUnreachable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ConnectUnreachable
	}
	return ConnectOther
}
