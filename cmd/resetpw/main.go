// Command resetpw resets a game account's password in a PSForever
// server database, regenerating both client credential hashes together.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/2revoemag/psforever-password-reset/internal/audit"
	"github.com/2revoemag/psforever-password-reset/internal/cli"
	"github.com/2revoemag/psforever-password-reset/internal/config"
	"github.com/2revoemag/psforever-password-reset/internal/crypto"
	"github.com/2revoemag/psforever-password-reset/internal/errs"
	"github.com/2revoemag/psforever-password-reset/internal/migrate"
	"github.com/2revoemag/psforever-password-reset/internal/repository/postgres"
	"github.com/2revoemag/psforever-password-reset/internal/service"
)

// defaultDatabase is substituted when the operator answers the
// database-name re-prompt with an empty line.
const defaultDatabase = "psforever"

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	os.Exit(run())
}

// run keeps defers (pool close, audit close) working before exit.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	host := flag.String("host", cfg.Host, "database host")
	port := flag.Uint("port", uint(cfg.Port), "database port")
	user := flag.String("user", cfg.User, "database user")
	dbName := flag.String("db", cfg.Database, "database name")
	auditPath := flag.String("audit-log", cfg.AuditLog, "audit log file")
	initSchema := flag.Bool("init-schema", false, "create the account table (scratch databases only)")
	verbose := flag.Bool("verbose", false, "enable info/debug logging")
	flag.Parse()

	if err := validatePort(*port); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	logLevel := zapcore.WarnLevel
	if *verbose {
		logLevel = zapcore.DebugLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(logLevel)
	zcfg.OutputPaths = []string{"stderr"}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()
	logger.Debug("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("PSForever Password Reset Tool")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println()

	params := postgres.ConnectParams{
		Host:     *host,
		Port:     uint16(*port),
		User:     *user,
		Password: cfg.Password,
		Database: *dbName,
		Timeout:  cfg.ConnectTimeout,
	}

	if *initSchema {
		fmt.Println("Applying schema migrations...")
		if err := migrate.Up(ctx, migrateDSN(params)); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: migrations failed: %v\n", err)
			return 1
		}
		fmt.Println("✓ Schema ready")
		fmt.Println()
	}

	// Opened eagerly so a bad path cannot strand a committed reset
	// without its audit line.
	recorder, err := audit.Open(*auditPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	defer func() { _ = recorder.Close() }()

	term := cli.NewTerminal(os.Stdin, os.Stdout)

	fmt.Printf("Connecting to database: %s@%s/%s\n", params.User, params.Addr(), params.Database)
	neg := service.NewNegotiator(params, defaultDatabase, postgres.Connect, term, os.Stdout, logger)
	db, err := neg.Negotiate(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrAborted) {
			fmt.Println("\nAborted by user.")
			return 0
		}
		fmt.Fprintf(os.Stderr, "\nFailed to connect: %v\n", err)
		return 1
	}
	defer db.Close()
	fmt.Println("✓ Database connection established")
	fmt.Println()

	workflow := service.NewResetWorkflow(
		postgres.NewAccountRepo(db),
		crypto.NewHasher(crypto.DefaultCost),
		recorder,
		term,
		os.Stdout,
		logger,
		cfg.MinPasswordLen,
	)

	outcome, err := workflow.Run(ctx)
	switch outcome {
	case service.OutcomeDone:
		if workflow.AuditRecorded() {
			fmt.Printf("  Change logged to %s\n", *auditPath)
		}
		return 0
	case service.OutcomeUserAbort:
		return 0
	default:
		fmt.Fprintf(os.Stderr, "\n✗ Password reset failed: %v\n", err)
		return 1
	}
}

// validatePort rejects values the uint16 wire field would silently
// truncate.
func validatePort(p uint) error {
	if p == 0 || p > math.MaxUint16 {
		return fmt.Errorf("invalid port %d (must be 1-65535)", p)
	}
	return nil
}

// migrateDSN renders the connect params as a URL DSN for goose/database-sql.
func migrateDSN(p postgres.ConnectParams) string {
	password := p.Password
	if password == "" {
		password = p.User
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, password),
		Host:   p.Addr(),
		Path:   "/" + p.Database,
	}
	return u.String()
}
