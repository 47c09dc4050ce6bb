// Package service contains the interactive reset workflow and the
// store connection negotiator.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/2revoemag/psforever-password-reset/internal/errs"
	"github.com/2revoemag/psforever-password-reset/internal/model"
	"github.com/2revoemag/psforever-password-reset/internal/repository"
)

// Prompter collects operator input. Implemented by cli.Terminal; tests
// use scripted fakes.
type Prompter interface {
	// Line reads one echoed line.
	Line(prompt string) (string, error)
	// Secret reads one line without echo.
	Secret(prompt string) (string, error)
	// Confirm asks a yes/no question with the given default.
	Confirm(prompt string, defaultYes bool) (bool, error)
}

// Hasher derives the two credential hashes. Implemented by crypto.Hasher.
type Hasher interface {
	LauncherHash(username, password string) ([]byte, error)
	ClientHash(password string) ([]byte, error)
}

// Auditor records completed resets. Implemented by audit.Recorder.
type Auditor interface {
	Record(accountID int64, username string) error
}

// State is the workflow position. Transitions only move forward, except
// AccountResolution and CredentialEntry which may repeat in place.
type State int

const (
	StateIdle State = iota
	StateAccountResolution
	StateCredentialEntry
	StateConfirmation
	StateCommitting
	StateDone
	StateAborted
)

// Outcome is the terminal result of a workflow run, mapped to a process
// exit code by the caller.
type Outcome int

const (
	// OutcomeDone means the reset committed (exit 0).
	OutcomeDone Outcome = iota
	// OutcomeUserAbort means the operator declined to proceed (exit 0).
	OutcomeUserAbort
	// OutcomeFailure means the run failed (exit 1).
	OutcomeFailure
)

// confirmAttempts bounds the confirm-password retry budget.
const confirmAttempts = 3

// ResetWorkflow drives one credential reset from account resolution
// through the committed two-field update. A workflow instance is used
// for exactly one run.
type ResetWorkflow struct {
	accounts repository.AccountRepository
	hasher   Hasher
	auditor  Auditor
	prompt   Prompter
	out      io.Writer
	log      *zap.Logger

	minPasswordLen int

	state State
	acct  *model.Account
	// password is the candidate plaintext. Never persisted, never logged.
	password      string
	confirmMisses int
	auditRecorded bool
}

// NewResetWorkflow wires a workflow. out receives the operator-facing
// text; log receives operational records only.
func NewResetWorkflow(
	accounts repository.AccountRepository,
	hasher Hasher,
	auditor Auditor,
	prompt Prompter,
	out io.Writer,
	log *zap.Logger,
	minPasswordLen int,
) *ResetWorkflow {
	return &ResetWorkflow{
		accounts:       accounts,
		hasher:         hasher,
		auditor:        auditor,
		prompt:         prompt,
		out:            out,
		log:            log,
		minPasswordLen: minPasswordLen,
		state:          StateIdle,
	}
}

// State reports the current workflow state.
func (w *ResetWorkflow) State() State { return w.state }

// AuditRecorded reports whether the audit line for a completed reset was
// actually written. False either before Done or when the best-effort
// append failed after the commit.
func (w *ResetWorkflow) AuditRecorded() bool { return w.auditRecorded }

// Run executes the workflow to a terminal state. A nil error accompanies
// OutcomeDone and OutcomeUserAbort; OutcomeFailure always carries the
// cause.
func (w *ResetWorkflow) Run(ctx context.Context) (Outcome, error) {
	w.state = StateAccountResolution
	for {
		// An interrupt before the commit aborts with no side effects.
		// The commit step manages cancellation itself.
		if w.state != StateCommitting && ctx.Err() != nil {
			w.state = StateAborted
			fmt.Fprintln(w.out, "\nAborted by user.")
			return OutcomeUserAbort, nil
		}

		var err error
		switch w.state {
		case StateAccountResolution:
			err = w.resolveAccount(ctx)
		case StateCredentialEntry:
			err = w.enterCredential()
		case StateConfirmation:
			err = w.confirmCredential()
		case StateCommitting:
			err = w.commit(ctx)
		case StateDone:
			return OutcomeDone, nil
		default:
			return OutcomeFailure, fmt.Errorf("workflow in unexpected state %d", w.state)
		}

		if err != nil {
			w.state = StateAborted
			if errors.Is(err, errs.ErrAborted) {
				fmt.Fprintln(w.out, "Aborted.")
				return OutcomeUserAbort, nil
			}
			return OutcomeFailure, err
		}
	}
}

// resolveAccount asks for a username and looks it up. Stays in state on
// empty input or (with operator consent) on a miss; an inactive account
// requires an explicit yes before advancing.
func (w *ResetWorkflow) resolveAccount(ctx context.Context) error {
	name, err := w.prompt.Line("Username to reset: ")
	if err != nil {
		return fmt.Errorf("read username: %w", err)
	}
	if name == "" {
		fmt.Fprintln(w.out, "Username cannot be empty.")
		return nil
	}

	acct, err := w.accounts.FindByUsername(ctx, name)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		fmt.Fprintf(w.out, "✗ Account '%s' not found.\n", name)
		retry, perr := w.prompt.Confirm("Try another username?", true)
		if perr != nil {
			return fmt.Errorf("read answer: %w", perr)
		}
		if !retry {
			return errs.ErrAborted
		}
		return nil
	case err != nil:
		return fmt.Errorf("account lookup: %w", err)
	}

	status := "ACTIVE"
	if acct.Inactive {
		status = "INACTIVE"
	}
	fmt.Fprintf(w.out, "✓ Found account: %s (ID: %d)\n", acct.Username, acct.ID)
	fmt.Fprintf(w.out, "  Status: %s\n\n", status)

	if acct.Inactive {
		fmt.Fprintf(w.out, "WARNING: Account '%s' is marked INACTIVE\n", acct.Username)
		fmt.Fprintln(w.out, "The password will be reset but the account remains inactive.")
		cont, perr := w.prompt.Confirm("Continue?", false)
		if perr != nil {
			return fmt.Errorf("read answer: %w", perr)
		}
		if !cont {
			return errs.ErrAborted
		}
	}

	w.acct = acct
	w.state = StateCredentialEntry
	return nil
}

// enterCredential reads the candidate password. Too-short entries
// re-prompt in place and do not consume confirmation attempts.
func (w *ResetWorkflow) enterCredential() error {
	pw, err := w.prompt.Secret("New password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if len(pw) < w.minPasswordLen {
		fmt.Fprintf(w.out, "Password must be at least %d characters. Please try again.\n", w.minPasswordLen)
		return nil
	}
	w.password = pw
	w.confirmMisses = 0
	w.state = StateConfirmation
	return nil
}

// confirmCredential reads the confirmation entry and, on a match, shows
// the non-mutating summary and asks for the final go-ahead.
func (w *ResetWorkflow) confirmCredential() error {
	confirm, err := w.prompt.Secret("Confirm password: ")
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if confirm != w.password {
		w.confirmMisses++
		remaining := confirmAttempts - w.confirmMisses
		if remaining <= 0 {
			fmt.Fprintln(w.out, "Passwords do not match.")
			return errors.New("password confirmation failed: too many mismatches")
		}
		fmt.Fprintf(w.out, "Passwords do not match. %d attempt(s) remaining.\n", remaining)
		return nil
	}

	status := "ACTIVE"
	if w.acct.Inactive {
		status = "INACTIVE"
	}
	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, strings.Repeat("-", 60))
	fmt.Fprintln(w.out, "This will reset the password for:")
	fmt.Fprintf(w.out, "  Account ID: %d\n", w.acct.ID)
	fmt.Fprintf(w.out, "  Username: %s (exact case)\n", w.acct.Username)
	fmt.Fprintf(w.out, "  Status: %s\n", status)
	fmt.Fprintln(w.out, strings.Repeat("-", 60))

	proceed, err := w.prompt.Confirm("Confirm password reset?", true)
	if err != nil {
		return fmt.Errorf("read answer: %w", err)
	}
	if !proceed {
		return errs.ErrAborted
	}
	w.state = StateCommitting
	return nil
}

// commit derives both hashes and performs the atomic two-field update.
// A late interrupt must not tear down the in-flight write, so the store
// call runs detached from the run context. The audit record is
// best-effort once the commit succeeded.
func (w *ResetWorkflow) commit(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Generating password hashes...")
	launcherHash, err := w.hasher.LauncherHash(w.acct.Username, w.password)
	if err != nil {
		return fmt.Errorf("derive launcher hash: %w", err)
	}
	clientHash, err := w.hasher.ClientHash(w.password)
	if err != nil {
		return fmt.Errorf("derive client hash: %w", err)
	}

	fmt.Fprintln(w.out, "Updating database...")
	if err := w.accounts.UpdateCredentials(ctx, w.acct.ID, string(launcherHash), string(clientHash)); err != nil {
		return fmt.Errorf("database update failed (no changes were made): %w", err)
	}

	fmt.Fprintf(w.out, "\n✓ Password successfully reset for '%s' (ID: %d)\n", w.acct.Username, w.acct.ID)
	w.log.Info("password reset committed",
		zap.Int64("account_id", w.acct.ID),
		zap.String("username", w.acct.Username),
	)

	if err := w.auditor.Record(w.acct.ID, w.acct.Username); err == nil {
		w.auditRecorded = true
	} else {
		// The commit already happened; a lost audit line must not turn a
		// successful reset into a failure.
		fmt.Fprintf(w.out, "WARNING: could not write audit record: %v\n", err)
		w.log.Warn("audit record not written",
			zap.Int64("account_id", w.acct.ID),
			zap.String("username", w.acct.Username),
			zap.Error(err),
		)
	}

	w.state = StateDone
	return nil
}
