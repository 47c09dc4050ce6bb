package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/2revoemag/psforever-password-reset/internal/errs"
	"github.com/2revoemag/psforever-password-reset/internal/model"
	"github.com/2revoemag/psforever-password-reset/internal/repository"
)

// fakePrompter replays scripted answers; running out of script is an error
// so a test fails loudly instead of hanging.
type fakePrompter struct {
	lines    []string
	secrets  []string
	confirms []bool
}

func (f *fakePrompter) Line(string) (string, error) {
	if len(f.lines) == 0 {
		return "", errors.New("fakePrompter: no scripted line")
	}
	v := f.lines[0]
	f.lines = f.lines[1:]
	return v, nil
}

func (f *fakePrompter) Secret(string) (string, error) {
	if len(f.secrets) == 0 {
		return "", errors.New("fakePrompter: no scripted secret")
	}
	v := f.secrets[0]
	f.secrets = f.secrets[1:]
	return v, nil
}

func (f *fakePrompter) Confirm(string, bool) (bool, error) {
	if len(f.confirms) == 0 {
		return false, errors.New("fakePrompter: no scripted confirm")
	}
	v := f.confirms[0]
	f.confirms = f.confirms[1:]
	return v, nil
}

type updateCall struct {
	id                       int64
	launcherHash, clientHash string
}

type fakeAccounts struct {
	acct      *model.Account
	findErr   error
	updateErr error
	updates   []updateCall
}

var _ repository.AccountRepository = (*fakeAccounts)(nil)

func (f *fakeAccounts) FindByUsername(_ context.Context, username string) (*model.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	c := *f.acct
	return &c, nil
}

func (f *fakeAccounts) UpdateCredentials(_ context.Context, id int64, launcherHash, clientHash string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, updateCall{id: id, launcherHash: launcherHash, clientHash: clientHash})
	return nil
}

// fakeHasher records the exact inputs so tests can assert the stored
// exact-case username reaches the launcher derivation.
type fakeHasher struct {
	launcherUser, launcherPw string
	clientPw                 string
}

func (f *fakeHasher) LauncherHash(username, password string) ([]byte, error) {
	f.launcherUser, f.launcherPw = username, password
	return []byte("launcher:" + username), nil
}

func (f *fakeHasher) ClientHash(password string) ([]byte, error) {
	f.clientPw = password
	return []byte("client-hash"), nil
}

type auditCall struct {
	id       int64
	username string
}

type fakeAuditor struct {
	calls []auditCall
	err   error
}

func (f *fakeAuditor) Record(id int64, username string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, auditCall{id: id, username: username})
	return nil
}

func newWorkflow(accounts *fakeAccounts, hasher *fakeHasher, auditor *fakeAuditor, prompt *fakePrompter, out *bytes.Buffer) *ResetWorkflow {
	return NewResetWorkflow(accounts, hasher, auditor, prompt, out, zap.NewNop(), 6)
}

func TestResetWorkflow_HappyPath(t *testing.T) {
	accounts := &fakeAccounts{acct: &model.Account{ID: 42, Username: "TestUser", Inactive: false}}
	hasher := &fakeHasher{}
	auditor := &fakeAuditor{}
	prompt := &fakePrompter{
		lines:    []string{"testuser"},           // operator types the wrong case
		secrets:  []string{"abc123", "abc123"},   // entry + confirmation
		confirms: []bool{true},                   // final summary confirm
	}
	var out bytes.Buffer

	w := newWorkflow(accounts, hasher, auditor, prompt, &out)
	outcome, err := w.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, OutcomeDone, outcome)
	require.Equal(t, StateDone, w.State())

	// Exactly one atomic two-field update against the resolved row.
	require.Len(t, accounts.updates, 1)
	require.Equal(t, int64(42), accounts.updates[0].id)
	require.Equal(t, "launcher:TestUser", accounts.updates[0].launcherHash)
	require.Equal(t, "client-hash", accounts.updates[0].clientHash)

	// The launcher derivation saw the stored exact-case username, not
	// what the operator typed.
	require.Equal(t, "TestUser", hasher.launcherUser)
	require.Equal(t, "abc123", hasher.launcherPw)

	require.Equal(t, []auditCall{{id: 42, username: "TestUser"}}, auditor.calls)
	require.True(t, w.AuditRecorded())

	require.Contains(t, out.String(), "Account ID: 42")
	require.Contains(t, out.String(), "TestUser (exact case)")
	require.NotContains(t, out.String(), "abc123")
}

func TestResetWorkflow_ThreeMismatchesAbort(t *testing.T) {
	accounts := &fakeAccounts{acct: &model.Account{ID: 42, Username: "TestUser"}}
	prompt := &fakePrompter{
		lines:   []string{"TestUser"},
		secrets: []string{"abc123", "abc124", "abc125", "abc126"},
	}
	var out bytes.Buffer

	w := newWorkflow(accounts, &fakeHasher{}, &fakeAuditor{}, prompt, &out)
	outcome, err := w.Run(context.Background())

	require.Equal(t, OutcomeFailure, outcome)
	require.ErrorContains(t, err, "too many mismatches")
	require.Equal(t, StateAborted, w.State())
	require.Empty(t, accounts.updates)
	require.Contains(t, out.String(), "2 attempt(s) remaining")
	require.Contains(t, out.String(), "1 attempt(s) remaining")
}

func TestResetWorkflow_ShortPasswordReprompts(t *testing.T) {
	accounts := &fakeAccounts{acct: &model.Account{ID: 42, Username: "TestUser"}}
	prompt := &fakePrompter{
		lines:    []string{"TestUser"},
		secrets:  []string{"short", "longer1", "longer1"},
		confirms: []bool{true},
	}
	var out bytes.Buffer

	w := newWorkflow(accounts, &fakeHasher{}, &fakeAuditor{}, prompt, &out)
	outcome, err := w.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, OutcomeDone, outcome)
	require.Len(t, accounts.updates, 1)
	require.Contains(t, out.String(), "at least 6 characters")
}

func TestResetWorkflow_NotFoundRetryThenSuccess(t *testing.T) {
	accounts := &fakeAccounts{acct: &model.Account{ID: 7, Username: "Alpha"}}
	prompt := &fakePrompter{
		lines:    []string{"nope", "alpha"},
		secrets:  []string{"longer1", "longer1"},
		confirms: []bool{true, true}, // retry, final confirm
	}
	var out bytes.Buffer

	w := NewResetWorkflow(&missOnce{inner: accounts}, &fakeHasher{}, &fakeAuditor{}, prompt, &out, zap.NewNop(), 6)
	outcome, err := w.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, OutcomeDone, outcome)
	require.Len(t, accounts.updates, 1)
	require.Contains(t, out.String(), "✗ Account 'nope' not found.")
}

// missOnce returns ErrNotFound on the first lookup, then delegates.
type missOnce struct {
	inner  *fakeAccounts
	called bool
}

func (m *missOnce) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	if !m.called {
		m.called = true
		return nil, errs.ErrNotFound
	}
	return m.inner.FindByUsername(ctx, username)
}

func (m *missOnce) UpdateCredentials(ctx context.Context, id int64, a, b string) error {
	return m.inner.UpdateCredentials(ctx, id, a, b)
}

func TestResetWorkflow_NotFoundDeclineRetryAborts(t *testing.T) {
	accounts := &fakeAccounts{findErr: errs.ErrNotFound, acct: &model.Account{}}
	prompt := &fakePrompter{
		lines:    []string{"nope"},
		confirms: []bool{false},
	}
	var out bytes.Buffer

	w := newWorkflow(accounts, &fakeHasher{}, &fakeAuditor{}, prompt, &out)
	outcome, err := w.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, OutcomeUserAbort, outcome)
	require.Empty(t, accounts.updates)
}

func TestResetWorkflow_InactiveRequiresExplicitYes(t *testing.T) {
	accounts := &fakeAccounts{acct: &model.Account{ID: 9, Username: "Dormant", Inactive: true}}

	t.Run("declined", func(t *testing.T) {
		prompt := &fakePrompter{
			lines:    []string{"dormant"},
			confirms: []bool{false},
		}
		var out bytes.Buffer
		w := newWorkflow(accounts, &fakeHasher{}, &fakeAuditor{}, prompt, &out)
		outcome, err := w.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, OutcomeUserAbort, outcome)
		require.Empty(t, accounts.updates)
		require.Contains(t, out.String(), "INACTIVE")
	})

	t.Run("accepted", func(t *testing.T) {
		prompt := &fakePrompter{
			lines:    []string{"dormant"},
			secrets:  []string{"longer1", "longer1"},
			confirms: []bool{true, true}, // inactive warning, final confirm
		}
		var out bytes.Buffer
		w := newWorkflow(accounts, &fakeHasher{}, &fakeAuditor{}, prompt, &out)
		outcome, err := w.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, OutcomeDone, outcome)
		require.Len(t, accounts.updates, 1)
	})
}

func TestResetWorkflow_SummaryDeclineAborts(t *testing.T) {
	accounts := &fakeAccounts{acct: &model.Account{ID: 42, Username: "TestUser"}}
	prompt := &fakePrompter{
		lines:    []string{"TestUser"},
		secrets:  []string{"longer1", "longer1"},
		confirms: []bool{false},
	}
	var out bytes.Buffer

	w := newWorkflow(accounts, &fakeHasher{}, &fakeAuditor{}, prompt, &out)
	outcome, err := w.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, OutcomeUserAbort, outcome)
	require.Empty(t, accounts.updates)
}

func TestResetWorkflow_UpdateFailureIsFatal(t *testing.T) {
	boom := errors.New("connection lost")
	accounts := &fakeAccounts{
		acct:      &model.Account{ID: 42, Username: "TestUser"},
		updateErr: boom,
	}
	auditor := &fakeAuditor{}
	prompt := &fakePrompter{
		lines:    []string{"TestUser"},
		secrets:  []string{"longer1", "longer1"},
		confirms: []bool{true},
	}
	var out bytes.Buffer

	w := newWorkflow(accounts, &fakeHasher{}, auditor, prompt, &out)
	outcome, err := w.Run(context.Background())

	require.Equal(t, OutcomeFailure, outcome)
	require.ErrorIs(t, err, boom)
	require.Empty(t, auditor.calls)
}

func TestResetWorkflow_AuditFailureStillDone(t *testing.T) {
	accounts := &fakeAccounts{acct: &model.Account{ID: 42, Username: "TestUser"}}
	auditor := &fakeAuditor{err: fmt.Errorf("read-only filesystem")}
	prompt := &fakePrompter{
		lines:    []string{"TestUser"},
		secrets:  []string{"longer1", "longer1"},
		confirms: []bool{true},
	}
	var out bytes.Buffer

	w := newWorkflow(accounts, &fakeHasher{}, auditor, prompt, &out)
	outcome, err := w.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, OutcomeDone, outcome)
	require.Len(t, accounts.updates, 1)
	require.False(t, w.AuditRecorded())
	require.Contains(t, out.String(), "WARNING: could not write audit record")
}

func TestResetWorkflow_CanceledContextAbortsWithoutSideEffects(t *testing.T) {
	accounts := &fakeAccounts{acct: &model.Account{ID: 42, Username: "TestUser"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	w := newWorkflow(accounts, &fakeHasher{}, &fakeAuditor{}, &fakePrompter{}, &out)
	outcome, err := w.Run(ctx)

	require.NoError(t, err)
	require.Equal(t, OutcomeUserAbort, outcome)
	require.Empty(t, accounts.updates)
	require.Contains(t, out.String(), "Aborted by user.")
}

func TestResetWorkflow_DataIntegrityIsFatal(t *testing.T) {
	accounts := &fakeAccounts{findErr: fmt.Errorf("duplicate rows: %w", errs.ErrDataIntegrity), acct: &model.Account{}}
	prompt := &fakePrompter{lines: []string{"TestUser"}}
	var out bytes.Buffer

	w := newWorkflow(accounts, &fakeHasher{}, &fakeAuditor{}, prompt, &out)
	outcome, err := w.Run(context.Background())

	require.Equal(t, OutcomeFailure, outcome)
	require.ErrorIs(t, err, errs.ErrDataIntegrity)
}
