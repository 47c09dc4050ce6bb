// Package audit appends one human-readable record per successful reset.
//
// The line format is a compatibility contract with the original tooling
// and its log parsers. Records never contain plaintext credentials or
// hash values; that is a security invariant, not a formatting choice.
package audit

import (
	"fmt"
	"io"
	"os"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// now is a test seam for time.Now.
var now = time.Now

// Recorder writes append-only reset records.
type Recorder struct {
	w io.Writer
	c io.Closer
}

// NewRecorder writes records to w. Used directly in tests.
func NewRecorder(w io.Writer) *Recorder { return &Recorder{w: w} }

// Open opens (or creates) the audit file at path in append mode.
func Open(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &Recorder{w: f, c: f}, nil
}

// Record appends one line for a completed reset of the given account.
func (r *Recorder) Record(accountID int64, username string) error {
	_, err := fmt.Fprintf(r.w, "%s - Password reset for account ID: %d, username: %s\n",
		now().Format(timeLayout), accountID, username)
	return err
}

// Close closes the underlying file, if any.
func (r *Recorder) Close() error {
	if r.c == nil {
		return nil
	}
	return r.c.Close()
}
