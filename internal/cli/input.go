// Package cli implements terminal prompting for the interactive reset flow.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword and isTerminal are test seams for the x/term calls.
// In tests you can replace them with stubs to avoid touching the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// Terminal prompts an operator over an input reader and output writer.
// It satisfies service.Prompter.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal wraps the given streams. Pass os.Stdin/os.Stdout for real use.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// Line prints prompt and reads a single line of input. The line is
// whitespace-trimmed. If EOF occurs after some input was read, the
// partial line is returned.
func (t *Terminal) Line(prompt string) (string, error) {
	if _, err := fmt.Fprint(t.out, prompt); err != nil {
		return "", err
	}
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Secret prints prompt and reads a line from the terminal without echo.
// A newline is printed after the read to keep the output tidy. When
// stdin is not a terminal (piped input), it falls back to reading a
// line from the input reader; only the trailing newline is stripped so
// passwords keep interior and leading whitespace.
func (t *Terminal) Secret(prompt string) (string, error) {
	if _, err := fmt.Fprint(t.out, prompt); err != nil {
		return "", err
	}
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		line, err := t.in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			return "", err
		}
		fmt.Fprintln(t.out)
		return strings.TrimRight(line, "\r\n"), nil
	}
	pw, err := readPassword(fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// Confirm asks a yes/no question. An empty answer takes the default;
// otherwise the first letter decides, and unrecognized input also falls
// back to the default.
func (t *Terminal) Confirm(prompt string, defaultYes bool) (bool, error) {
	suffix := " [y/N]: "
	if defaultYes {
		suffix = " [Y/n]: "
	}
	answer, err := t.Line(prompt + suffix)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	switch {
	case answer == "":
		return defaultYes, nil
	case strings.HasPrefix(answer, "y"):
		return true, nil
	case strings.HasPrefix(answer, "n"):
		return false, nil
	default:
		return defaultYes, nil
	}
}
