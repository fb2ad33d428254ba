// Package extproc runs external commands with a bounded timeout and captured
// stderr, surfacing failures as typed errors instead of raw exec errors.
package extproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Error describes a failed external command invocation.
type Error struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: exit %d: %s", e.Command, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Run executes the command line with the given timeout and returns its stdout.
// The command line is split on whitespace; the first field is the binary.
func Run(ctx context.Context, timeout time.Duration, commandLine string, extraArgs ...string) ([]byte, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, &Error{Command: commandLine, Err: errors.New("empty command")}
	}
	args := append(fields[1:], extraArgs...)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, fields[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return nil, &Error{
			Command:  fields[0],
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}

	return stdout.Bytes(), nil
}
