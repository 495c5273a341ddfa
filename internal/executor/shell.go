package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Output is what a command left behind on the target.
type Output struct {
	Stdout string
	Stderr string
	RC     int
}

// Shell runs a command line on a target host.
type Shell interface {
	// Run executes command, feeding it stdin when non-nil. A non-zero exit
	// status is reported through Output.RC; the error is reserved for
	// failures to run the command at all.
	Run(ctx context.Context, command string, stdin io.Reader) (Output, error)
}

// LocalShell runs commands on this host through /bin/sh.
type LocalShell struct{}

// NewLocalShell creates a LocalShell.
func NewLocalShell() *LocalShell {
	return &LocalShell{}
}

// Run executes command with sh -c.
func (LocalShell) Run(ctx context.Context, command string, stdin io.Reader) (Output, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ctx.Err() != nil {
			return out, fmt.Errorf("command cancelled: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return out, fmt.Errorf("failed to run command: %w", err)
		}
		out.RC = exitErr.ExitCode()
	}
	return out, nil
}

// Quote quotes s for a POSIX shell.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("@%+=:,./_-", r)
}
