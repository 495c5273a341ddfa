// Package executor implements the execution facade of a deployment.
//
// Yum turns the three delegated operations into shell commands for a
// RHEL/CentOS target and runs them through a Shell: a yum .repo file per
// repository, a "yum install" per package set, and the local script streamed
// to "sh -s" on the target. Each operation returns a result.Result that the
// engine folds into the deployment result.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/go-logr/logr"

	"github.com/danieljhkim/osdeploy/internal/fsops"
	"github.com/danieljhkim/osdeploy/internal/hash"
	"github.com/danieljhkim/osdeploy/internal/planner"
	"github.com/danieljhkim/osdeploy/internal/result"
)

// RepoDir is where yum reads repository definitions from.
const RepoDir = "/etc/yum.repos.d"

// ErrCommandFailed indicates a command exited with a non-zero status.
var ErrCommandFailed = errors.New("command failed")

// CommandError carries the output of a failed command.
type CommandError struct {
	Command string
	Output  Output
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Output.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Output.Stdout)
	}
	return fmt.Sprintf("%s: %q exited with status %d: %s", ErrCommandFailed, e.Command, e.Output.RC, msg)
}

func (e *CommandError) Unwrap() error { return ErrCommandFailed }

// Options configures a Yum executor.
type Options struct {
	// Sudo runs every command through "sudo -n" on the target.
	Sudo bool
}

// Yum executes deployment operations on a yum based target.
type Yum struct {
	shell Shell
	fs    fsops.FS
	opts  Options
	log   logr.Logger
}

// NewYum creates a Yum executor running commands through shell. Scripts are
// read from fs.
func NewYum(shell Shell, fs fsops.FS, opts Options, log logr.Logger) *Yum {
	return &Yum{shell: shell, fs: fs, opts: opts, log: log}
}

// ConfigureRepository writes the .repo file of repo on the target.
// The file is only replaced when its content differs.
func (y *Yum) ConfigureRepository(ctx context.Context, repo planner.Repository) (result.Result, error) {
	if err := y.fs.ValidateIdentifier(repo.Name); err != nil {
		return nil, fmt.Errorf("invalid repository name: %w", err)
	}

	file := path.Join(RepoDir, repo.Name+".repo")
	script := fmt.Sprintf(
		`tmp=$(mktemp) && cat > "$tmp" && `+
			`if cmp -s "$tmp" %[1]s; then rm -f "$tmp"; echo unchanged; `+
			`else mkdir -p %[2]s && mv "$tmp" %[1]s && chmod 0644 %[1]s && echo changed; fi`,
		Quote(file), Quote(RepoDir))

	y.log.V(2).Info("configuring repository", "name", repo.Name, "baseurl", repo.BaseURL)

	out, err := y.run(ctx, y.wrap("sh -c "+Quote(script)), strings.NewReader(RepoFile(repo)))
	if err != nil {
		return nil, err
	}

	return result.Result{
		"changed": strings.TrimSpace(out.Stdout) == "changed",
		"repos": result.Result{
			repo.Name: result.Result{
				"description": repo.Description,
				"baseurl":     repo.BaseURL,
				"enabled":     repo.Enabled,
				"gpgcheck":    repo.VerifySignature,
				"file":        file,
				"state":       "present",
			},
		},
	}, nil
}

// InstallPackages installs names with one yum transaction.
func (y *Yum) InstallPackages(ctx context.Context, names []string) (result.Result, error) {
	if len(names) == 0 {
		return result.Result{"changed": false}, nil
	}

	args := make([]string, len(names))
	for i, n := range names {
		args[i] = Quote(n)
	}
	command := y.wrap("yum -y install " + strings.Join(args, " "))

	y.log.V(1).Info("installing packages", "count", len(names))

	out, err := y.run(ctx, command, nil)
	if err != nil {
		return nil, err
	}

	installed := result.Result{}
	for _, n := range names {
		installed[n] = "present"
	}

	return result.Result{
		"changed":  !strings.Contains(out.Stdout, "Nothing to do"),
		"rc":       out.RC,
		"packages": installed,
		"stdout":   out.Stdout,
	}, nil
}

// RunScript streams the local script at scriptPath to a shell on the target.
func (y *Yum) RunScript(ctx context.Context, scriptPath string) (result.Result, error) {
	body, err := y.fs.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", scriptPath, err)
	}

	y.log.V(2).Info("executing", "script", scriptPath)

	out, err := y.run(ctx, y.wrap("sh -s"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	return result.Result{
		"changed": true,
		"rc":      out.RC,
		"stdout":  out.Stdout,
		"stderr":  out.Stderr,
		"scripts": result.Result{
			scriptPath: result.Result{"rc": out.RC, "sha256": hash.Sum(body)},
		},
	}, nil
}

// RepoFile renders the yum .repo file content of repo.
func RepoFile(repo planner.Repository) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", repo.Name)
	fmt.Fprintf(&b, "name=%s\n", repo.Description)
	fmt.Fprintf(&b, "baseurl=%s\n", repo.BaseURL)
	fmt.Fprintf(&b, "enabled=%d\n", boolInt(repo.Enabled))
	fmt.Fprintf(&b, "gpgcheck=%d\n", boolInt(repo.VerifySignature))
	return b.String()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (y *Yum) wrap(command string) string {
	if y.opts.Sudo {
		return "sudo -n " + command
	}
	return command
}

// run executes command and turns a non-zero exit status into a CommandError.
func (y *Yum) run(ctx context.Context, command string, stdin io.Reader) (Output, error) {
	out, err := y.shell.Run(ctx, command, stdin)
	if err != nil {
		return out, err
	}
	if out.RC != 0 {
		return out, &CommandError{Command: command, Output: out}
	}
	return out, nil
}
