package executor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/osdeploy/internal/fsops"
	"github.com/danieljhkim/osdeploy/internal/hash"
	"github.com/danieljhkim/osdeploy/internal/planner"
	"github.com/danieljhkim/osdeploy/internal/result"
)

type call struct {
	command string
	stdin   string
}

// fakeShell records commands and replies with canned outputs in order.
type fakeShell struct {
	calls   []call
	outputs []Output
	err     error
}

func (f *fakeShell) Run(_ context.Context, command string, stdin io.Reader) (Output, error) {
	c := call{command: command}
	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		c.stdin = string(b)
	}
	f.calls = append(f.calls, c)
	if f.err != nil {
		return Output{}, f.err
	}
	if len(f.outputs) == 0 {
		return Output{}, nil
	}
	out := f.outputs[0]
	f.outputs = f.outputs[1:]
	return out, nil
}

func newTestYum(shell Shell, sudo bool) *Yum {
	return NewYum(shell, fsops.NewRealFS(), Options{Sudo: sudo}, logr.Discard())
}

func testRepo() planner.Repository {
	return planner.Repository{
		Name:        "rhels7.9-repo-0",
		Description: "rhels7.9-repo-0",
		BaseURL:     "http://10.0.0.1/install/rhels7.9/x86_64",
		Enabled:     true,
	}
}

func TestConfigureRepository(t *testing.T) {
	shell := &fakeShell{outputs: []Output{{Stdout: "changed\n"}}}

	res, err := newTestYum(shell, false).ConfigureRepository(context.Background(), testRepo())
	require.NoError(t, err)

	require.Len(t, shell.calls, 1)
	assert.Contains(t, shell.calls[0].command, "/etc/yum.repos.d/rhels7.9-repo-0.repo")
	assert.NotContains(t, shell.calls[0].command, "sudo")
	assert.Equal(t, RepoFile(testRepo()), shell.calls[0].stdin)

	assert.Equal(t, true, value(res, "changed"))
	assert.Equal(t, "http://10.0.0.1/install/rhels7.9/x86_64", value(res, "repos", "rhels7.9-repo-0", "baseurl"))
	assert.Equal(t, false, value(res, "repos", "rhels7.9-repo-0", "gpgcheck"))
}

func TestConfigureRepository_Unchanged(t *testing.T) {
	shell := &fakeShell{outputs: []Output{{Stdout: "unchanged\n"}}}

	res, err := newTestYum(shell, true).ConfigureRepository(context.Background(), testRepo())
	require.NoError(t, err)

	assert.Equal(t, false, value(res, "changed"))
	assert.Contains(t, shell.calls[0].command, "sudo -n sh -c ")
}

func TestConfigureRepository_InvalidName(t *testing.T) {
	shell := &fakeShell{}
	repo := testRepo()
	repo.Name = "../etc/passwd"

	_, err := newTestYum(shell, false).ConfigureRepository(context.Background(), repo)
	require.Error(t, err)
	assert.Empty(t, shell.calls)
}

func TestRepoFile(t *testing.T) {
	repo := testRepo()
	repo.VerifySignature = true

	want := "[rhels7.9-repo-0]\n" +
		"name=rhels7.9-repo-0\n" +
		"baseurl=http://10.0.0.1/install/rhels7.9/x86_64\n" +
		"enabled=1\n" +
		"gpgcheck=1\n"
	assert.Equal(t, want, RepoFile(repo))
}

func TestInstallPackages(t *testing.T) {
	shell := &fakeShell{outputs: []Output{{Stdout: "Complete!\n"}}}

	res, err := newTestYum(shell, true).InstallPackages(context.Background(),
		[]string{"bash", "@Development Tools", "openssh-server"})
	require.NoError(t, err)

	require.Len(t, shell.calls, 1)
	assert.Equal(t, "sudo -n yum -y install bash '@Development Tools' openssh-server", shell.calls[0].command)
	assert.Equal(t, true, value(res, "changed"))
	assert.Equal(t, "present", value(res, "packages", "@Development Tools"))
}

func TestInstallPackages_NothingToDo(t *testing.T) {
	shell := &fakeShell{outputs: []Output{{Stdout: "Package bash already installed\nNothing to do\n"}}}

	res, err := newTestYum(shell, false).InstallPackages(context.Background(), []string{"bash"})
	require.NoError(t, err)
	assert.Equal(t, false, value(res, "changed"))
}

func TestInstallPackages_Empty(t *testing.T) {
	shell := &fakeShell{}

	res, err := newTestYum(shell, false).InstallPackages(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, shell.calls)
	assert.Equal(t, false, value(res, "changed"))
}

func TestInstallPackages_Failure(t *testing.T) {
	shell := &fakeShell{outputs: []Output{{RC: 1, Stderr: "No package nosuchpkg available.\n"}}}

	_, err := newTestYum(shell, false).InstallPackages(context.Background(), []string{"nosuchpkg"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandFailed)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 1, cmdErr.Output.RC)
	assert.Contains(t, err.Error(), "No package nosuchpkg available.")
}

func TestRunScript(t *testing.T) {
	script := filepath.Join(t.TempDir(), "setup.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho hello\n"), 0755))

	shell := &fakeShell{outputs: []Output{{Stdout: "hello\n"}}}

	res, err := newTestYum(shell, false).RunScript(context.Background(), script)
	require.NoError(t, err)

	require.Len(t, shell.calls, 1)
	assert.Equal(t, "sh -s", shell.calls[0].command)
	assert.Equal(t, "#!/bin/sh\necho hello\n", shell.calls[0].stdin)
	assert.Equal(t, "hello\n", value(res, "stdout"))
	assert.Equal(t, 0, value(res, "scripts", script, "rc"))
	assert.Equal(t, hash.Sum([]byte("#!/bin/sh\necho hello\n")), value(res, "scripts", script, "sha256"))
}

func TestRunScript_MissingFile(t *testing.T) {
	shell := &fakeShell{}

	_, err := newTestYum(shell, false).RunScript(context.Background(), filepath.Join(t.TempDir(), "missing.sh"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, shell.calls)
}

func TestRunScript_ShellError(t *testing.T) {
	script := filepath.Join(t.TempDir(), "setup.sh")
	require.NoError(t, os.WriteFile(script, []byte("true\n"), 0755))

	cause := errors.New("connection reset")
	_, err := newTestYum(&fakeShell{err: cause}, false).RunScript(context.Background(), script)
	assert.ErrorIs(t, err, cause)
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"bash", "bash"},
		{"/etc/yum.repos.d/a.repo", "/etc/yum.repos.d/a.repo"},
		{"@Development Tools", "'@Development Tools'"},
		{"it's", `'it'"'"'s'`},
		{"$(reboot)", "'$(reboot)'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.in), "Quote(%q)", tt.in)
	}
}

func TestLocalShell(t *testing.T) {
	sh := NewLocalShell()

	out, err := sh.Run(context.Background(), "cat; echo err >&2; exit 3", strings.NewReader("in"))
	require.NoError(t, err)
	assert.Equal(t, "in", out.Stdout)
	assert.Equal(t, "err\n", out.Stderr)
	assert.Equal(t, 3, out.RC)
}

func TestLocalShell_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalShell().Run(ctx, "sleep 5", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func value(res result.Result, path ...string) any {
	v, _ := res.Get(path...)
	return v
}
