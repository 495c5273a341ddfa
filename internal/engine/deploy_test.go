package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/osdeploy/internal/clock"
	"github.com/danieljhkim/osdeploy/internal/fsops"
	"github.com/danieljhkim/osdeploy/internal/osimage"
	"github.com/danieljhkim/osdeploy/internal/pkglist"
	"github.com/danieljhkim/osdeploy/internal/planner"
	"github.com/danieljhkim/osdeploy/internal/result"
)

// fakeExecutor records every delegation and can fail the n-th one.
type fakeExecutor struct {
	calls  []string
	failAt int
	err    error
}

func (f *fakeExecutor) record(call string) error {
	f.calls = append(f.calls, call)
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return f.err
	}
	return nil
}

func (f *fakeExecutor) ConfigureRepository(_ context.Context, repo planner.Repository) (result.Result, error) {
	if err := f.record("repo:" + repo.Name + "=" + repo.BaseURL); err != nil {
		return nil, err
	}
	return result.Result{
		"changed": true,
		"repos":   result.Result{repo.Name: result.Result{"baseurl": repo.BaseURL}},
	}, nil
}

func (f *fakeExecutor) InstallPackages(_ context.Context, names []string) (result.Result, error) {
	if err := f.record("install:" + strings.Join(names, ",")); err != nil {
		return nil, err
	}
	installed := result.Result{}
	for _, n := range names {
		installed[n] = "present"
	}
	return result.Result{"changed": false, "packages": installed}, nil
}

func (f *fakeExecutor) RunScript(_ context.Context, path string) (result.Result, error) {
	if err := f.record("script:" + path); err != nil {
		return nil, err
	}
	return result.Result{
		"changed": true,
		"scripts": result.Result{path: result.Result{"rc": 0}},
	}, nil
}

// fixture is an inventory plus package lists laid out in a temp dir.
type fixture struct {
	dir       string
	inventory string
}

func writeFixtureFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	base := filepath.Join(dir, "lists", "compute.pkglist")
	common := filepath.Join(dir, "lists", "common.pkglist")
	other := filepath.Join(dir, "lists", "compute.otherpkgs.pkglist")

	writeFixtureFile(t, common, "bash\nopenssh-server\n")
	writeFixtureFile(t, base, "#INCLUDE:"+common+"#\n@ Base\nbash\nvim-minimal\n")
	writeFixtureFile(t, other, "xcat/xcat-core/xCATsn\nxcat/xcat-dep/rh7/x86_64/conserver-xcat\nganglia-gmond\n")

	inventory := filepath.Join(dir, "osimages.yaml")
	writeFixtureFile(t, inventory, fmt.Sprintf(`
rhels7.9-x86_64-install-compute:
  basic_attributes:
    osdistro: rhels7.9
    arch: x86_64
  imagetype: linux
  package_selection:
    pkgdir:
    - /install/rhels7.9/x86_64
    pkglist:
    - %s
    otherpkgdir:
    - /install/post/otherpkgs/rhels7.9/x86_64
    otherpkglist:
    - %s
  scripts:
    postscripts:
    - a
    - b
    postbootscripts:
    - b
    - c
ubuntu18.04-x86_64-install-compute:
  basic_attributes:
    osdistro: ubuntu18.04
  package_selection:
    pkgdir:
    - /install/ubuntu18.04/x86_64
  scripts:
    postscripts:
    - a
`, base, other))

	return &fixture{dir: dir, inventory: inventory}
}

func newTestEngine(exec Executor) *Engine {
	fs := fsops.NewRealFS()
	return New(
		osimage.NewLoader(fs, logr.Discard()),
		pkglist.NewResolver(fs, logr.Discard()),
		exec,
		nil,
		clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second),
		logr.Discard(),
	)
}

func (f *fixture) request() *DeployRequest {
	return &DeployRequest{
		Name:       "rhels7.9-x86_64-install-compute",
		Source:     f.inventory,
		RepoHost:   "10.0.0.1",
		ScriptRoot: "/install/postscripts",
	}
}

func TestDeploy(t *testing.T) {
	f := newFixture(t)
	exec := &fakeExecutor{}

	res, err := newTestEngine(exec).Deploy(context.Background(), f.request())
	require.NoError(t, err)

	want := []string{
		"repo:rhels7.9-repo-0=http://10.0.0.1/install/rhels7.9/x86_64",
		"repo:rhels7.9-repo-1=http://10.0.0.1/install/post/otherpkgs/rhels7.9/x86_64/xcat/xcat-core",
		"repo:rhels7.9-repo-2=http://10.0.0.1/install/post/otherpkgs/rhels7.9/x86_64/xcat/xcat-dep/rh7/x86_64",
		"install:bash,openssh-server,@Base,vim-minimal",
		"install:xCATsn,conserver-xcat,ganglia-gmond",
		"script:/install/postscripts/a",
		"script:/install/postscripts/b",
		"script:/install/postscripts/c",
	}
	assert.Equal(t, want, exec.calls)
	assert.Len(t, res.Applied, len(want))
	assert.Equal(t, "rhels7.9-x86_64-install-compute", res.Image)

	assert.True(t, res.Changed())
	v, ok := res.Result.Get("repos", "rhels7.9-repo-2", "baseurl")
	require.True(t, ok)
	assert.Equal(t, "http://10.0.0.1/install/post/otherpkgs/rhels7.9/x86_64/xcat/xcat-dep/rh7/x86_64", v)
	_, ok = res.Result.Get("packages", "vim-minimal")
	assert.True(t, ok)
	_, ok = res.Result.Get("packages", "ganglia-gmond")
	assert.True(t, ok)
	_, ok = res.Result.Get("scripts", "/install/postscripts/c")
	assert.True(t, ok)

	ops, ok := res.Result["operations"].([]any)
	require.True(t, ok)
	assert.Len(t, ops, len(want))
	assert.Equal(t, "run_script", ops[7].(result.Result)["type"])

	assert.Contains(t, res.Result, "start")
	assert.Contains(t, res.Result, "end")
	assert.True(t, res.FinishedAt.After(res.StartedAt))
}

func TestDeploy_DefaultImageIsFirst(t *testing.T) {
	f := newFixture(t)
	exec := &fakeExecutor{}
	req := f.request()
	req.Name = ""

	res, err := newTestEngine(exec).Deploy(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "rhels7.9-x86_64-install-compute", res.Image)
}

func TestDeploy_UnsupportedPlatformDelegatesNothing(t *testing.T) {
	f := newFixture(t)
	exec := &fakeExecutor{}
	req := f.request()
	req.Name = "ubuntu18.04-x86_64-install-compute"

	res, err := newTestEngine(exec).Deploy(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	assert.Nil(t, res)
	assert.Empty(t, exec.calls)
}

func TestDeploy_ExcludePackageStillRunsScripts(t *testing.T) {
	f := newFixture(t)
	exec := &fakeExecutor{}
	req := f.request()
	req.Excludes = []string{"package"}

	res, err := newTestEngine(exec).Deploy(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"script:/install/postscripts/a",
		"script:/install/postscripts/b",
		"script:/install/postscripts/c",
	}, exec.calls)
	assert.Equal(t, []string{"package"}, res.Plan.Skipped)
}

func TestDeploy_ExcludeScript(t *testing.T) {
	f := newFixture(t)
	exec := &fakeExecutor{}
	req := f.request()
	req.Excludes = []string{"script"}

	_, err := newTestEngine(exec).Deploy(context.Background(), req)
	require.NoError(t, err)

	for _, call := range exec.calls {
		assert.False(t, strings.HasPrefix(call, "script:"), call)
	}
	assert.Len(t, exec.calls, 5)
}

func TestDeploy_SourceAndDirIsConfigErrorBeforeIO(t *testing.T) {
	exec := &fakeExecutor{}
	req := &DeployRequest{
		Source: "/nonexistent/osimages.yaml",
		Dir:    "/nonexistent/osimages",
	}

	_, err := newTestEngine(exec).Deploy(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Empty(t, exec.calls)
}

func TestDeploy_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  *DeployRequest
	}{
		{"nil request", nil},
		{"no source", &DeployRequest{}},
		{"unknown exclude", &DeployRequest{Source: "/nonexistent.yaml", Excludes: []string{"packages"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestEngine(&fakeExecutor{}).Deploy(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestDeploy_NoExecutor(t *testing.T) {
	f := newFixture(t)

	_, err := newTestEngine(nil).Deploy(context.Background(), f.request())
	assert.ErrorIs(t, err, ErrConfig)
}

func TestDeploy_DryRun(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.DryRun = true

	res, err := newTestEngine(nil).Deploy(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, res.Applied)
	assert.False(t, res.Changed())
	assert.Len(t, res.Plan.Operations, 8)
}

func TestDeploy_DelegatedFailureReturnsPartialResult(t *testing.T) {
	f := newFixture(t)
	cause := errors.New("yum exited 1")
	exec := &fakeExecutor{failAt: 4, err: cause}

	res, err := newTestEngine(exec).Deploy(context.Background(), f.request())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, planner.OpInstallPackages, opErr.Op.Type)

	require.NotNil(t, res)
	assert.Len(t, res.Applied, 3)
	assert.Len(t, exec.calls, 4)

	_, ok := res.Result.Get("repos", "rhels7.9-repo-2")
	assert.True(t, ok)
	_, ok = res.Result.Get("packages")
	assert.False(t, ok)

	ops := res.Result["operations"].([]any)
	require.Len(t, ops, 4)
	assert.Equal(t, true, ops[3].(result.Result)["failed"])
}

func TestDeploy_MissingPackageList(t *testing.T) {
	dir := t.TempDir()
	inventory := filepath.Join(dir, "osimages.yaml")
	writeFixtureFile(t, inventory, `
img:
  basic_attributes:
    osdistro: centos7
  package_selection:
    pkglist:
    - `+filepath.Join(dir, "missing.pkglist")+`
`)
	exec := &fakeExecutor{}

	_, err := newTestEngine(exec).Deploy(context.Background(), &DeployRequest{Source: inventory})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, pkglist.ErrNotFound)
	assert.Empty(t, exec.calls)
}

func TestDeploy_CyclicInclude(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pkglist")
	b := filepath.Join(dir, "b.pkglist")
	writeFixtureFile(t, a, "#INCLUDE:"+b+"#\n")
	writeFixtureFile(t, b, "#INCLUDE:"+a+"#\n")
	inventory := filepath.Join(dir, "osimages.yaml")
	writeFixtureFile(t, inventory, "img:\n  basic_attributes:\n    osdistro: rhels8\n  package_selection:\n    pkglist:\n    - "+a+"\n")

	_, err := newTestEngine(&fakeExecutor{}).Deploy(context.Background(), &DeployRequest{Source: inventory})
	assert.ErrorIs(t, err, ErrCyclicInclude)
}

func TestDeploy_UnknownImage(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.Name = "sles15"

	_, err := newTestEngine(&fakeExecutor{}).Deploy(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "rhels7.9-x86_64-install-compute")
}

func TestPlan(t *testing.T) {
	f := newFixture(t)

	plan, err := newTestEngine(nil).Plan(f.request())
	require.NoError(t, err)

	assert.Equal(t, 3, plan.Count(planner.OpConfigureRepository))
	assert.Equal(t, 2, plan.Count(planner.OpInstallPackages))
	assert.Equal(t, []string{"/install/postscripts/a", "/install/postscripts/b", "/install/postscripts/c"}, plan.Scripts)
}

func TestDeploy_ChangedIsAggregate(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.Excludes = []string{planner.SectionScript}

	res, err := newTestEngine(&fakeExecutor{}).Deploy(context.Background(), req)
	require.NoError(t, err)

	// The last operation installs packages and reports no change.
	last := res.Applied[len(res.Applied)-1]
	assert.Equal(t, planner.OpInstallPackages, last.Type)
	assert.Equal(t, true, res.Result["changed"])
	assert.True(t, res.Changed())
}
