package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/osdeploy/internal/fsops"
)

func writeArgsFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "args.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestDefaults(t *testing.T) {
	opts := Defaults()

	assert.Equal(t, "127.0.0.1", opts.Repo)
	assert.Equal(t, "/install/postscripts", opts.ScriptRoot)
	assert.Equal(t, 22, opts.Port)
	assert.Equal(t, "root", opts.User)
	assert.Empty(t, opts.OSImageDir)
	assert.Empty(t, opts.OSImageSrc)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvRepo: "10.0.0.1:8080",
	}
	opts := Defaults()
	opts.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "10.0.0.1:8080", opts.Repo)
	assert.Equal(t, DefaultScriptRoot, opts.ScriptRoot)
}

func TestLoadArgsFile(t *testing.T) {
	p := writeArgsFile(t, `
name: rhels7.9-x86_64-install-compute
excludes: package, script
osimage_src: /tmp/osimages.yaml
repo: 10.0.0.1
script_root: /opt/postscripts
host: node01
become: true
`)

	opts, err := LoadArgsFile(fsops.NewRealFS(), p)
	require.NoError(t, err)

	assert.Equal(t, "rhels7.9-x86_64-install-compute", opts.Name)
	assert.Equal(t, Excludes{"package", "script"}, opts.Excludes)
	assert.Equal(t, "/tmp/osimages.yaml", opts.OSImageSrc)
	assert.Equal(t, "10.0.0.1", opts.Repo)
	assert.Equal(t, "/opt/postscripts", opts.ScriptRoot)
	assert.Equal(t, "node01", opts.Host)
	assert.True(t, opts.Become)
}

func TestLoadArgsFile_ExcludesSequence(t *testing.T) {
	p := writeArgsFile(t, "excludes:\n  - script\n")

	opts, err := LoadArgsFile(fsops.NewRealFS(), p)
	require.NoError(t, err)
	assert.Equal(t, Excludes{"script"}, opts.Excludes)
}

func TestLoadArgsFile_UnknownKey(t *testing.T) {
	p := writeArgsFile(t, "osimage_source: /tmp/osimages.yaml\n")

	_, err := LoadArgsFile(fsops.NewRealFS(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Contains(t, err.Error(), "osimage_source")
}

func TestLoadArgsFile_Empty(t *testing.T) {
	p := writeArgsFile(t, "")

	opts, err := LoadArgsFile(fsops.NewRealFS(), p)
	require.NoError(t, err)
	assert.Equal(t, &Options{}, opts)
}

func TestLoadArgsFile_Missing(t *testing.T) {
	_, err := LoadArgsFile(fsops.NewRealFS(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestOverride(t *testing.T) {
	opts := Defaults()
	opts.Excludes = Excludes{"script"}

	opts.Override(&Options{
		Name:       "img",
		OSImageDir: "/osimages",
		Port:       2222,
		Become:     true,
		Excludes:   Excludes{},
	})

	assert.Equal(t, "img", opts.Name)
	assert.Equal(t, "/osimages", opts.OSImageDir)
	assert.Equal(t, DefaultRepoHost, opts.Repo)
	assert.Equal(t, 2222, opts.Port)
	assert.True(t, opts.Become)
	assert.Empty(t, opts.Excludes)

	opts.Override(nil)
	assert.Equal(t, "img", opts.Name)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"source only", Options{OSImageSrc: "a.yaml"}, false},
		{"dir only", Options{OSImageDir: "/osimages"}, false},
		{"both source and dir", Options{OSImageSrc: "a.yaml", OSImageDir: "/osimages"}, true},
		{"neither source nor dir", Options{}, true},
		{"known excludes", Options{OSImageSrc: "a.yaml", Excludes: Excludes{"package", "script"}}, false},
		{"unknown exclude", Options{OSImageSrc: "a.yaml", Excludes: Excludes{"packages"}}, true},
		{"bad port", Options{OSImageSrc: "a.yaml", Port: 70000}, true},
		{"local and host", Options{OSImageSrc: "a.yaml", Local: true, Host: "node01"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseExcludes(t *testing.T) {
	excludes, err := ParseExcludes(" package , script,,")
	require.NoError(t, err)
	assert.Equal(t, []string{"package", "script"}, excludes)

	excludes, err = ParseExcludes("")
	require.NoError(t, err)
	assert.Empty(t, excludes)

	_, err = ParseExcludes("package,bogus")
	assert.ErrorIs(t, err, ErrConfig)
}

func TestHasTarget(t *testing.T) {
	assert.False(t, (&Options{}).HasTarget())
	assert.True(t, (&Options{Local: true}).HasTarget())
	assert.True(t, (&Options{Host: "node01"}).HasTarget())
}
