package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/osdeploy/internal/fsops"
	"github.com/danieljhkim/osdeploy/internal/planner"
)

// ErrConfig indicates invalid or contradictory options.
var ErrConfig = errors.New("invalid configuration")

// Environment variables read by ApplyEnv and DefaultPaths.
const (
	EnvRoot       = "OSDEPLOY_ROOT"
	EnvRepo       = "OSDEPLOY_REPO"
	EnvScriptRoot = "OSDEPLOY_SCRIPT_ROOT"
)

// Defaults.
const (
	DefaultRepoHost   = "127.0.0.1"
	DefaultScriptRoot = "/install/postscripts"
	DefaultPort       = 22
	DefaultUser       = "root"

	// DefaultOSImageDir is only suggested in help output; it is never used
	// unless passed explicitly.
	DefaultOSImageDir = "/osimages"
)

// Options holds everything a deployment run is configured with.
type Options struct {
	// Name is the osimage to deploy; empty selects the first one
	Name string `yaml:"name"`

	// Excludes lists the sections to skip
	Excludes Excludes `yaml:"excludes"`

	// OSImageDir is a directory of inventory files
	OSImageDir string `yaml:"osimage_dir"`

	// OSImageSrc is a single inventory file
	OSImageSrc string `yaml:"osimage_src"`

	// Repo is the repository host, as host or host:port
	Repo string `yaml:"repo"`

	// ScriptRoot is prepended to relative script paths
	ScriptRoot string `yaml:"script_root"`

	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	PrivateKey string `yaml:"private_key"`
	KnownHosts string `yaml:"known_hosts"`
	Become     bool   `yaml:"become"`
	Local      bool   `yaml:"local"`
}

// Defaults returns the built-in options.
func Defaults() Options {
	return Options{
		Repo:       DefaultRepoHost,
		ScriptRoot: DefaultScriptRoot,
		Port:       DefaultPort,
		User:       DefaultUser,
	}
}

// ApplyEnv overrides o with the OSDEPLOY_* variables that are set.
func (o *Options) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvRepo); v != "" {
		o.Repo = v
	}
	if v := getenv(EnvScriptRoot); v != "" {
		o.ScriptRoot = v
	}
}

// Override copies every non-zero field of other into o.
func (o *Options) Override(other *Options) {
	if other == nil {
		return
	}
	setString(&o.Name, other.Name)
	setString(&o.OSImageDir, other.OSImageDir)
	setString(&o.OSImageSrc, other.OSImageSrc)
	setString(&o.Repo, other.Repo)
	setString(&o.ScriptRoot, other.ScriptRoot)
	setString(&o.Host, other.Host)
	setString(&o.User, other.User)
	setString(&o.PrivateKey, other.PrivateKey)
	setString(&o.KnownHosts, other.KnownHosts)
	if other.Excludes != nil {
		o.Excludes = append(Excludes(nil), other.Excludes...)
	}
	if other.Port != 0 {
		o.Port = other.Port
	}
	o.Become = o.Become || other.Become
	o.Local = o.Local || other.Local
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks the options before any inventory or package list is read.
func (o *Options) Validate() error {
	if err := ValidateSource(o.OSImageSrc, o.OSImageDir); err != nil {
		return err
	}
	if err := ValidateExcludes(o.Excludes); err != nil {
		return err
	}
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrConfig, o.Port)
	}
	if o.Local && o.Host != "" {
		return fmt.Errorf("%w: --local and --host are mutually exclusive", ErrConfig)
	}
	return nil
}

// HasTarget reports whether the options name a host to deploy to.
func (o *Options) HasTarget() bool {
	return o.Local || o.Host != ""
}

// ValidateSource checks that exactly one of an inventory file and an
// inventory directory is set.
func ValidateSource(src, dir string) error {
	switch {
	case src != "" && dir != "":
		return fmt.Errorf("%w: osimage_src and osimage_dir are mutually exclusive", ErrConfig)
	case src == "" && dir == "":
		return fmt.Errorf("%w: one of osimage_src or osimage_dir is required (for example --osimage-dir %s)",
			ErrConfig, DefaultOSImageDir)
	}
	return nil
}

// ValidateExcludes checks every exclude token names a known section.
func ValidateExcludes(excludes []string) error {
	for _, e := range excludes {
		switch e {
		case planner.SectionPackage, planner.SectionScript:
		default:
			return fmt.Errorf("%w: unknown exclude %q (valid: %s, %s)",
				ErrConfig, e, planner.SectionPackage, planner.SectionScript)
		}
	}
	return nil
}

// ParseExcludes splits a comma separated exclude list and validates it.
func ParseExcludes(s string) ([]string, error) {
	excludes := splitList(s)
	if err := ValidateExcludes(excludes); err != nil {
		return nil, err
	}
	return excludes, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Excludes is an exclude list. In an args file it may be written either as
// a sequence or as a comma separated string.
type Excludes []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Excludes) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*e = splitList(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*e = items
		return nil
	}
	return fmt.Errorf("line %d: excludes must be a list or a comma separated string", value.Line)
}

// LoadArgsFile reads an args file. Unknown keys are rejected.
func LoadArgsFile(fs fsops.FS, path string) (*Options, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read args file %s: %v", ErrConfig, path, err)
	}

	opts := &Options{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil {
		if errors.Is(err, io.EOF) {
			return opts, nil
		}
		return nil, fmt.Errorf("%w: args file %s: %v", ErrConfig, path, err)
	}
	return opts, nil
}
