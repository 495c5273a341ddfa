package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/danieljhkim/osdeploy/internal/config"
	"github.com/danieljhkim/osdeploy/internal/fsops"
)

// imageFlags select the inventory and the osimage to deploy.
type imageFlags struct {
	name       string
	excludes   string
	src        string
	dir        string
	repo       string
	scriptRoot string
}

func (f *imageFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.name, "name", "n", "", "Name of the osimage to deploy (default: first in the inventory)")
	flags.StringVarP(&f.excludes, "excludes", "e", "", "Comma separated sections to skip: package, script")
	flags.StringVar(&f.src, "osimage-src", "", "Inventory file")
	flags.StringVar(&f.dir, "osimage-dir", "", "Directory of inventory files, e.g. "+config.DefaultOSImageDir)
	flags.StringVar(&f.repo, "repo", "", "Repository host, as host or host:port (default "+config.DefaultRepoHost+")")
	flags.StringVar(&f.scriptRoot, "script-root", "", "Directory of relative post-install scripts (default "+config.DefaultScriptRoot+")")
}

func (f *imageFlags) apply(cmd *cobra.Command, opts *config.Options) error {
	flags := cmd.Flags()
	if flags.Changed("name") {
		opts.Name = f.name
	}
	if flags.Changed("excludes") {
		excludes, err := config.ParseExcludes(f.excludes)
		if err != nil {
			return err
		}
		opts.Excludes = excludes
	}
	if flags.Changed("osimage-src") {
		opts.OSImageSrc = f.src
	}
	if flags.Changed("osimage-dir") {
		opts.OSImageDir = f.dir
	}
	if flags.Changed("repo") {
		opts.Repo = f.repo
	}
	if flags.Changed("script-root") {
		opts.ScriptRoot = f.scriptRoot
	}
	return nil
}

// targetFlags select the host to deploy to.
type targetFlags struct {
	host       string
	port       int
	user       string
	privateKey string
	knownHosts string
	become     bool
	local      bool
}

func (f *targetFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.host, "host", "", "Target host to deploy to over SSH")
	flags.IntVarP(&f.port, "port", "p", config.DefaultPort, "SSH port")
	flags.StringVarP(&f.user, "user", "u", config.DefaultUser, "SSH user")
	flags.StringVar(&f.privateKey, "private-key", "", "SSH private key (default ~/.ssh/id_ed25519 or ~/.ssh/id_rsa)")
	flags.StringVar(&f.knownHosts, "known-hosts", "", "known_hosts file to verify the host key against")
	flags.BoolVarP(&f.become, "become", "b", false, "Run commands through sudo when not connected as root")
	flags.BoolVar(&f.local, "local", false, "Deploy onto this host instead of over SSH")
}

func (f *targetFlags) apply(cmd *cobra.Command, opts *config.Options) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		opts.Host = f.host
	}
	if flags.Changed("port") {
		opts.Port = f.port
	}
	if flags.Changed("user") {
		opts.User = f.user
	}
	if flags.Changed("private-key") {
		opts.PrivateKey = f.privateKey
	}
	if flags.Changed("known-hosts") {
		opts.KnownHosts = f.knownHosts
	}
	if flags.Changed("become") {
		opts.Become = f.become
	}
	if flags.Changed("local") {
		opts.Local = f.local
	}
}

// loadOptions layers defaults, environment, args file and flags, in that
// order, and validates the result. tgt may be nil for commands without a
// target.
func loadOptions(cmd *cobra.Command, img *imageFlags, tgt *targetFlags) (*config.Options, error) {
	opts := config.Defaults()
	opts.ApplyEnv(os.Getenv)

	path, err := resolveArgsFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		fileOpts, err := config.LoadArgsFile(fsops.NewRealFS(), path)
		if err != nil {
			return nil, err
		}
		opts.Override(fileOpts)
	}

	if err := img.apply(cmd, &opts); err != nil {
		return nil, err
	}
	if tgt != nil {
		tgt.apply(cmd, &opts)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// resolveArgsFile returns the --args-file value, or the default args file
// when it exists.
func resolveArgsFile() (string, error) {
	if argsFile != "" {
		return argsFile, nil
	}
	paths, err := config.DefaultPaths()
	if err != nil {
		// No home directory, so no default args file either.
		return "", nil //nolint:nilerr
	}
	exists, err := fsops.NewRealFS().Exists(paths.Config)
	if err != nil {
		return "", fmt.Errorf("failed to check args file %s: %w", paths.Config, err)
	}
	if !exists {
		return "", nil
	}
	return paths.Config, nil
}

// FormatError formats an error for display.
func FormatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// structuredOutput reports whether --json or --yaml was requested.
func structuredOutput() bool {
	return jsonOutput || yamlOutput
}

// outputStructured writes v to w as YAML with --yaml, as JSON otherwise.
// Both use the json field names.
func outputStructured(w io.Writer, v interface{}) error {
	if yamlOutput {
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return outputJSON(w, v)
}

// outputJSON outputs a value as JSON to w.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
