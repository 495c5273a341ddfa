package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"go.uber.org/dig"

	"github.com/danieljhkim/osdeploy/internal/clock"
	"github.com/danieljhkim/osdeploy/internal/config"
	"github.com/danieljhkim/osdeploy/internal/engine"
	"github.com/danieljhkim/osdeploy/internal/executor"
	"github.com/danieljhkim/osdeploy/internal/fsops"
	"github.com/danieljhkim/osdeploy/internal/metrics"
	"github.com/danieljhkim/osdeploy/internal/osimage"
	"github.com/danieljhkim/osdeploy/internal/pkglist"
	"github.com/danieljhkim/osdeploy/internal/ssh"
)

// buildContainer wires the engine for opts. The executor and its shell are
// only provided when opts names a target.
func buildContainer(opts *config.Options, log logr.Logger) (*dig.Container, error) {
	container := dig.New()

	ctors := append(constructors(),
		func() *config.Options { return opts },
		func() logr.Logger { return log },
	)
	if opts.HasTarget() {
		ctors = append(ctors, targetConstructors()...)
	}

	for _, c := range ctors {
		if err := container.Provide(c); err != nil {
			return nil, err
		}
	}

	return container, nil
}

func constructors() []any {
	return []any{
		ProvideFS,
		ProvideClock,
		osimage.NewLoader,
		ProvideResolver,
		metrics.NewRecorder,
		ProvideEngine,
	}
}

func targetConstructors() []any {
	return []any{
		ProvideShell,
		ProvideExecutor,
	}
}

func ProvideFS() fsops.FS {
	return fsops.NewRealFS()
}

func ProvideClock() clock.Clock {
	return clock.RealClock{}
}

func ProvideResolver(fs fsops.FS, log logr.Logger) engine.PackageResolver {
	return pkglist.NewResolver(fs, log)
}

// EngineParams are the dependencies of the engine.
type EngineParams struct {
	dig.In

	Loader   *osimage.Loader
	Resolver engine.PackageResolver
	Executor engine.Executor `optional:"true"`
	Recorder *metrics.Recorder
	Clock    clock.Clock
	Log      logr.Logger
}

func ProvideEngine(p EngineParams) *engine.Engine {
	return engine.New(p.Loader, p.Resolver, p.Executor, p.Recorder, p.Clock, p.Log)
}

// ProvideShell returns the shell commands run through: this host with
// --local, an SSH connection otherwise.
func ProvideShell(opts *config.Options, fs fsops.FS, log logr.Logger) (executor.Shell, error) {
	if opts.Local {
		return executor.NewLocalShell(), nil
	}

	key, err := readPrivateKey(fs, opts.PrivateKey)
	if err != nil {
		return nil, err
	}

	client, err := ssh.NewClient(&ssh.Config{
		Host:           opts.Host,
		Port:           opts.Port,
		User:           opts.User,
		PrivateKey:     key,
		KnownHostsFile: opts.KnownHosts,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	return client, nil
}

func ProvideExecutor(shell executor.Shell, fs fsops.FS, opts *config.Options, log logr.Logger) engine.Executor {
	return executor.NewYum(shell, fs, executor.Options{Sudo: needsSudo(opts)}, log)
}

// needsSudo reports whether commands must be escalated on the target.
func needsSudo(opts *config.Options) bool {
	if !opts.Become {
		return false
	}
	if opts.Local {
		return os.Geteuid() != 0
	}
	return opts.User != "root"
}

// readPrivateKey reads path, or the first default key found when path is empty.
func readPrivateKey(fs fsops.FS, path string) ([]byte, error) {
	if path != "" {
		key, err := fs.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read private key: %v", config.ErrConfig, err)
		}
		return key, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("%w: no --private-key given and no home directory: %v", config.ErrConfig, err)
	}
	for _, name := range []string{"id_ed25519", "id_rsa"} {
		candidate := filepath.Join(home, ".ssh", name)
		exists, err := fs.Exists(candidate)
		if err != nil || !exists {
			continue
		}
		return fs.ReadFile(candidate)
	}
	return nil, fmt.Errorf("%w: no --private-key given and no default key in ~/.ssh", config.ErrConfig)
}

// closeShell closes the shell of a target container, if it holds one.
func closeShell(container *dig.Container, opts *config.Options, log logr.Logger) {
	if !opts.HasTarget() {
		return
	}
	_ = container.Invoke(func(shell executor.Shell) {
		if c, ok := shell.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.V(1).Info("failed to close connection", "error", err.Error())
			}
		}
	})
}
