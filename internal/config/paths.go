// Package config manages osdeploy configuration and filesystem paths.
//
// Options are layered: built-in defaults, then OSDEPLOY_* environment
// variables, then an args file, then command line flags. The default root is
// ~/.osdeploy/ and may hold a config.yaml args file that is read on every run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the filesystem paths used by osdeploy.
type Paths struct {
	// Root is the base directory for osdeploy data (default: ~/.osdeploy)
	Root string

	// Config is the path to the default args file
	Config string
}

// DefaultPaths returns the default paths for osdeploy.
// Paths can be overridden with environment variables:
// - OSDEPLOY_ROOT: Override the root directory
func DefaultPaths() (*Paths, error) {
	root := os.Getenv(EnvRoot)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".osdeploy")
	}

	return &Paths{
		Root:   root,
		Config: filepath.Join(root, "config.yaml"),
	}, nil
}
