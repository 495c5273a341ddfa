// Package engine provides the core business logic for osdeploy operations.
//
// The engine package acts as the orchestration layer between CLI commands and
// lower-level operations. It validates requests, loads the osimage record,
// asks the planner for the ordered operations and hands them one at a time to
// the Executor, folding every result into the deployment result.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Deploy/Plan: Runs or previews the deployment of one osimage
//   - Images/ResolvePackages: Read-only views of inventories and package lists
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/danieljhkim/osdeploy/internal/clock"
	"github.com/danieljhkim/osdeploy/internal/metrics"
	"github.com/danieljhkim/osdeploy/internal/osimage"
	"github.com/danieljhkim/osdeploy/internal/pkglist"
	"github.com/danieljhkim/osdeploy/internal/planner"
	"github.com/danieljhkim/osdeploy/internal/result"
)

// Executor is the execution facade delegated operations are sent to.
type Executor interface {
	ConfigureRepository(ctx context.Context, repo planner.Repository) (result.Result, error)
	InstallPackages(ctx context.Context, names []string) (result.Result, error)
	RunScript(ctx context.Context, path string) (result.Result, error)
}

// PackageResolver resolves package-list files.
type PackageResolver interface {
	planner.Resolver
	ResolveAll(paths []string, collectRepos bool) (*pkglist.Result, error)
}

// Recorder receives deployment metrics.
type Recorder interface {
	ObserveOperation(opType, outcome string, d time.Duration)
	ObserveDeployment(image, outcome string, d time.Duration, finished time.Time)
	SetPackages(set string, n int)
}

// Engine orchestrates all osdeploy operations.
// It is the main API surface called by the CLI.
type Engine struct {
	loader   *osimage.Loader
	resolver PackageResolver
	executor Executor
	metrics  Recorder
	clock    clock.Clock
	log      logr.Logger
}

// New creates a new Engine with the given dependencies. executor may be nil
// for an engine that only plans, recorder may be nil to drop metrics.
func New(
	loader *osimage.Loader,
	resolver PackageResolver,
	executor Executor,
	recorder Recorder,
	clk clock.Clock,
	log logr.Logger,
) *Engine {
	if recorder == nil {
		recorder = metrics.Discard{}
	}
	return &Engine{
		loader:   loader,
		resolver: resolver,
		executor: executor,
		metrics:  recorder,
		clock:    clk,
		log:      log,
	}
}

// executeOperation sends a single operation to the executor.
func (e *Engine) executeOperation(ctx context.Context, op planner.Operation) (result.Result, error) {
	switch op.Type {
	case planner.OpConfigureRepository:
		if op.Repository == nil {
			return nil, fmt.Errorf("configure_repository operation without repository")
		}
		return e.executor.ConfigureRepository(ctx, *op.Repository)
	case planner.OpInstallPackages:
		return e.executor.InstallPackages(ctx, op.Packages)
	case planner.OpRunScript:
		return e.executor.RunScript(ctx, op.Script)
	default:
		return nil, fmt.Errorf("unknown operation type: %s", op.Type)
	}
}

// loadRecord reads the inventory and selects the record called name.
func (e *Engine) loadRecord(name, source, dir string) (*osimage.Record, error) {
	var (
		rec *osimage.Record
		err error
	)
	if dir != "" {
		rec, err = e.loader.LoadDir(dir, name)
	} else {
		rec, err = e.loader.Load(source, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load osimage: %w", err)
	}
	return rec, nil
}

// loadInventory reads a whole inventory file or directory.
func (e *Engine) loadInventory(source, dir string) (*osimage.Inventory, error) {
	if dir != "" {
		return e.loader.LoadDirectory(dir)
	}
	return e.loader.LoadFile(source)
}
