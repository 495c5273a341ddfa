package engine

import (
	"errors"
	"fmt"

	"github.com/danieljhkim/osdeploy/internal/config"
	"github.com/danieljhkim/osdeploy/internal/osimage"
	"github.com/danieljhkim/osdeploy/internal/pkglist"
	"github.com/danieljhkim/osdeploy/internal/planner"
)

var (
	// ErrConfig indicates invalid or contradictory options.
	ErrConfig = config.ErrConfig

	// ErrNotFound indicates an inventory, an image or a package list was not found.
	ErrNotFound = osimage.ErrNotFound

	// ErrParse indicates an inventory could not be parsed.
	ErrParse = osimage.ErrParse

	// ErrUnsupportedPlatform indicates the image is not a RHEL/CentOS image.
	ErrUnsupportedPlatform = planner.ErrUnsupportedPlatform

	// ErrCyclicInclude indicates a package list includes itself.
	ErrCyclicInclude = pkglist.ErrCyclicInclude
)

// OperationError reports a delegated operation the executor failed.
type OperationError struct {
	Op  planner.Operation
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Op.Type, e.Op.Target(), e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// notFoundError lets a package list error match ErrNotFound too.
type notFoundError struct {
	err error
}

func (e *notFoundError) Error() string { return e.err.Error() }

func (e *notFoundError) Unwrap() []error { return []error{e.err, ErrNotFound} }

// classify maps leaf package errors onto the engine's sentinels.
func classify(err error) error {
	if err != nil && errors.Is(err, pkglist.ErrNotFound) && !errors.Is(err, ErrNotFound) {
		return &notFoundError{err: err}
	}
	return err
}
