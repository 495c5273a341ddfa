package engine

import (
	"time"

	"github.com/danieljhkim/osdeploy/internal/planner"
	"github.com/danieljhkim/osdeploy/internal/result"
)

// DeployResult represents the result of a deployment.
type DeployResult struct {
	// Image is the deployed osimage name
	Image string `json:"image"`

	// Plan is the generated plan
	Plan *planner.DeployPlan `json:"plan"`

	// Applied is the list of operations that were executed (empty if DryRun)
	Applied []planner.Operation `json:"applied"`

	// Result is the merged result of every executed operation. Its top level
	// "changed" is true when any operation changed the target, not the value
	// of the last operation.
	Result result.Result `json:"result"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Changed reports whether any executed operation changed the target.
func (r *DeployResult) Changed() bool {
	return r.Result.Changed()
}

// ImageInfo describes one inventory entry.
type ImageInfo struct {
	Name        string `json:"name"`
	Distro      string `json:"osdistro"`
	Arch        string `json:"arch,omitempty"`
	ImageType   string `json:"imagetype,omitempty"`
	Description string `json:"description,omitempty"`

	// Default marks the image deployed when no name is given
	Default bool `json:"default"`
}

// ImagesResult lists the images of an inventory in document order.
type ImagesResult struct {
	Images []ImageInfo `json:"images"`
}

// PackagesResult holds resolved package lists.
type PackagesResult struct {
	Packages []string `json:"packages"`
	Repos    []string `json:"repos,omitempty"`
}
