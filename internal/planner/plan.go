package planner

import "fmt"

// OpType is the kind of a delegated operation.
type OpType string

// Operation type constants
const (
	OpConfigureRepository OpType = "configure_repository"
	OpInstallPackages     OpType = "install_packages"
	OpRunScript           OpType = "run_script"
)

// Package set names used by install operations.
const (
	SetPackages      = "packages"
	SetOtherPackages = "otherpkgs"
)

// Section names accepted as excludes.
const (
	SectionPackage = "package"
	SectionScript  = "script"
)

// Repository describes a package repository to configure on the target.
type Repository struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	BaseURL         string `json:"baseurl"`
	Enabled         bool   `json:"enabled"`
	VerifySignature bool   `json:"gpgcheck"`

	// Path is the repository path on the repository host.
	Path string `json:"path"`
}

// Operation is a single request to the execution facade.
type Operation struct {
	// Type is the operation type.
	Type OpType `json:"type"`

	// Repository is set for OpConfigureRepository.
	Repository *Repository `json:"repository,omitempty"`

	// Packages and PackageSet are set for OpInstallPackages.
	Packages   []string `json:"packages,omitempty"`
	PackageSet string   `json:"package_set,omitempty"`

	// Script is the absolute script path for OpRunScript.
	Script string `json:"script,omitempty"`
}

// Target returns a short description of what the operation acts on.
func (op Operation) Target() string {
	switch op.Type {
	case OpConfigureRepository:
		if op.Repository != nil {
			return op.Repository.Name
		}
	case OpInstallPackages:
		return fmt.Sprintf("%s (%d)", op.PackageSet, len(op.Packages))
	case OpRunScript:
		return op.Script
	}
	return ""
}

// DeployPlan represents a plan to deploy one osimage onto a target.
type DeployPlan struct {
	// Image is the osimage name
	Image string `json:"image"`

	// Distro is the osdistro of the image
	Distro string `json:"osdistro"`

	// Repositories are the repositories to configure, in order
	Repositories []Repository `json:"repositories"`

	// Packages is the resolved base package set
	Packages []string `json:"packages"`

	// OtherPackages is the resolved "other" package set
	OtherPackages []string `json:"otherpkgs"`

	// Scripts are the absolute script paths to run, in order
	Scripts []string `json:"scripts"`

	// Skipped lists the sections excluded from this deployment
	Skipped []string `json:"skipped,omitempty"`

	// Operations is the ordered list of operations to execute
	Operations []Operation `json:"operations"`
}

// NewDeployPlan creates a new empty DeployPlan.
func NewDeployPlan(image, distro string) *DeployPlan {
	return &DeployPlan{
		Image:         image,
		Distro:        distro,
		Repositories:  []Repository{},
		Packages:      []string{},
		OtherPackages: []string{},
		Scripts:       []string{},
		Operations:    []Operation{},
	}
}

// AddOperation adds an operation to the plan.
func (p *DeployPlan) AddOperation(op Operation) {
	p.Operations = append(p.Operations, op)
}

// Count returns the number of operations of type t.
func (p *DeployPlan) Count(t OpType) int {
	n := 0
	for _, op := range p.Operations {
		if op.Type == t {
			n++
		}
	}
	return n
}
