package engine

// DeployRequest represents a request to deploy an osimage.
type DeployRequest struct {
	// Name is the osimage to deploy; empty selects the first one
	Name string

	// Source is an inventory file (exclusive with Dir)
	Source string

	// Dir is a directory of inventory files (exclusive with Source)
	Dir string

	// Excludes lists the sections to skip ("package", "script")
	Excludes []string

	// RepoHost serves the repositories
	RepoHost string

	// ScriptRoot is prepended to relative script paths
	ScriptRoot string

	// DryRun performs planning only without delegating anything
	DryRun bool
}

// ImagesRequest represents a request to list the images of an inventory.
type ImagesRequest struct {
	Source string
	Dir    string

	// Pattern is a glob on image names; empty lists every image
	Pattern string
}

// PackagesRequest represents a request to resolve package lists.
type PackagesRequest struct {
	// Paths are the package lists, folded in order
	Paths []string

	// CollectRepos also collects repository directories
	CollectRepos bool
}
