package planner

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/danieljhkim/osdeploy/internal/osimage"
	"github.com/danieljhkim/osdeploy/internal/pkglist"
)

// ErrUnsupportedPlatform indicates the image is not a RHEL/CentOS image.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Resolver resolves package-list files.
type Resolver interface {
	Resolve(path string, collectRepos bool) (*pkglist.Result, error)
}

// Options controls how a record is turned into operations.
type Options struct {
	// RepoHost serves the repositories, as host or host:port
	RepoHost string

	// ScriptRoot is prepended to relative script paths
	ScriptRoot string

	// Excludes holds the sections to skip ("package", "script")
	Excludes []string
}

func (o Options) excluded(section string) bool {
	for _, e := range o.Excludes {
		if e == section {
			return true
		}
	}
	return false
}

// BuildDeployPlan generates a deterministic plan to deploy rec.
func BuildDeployPlan(rec *osimage.Record, opts Options, resolver Resolver, log logr.Logger) (*DeployPlan, error) {
	if rec == nil {
		return nil, fmt.Errorf("no osimage record to deploy")
	}

	distro := rec.Distro()
	if !rec.IsRedHatFamily() {
		if distro == "" {
			return nil, fmt.Errorf("%w: osimage %q has no basic_attributes.osdistro", ErrUnsupportedPlatform, rec.Name)
		}
		return nil, fmt.Errorf("%w: %s is not supported yet", ErrUnsupportedPlatform, distro)
	}

	plan := NewDeployPlan(rec.Name, distro)

	switch {
	case rec.PackageSelection == nil:
	case opts.excluded(SectionPackage):
		plan.Skipped = append(plan.Skipped, SectionPackage)
	default:
		if err := planPackages(plan, rec.PackageSelection, opts, resolver, log); err != nil {
			return nil, err
		}
	}

	switch {
	case rec.Scripts == nil:
	case opts.excluded(SectionScript):
		plan.Skipped = append(plan.Skipped, SectionScript)
	default:
		planScripts(plan, rec.Scripts, opts, log)
	}

	return plan, nil
}

// planPackages adds the repository and package operations of a package selection.
func planPackages(plan *DeployPlan, sel *osimage.PackageSelection, opts Options, resolver Resolver, log logr.Logger) error {
	// Copy, the other-package repositories are appended below.
	repoPaths := append([]string{}, sel.PkgDir...)

	otherPkgs := pkglist.NewSet()
	if root := sel.OtherRepoRoot(); root != "" {
		otherRepos := pkglist.NewSet()
		for _, listPath := range sel.OtherPkgList {
			res, err := resolver.Resolve(listPath, true)
			if err != nil {
				return fmt.Errorf("failed to resolve other package list: %w", err)
			}
			otherPkgs.Union(res.Packages)
			otherRepos.Union(res.Repos)
		}

		for _, dir := range otherRepos.Items() {
			log.V(2).Info("repository for other packages", "dir", dir)
			repoPaths = append(repoPaths, otherRepoPath(root, dir))
		}
	}

	for i, repoPath := range repoPaths {
		repo := NewRepository(plan.Distro, i, opts.RepoHost, repoPath)
		plan.Repositories = append(plan.Repositories, repo)
		plan.AddOperation(Operation{Type: OpConfigureRepository, Repository: &repo})
	}

	pkgs := pkglist.NewSet()
	for _, listPath := range sel.PkgList {
		res, err := resolver.Resolve(listPath, false)
		if err != nil {
			return fmt.Errorf("failed to resolve package list: %w", err)
		}
		pkgs.Union(res.Packages)
	}

	plan.Packages = pkgs.Items()
	plan.OtherPackages = otherPkgs.Items()

	if len(plan.Packages) > 0 {
		plan.AddOperation(Operation{Type: OpInstallPackages, PackageSet: SetPackages, Packages: plan.Packages})
	}
	if len(plan.OtherPackages) > 0 {
		plan.AddOperation(Operation{Type: OpInstallPackages, PackageSet: SetOtherPackages, Packages: plan.OtherPackages})
	}

	return nil
}

// otherRepoPath places a repository directory below the other-package root.
// An empty directory stands for the root itself.
func otherRepoPath(root, dir string) string {
	if dir == "" {
		return root
	}
	return root + "/" + dir
}

// NewRepository builds the i-th generated repository of an image.
func NewRepository(distro string, i int, host, repoPath string) Repository {
	name := fmt.Sprintf("%s-repo-%d", distro, i)
	return Repository{
		Name:            name,
		Description:     "Automatically generated repo: " + name,
		BaseURL:         fmt.Sprintf("http://%s%s", host, repoPath),
		Enabled:         true,
		VerifySignature: false,
		Path:            repoPath,
	}
}

// planScripts adds one run operation per script: postscripts first, then
// postbootscripts that are not already postscripts.
func planScripts(plan *DeployPlan, scripts *osimage.Scripts, opts Options, log logr.Logger) {
	for _, script := range OrderScripts(scripts.PostScripts, scripts.PostBootScripts) {
		if !filepath.IsAbs(script) {
			script = filepath.Join(opts.ScriptRoot, script)
		}
		log.V(2).Info("planned script", "path", script)
		plan.Scripts = append(plan.Scripts, script)
		plan.AddOperation(Operation{Type: OpRunScript, Script: script})
	}
}

// OrderScripts returns post followed by the entries of postBoot not present
// in post. Duplicates within post itself are kept.
func OrderScripts(post, postBoot []string) []string {
	seen := make(map[string]bool, len(post))
	for _, s := range post {
		seen[s] = true
	}

	ordered := append([]string{}, post...)
	for _, s := range postBoot {
		if !seen[s] {
			ordered = append(ordered, s)
		}
	}
	return ordered
}
