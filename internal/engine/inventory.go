package engine

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/danieljhkim/osdeploy/internal/config"
)

// Images lists the images of an inventory file or directory in document
// order. The first one is marked as the default, whether or not Pattern
// selects it.
func (e *Engine) Images(req *ImagesRequest) (*ImagesResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: no images request", ErrConfig)
	}
	if err := config.ValidateSource(req.Source, req.Dir); err != nil {
		return nil, err
	}

	var match glob.Glob
	if req.Pattern != "" {
		g, err := glob.Compile(req.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid image pattern %q: %v", ErrConfig, req.Pattern, err)
		}
		match = g
	}

	inv, err := e.loadInventory(req.Source, req.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}

	out := &ImagesResult{Images: make([]ImageInfo, 0, inv.Len())}
	for i, name := range inv.Names() {
		if match != nil && !match.Match(name) {
			continue
		}
		rec, _ := inv.Get(name)
		info := ImageInfo{
			Name:        name,
			Distro:      rec.Distro(),
			ImageType:   rec.ImageType,
			Description: rec.Description,
			Default:     i == 0,
		}
		if rec.BasicAttributes != nil {
			info.Arch = rec.BasicAttributes.Arch
		}
		out.Images = append(out.Images, info)
	}

	return out, nil
}

// ResolvePackages resolves package lists the way a deployment would.
func (e *Engine) ResolvePackages(req *PackagesRequest) (*PackagesResult, error) {
	if req == nil || len(req.Paths) == 0 {
		return nil, fmt.Errorf("%w: no package list given", ErrConfig)
	}

	res, err := e.resolver.ResolveAll(req.Paths, req.CollectRepos)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve package lists: %w", classify(err))
	}

	out := &PackagesResult{Packages: res.Packages.Items()}
	if req.CollectRepos {
		out.Repos = res.Repos.Items()
	}
	return out, nil
}
