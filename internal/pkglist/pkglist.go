// Package pkglist resolves xCAT style package-list files.
//
// A package list is a line oriented text file. Each line is one of:
//
//	(blank)             skipped
//	# anything          comment
//	#INCLUDE:<path>#    include another list, resolved in place
//	name                a package
//	dir/name            a package served from repository directory "dir"
//	@ name              a package group, normalized to "@name"
//
// Resolving a list yields the set of package and group names and, for lists
// of "other" packages, the set of repository directories those packages
// live in.
package pkglist

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/go-logr/logr"

	"github.com/danieljhkim/osdeploy/internal/fsops"
)

var (
	// ErrNotFound indicates a package list could not be read.
	ErrNotFound = errors.New("package list not found")

	// ErrCyclicInclude indicates a package list includes itself, directly or transitively.
	ErrCyclicInclude = errors.New("cyclic include")
)

var includePattern = regexp.MustCompile(`^#INCLUDE:(.*)#$`)

// Result holds the outcome of resolving one or more package lists.
type Result struct {
	// Packages is the set of package and group names.
	Packages *Set

	// Repos is the set of repository directories. It stays empty unless
	// repositories were collected.
	Repos *Set
}

func newResult() *Result {
	return &Result{Packages: NewSet(), Repos: NewSet()}
}

// Resolver parses package lists from a filesystem.
type Resolver struct {
	fs  fsops.FS
	log logr.Logger
}

// NewResolver creates a Resolver reading files through fs.
func NewResolver(fs fsops.FS, log logr.Logger) *Resolver {
	return &Resolver{fs: fs, log: log}
}

// Resolve parses the package list at listPath, following include directives.
// When collectRepos is true the directory part of every path qualified
// package is collected into Result.Repos.
func (r *Resolver) Resolve(listPath string, collectRepos bool) (*Result, error) {
	return r.resolve(listPath, collectRepos, nil)
}

// ResolveAll resolves each list in order and merges the results.
func (r *Resolver) ResolveAll(listPaths []string, collectRepos bool) (*Result, error) {
	out := newResult()
	for _, p := range listPaths {
		res, err := r.Resolve(p, collectRepos)
		if err != nil {
			return nil, err
		}
		out.Packages.Union(res.Packages)
		out.Repos.Union(res.Repos)
	}
	return out, nil
}

// resolve parses one file. chain holds the absolute paths of the files
// currently being resolved, outermost first.
func (r *Resolver) resolve(listPath string, collectRepos bool, chain []string) (*Result, error) {
	abs, err := r.fs.Abs(listPath)
	if err != nil {
		return nil, err
	}
	for _, p := range chain {
		if p == abs {
			return nil, fmt.Errorf("%w: %s", ErrCyclicInclude, strings.Join(append(chain, abs), " -> "))
		}
	}
	chain = append(chain, abs)

	r.log.V(1).Info("handling package list", "path", listPath)

	data, err := r.fs.ReadFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, listPath, err)
	}

	res := newResult()
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			m := includePattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			r.log.V(3).Info("including", "path", m[1], "from", listPath)
			// Copy the chain so sibling includes do not share a backing array.
			sub, err := r.resolve(m[1], collectRepos, append([]string(nil), chain...))
			if err != nil {
				return nil, err
			}
			res.Packages.Union(sub.Packages)
			if collectRepos {
				res.Repos.Union(sub.Repos)
			}
			continue
		}

		if collectRepos {
			if dir := repoDir(line); dir != "" {
				res.Repos.Add(dir)
			}
		}
		res.Packages.Add(packageName(line))
	}

	return res, nil
}

// repoDir returns the directory part of a package line, or "" when it has none.
func repoDir(line string) string {
	dir := path.Dir(line)
	if dir == "." {
		return ""
	}
	return dir
}

// packageName returns the package specifier of a line, with "@ group"
// collapsed to "@group".
func packageName(line string) string {
	name := path.Base(line)
	if strings.HasPrefix(name, "@ ") {
		name = "@" + strings.TrimSpace(name[1:])
	}
	return name
}
