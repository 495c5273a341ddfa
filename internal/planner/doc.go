// Package planner handles the planning phase of an osimage deployment.
//
// The planner turns one osimage record into a deterministic, ordered list of
// operations for the execution facade: repository configuration first, then
// package installation, then post-install scripts. It resolves package lists
// and derives the "other package" repositories, but never touches the target.
//
// Key responsibilities:
//   - Reject images that are not RHEL/CentOS before doing any work
//   - Honor section excludes ("package", "script")
//   - Name and address generated repositories
//   - Order and de-duplicate post-install scripts
package planner
