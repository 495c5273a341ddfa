package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/disiqueira/gotree"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.uber.org/dig"

	"github.com/danieljhkim/osdeploy/internal/config"
	"github.com/danieljhkim/osdeploy/internal/engine"
	"github.com/danieljhkim/osdeploy/internal/metrics"
	"github.com/danieljhkim/osdeploy/internal/planner"
)

func newDeployCmd() *cobra.Command {
	var (
		img    imageFlags
		tgt    targetFlags
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an osimage onto a target host",
		Long: `Deploy an osimage onto a target host.

The osimage is read from --osimage-src or --osimage-dir. Its repositories are
configured first, then its package sets are installed, then its post-install
scripts run in order. Sections named in --excludes are skipped.

The target is either a host reached over SSH (--host) or this host (--local).
With --dry-run nothing is delegated and no target is needed.`,
		Example: `  osdeploy deploy --osimage-src images.yml -n rhels7.9-x86_64-install-compute --host node01
  osdeploy deploy --osimage-dir /osimages -e script --local -b
  osdeploy deploy --osimage-src images.yml --dry-run --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd, &img, &tgt)
			if err != nil {
				return err
			}
			if !dryRun && !opts.HasTarget() {
				return fmt.Errorf("%w: no target, use --host or --local (or --dry-run)", config.ErrConfig)
			}

			log := newLogger(cmd.ErrOrStderr(), verbosity)
			container, err := buildContainer(opts, log)
			if err != nil {
				return err
			}
			defer closeShell(container, opts, log)

			var (
				res       *engine.DeployResult
				deployErr error
			)
			err = container.Invoke(func(eng *engine.Engine, recorder *metrics.Recorder) {
				res, deployErr = eng.Deploy(cmd.Context(), deployRequest(opts, dryRun))
				writeMetrics(recorder, log)
			})
			if err != nil {
				return dig.RootCause(err)
			}

			if res != nil {
				if err := printDeployResult(cmd.OutOrStdout(), res, dryRun, deployErr); err != nil {
					return err
				}
			}
			return deployErr
		},
	}

	img.register(cmd)
	tgt.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the deployment without touching the target")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write deployment metrics to this node_exporter textfile")

	return cmd
}

func newPlanCmd() *cobra.Command {
	var (
		img  imageFlags
		tree bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the operations a deployment would run",
		Long: `Show the operations a deployment would run, in order, without touching any
target. Package lists are resolved as they would be for deploy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd, &img, nil)
			if err != nil {
				return err
			}

			log := newLogger(cmd.ErrOrStderr(), verbosity)
			container, err := buildContainer(opts, log)
			if err != nil {
				return err
			}

			var plan *planner.DeployPlan
			err = container.Invoke(func(eng *engine.Engine) error {
				var err error
				plan, err = eng.Plan(deployRequest(opts, true))
				return err
			})
			if err != nil {
				return dig.RootCause(err)
			}

			w := cmd.OutOrStdout()
			switch {
			case structuredOutput():
				return outputStructured(w, plan)
			case tree:
				_, err := fmt.Fprint(w, planTree(plan).Print())
				return err
			}
			printPlan(w, plan)
			return nil
		},
	}

	img.register(cmd)
	cmd.Flags().BoolVar(&tree, "tree", false, "Print the plan as a tree")

	return cmd
}

func deployRequest(opts *config.Options, dryRun bool) *engine.DeployRequest {
	return &engine.DeployRequest{
		Name:       opts.Name,
		Source:     opts.OSImageSrc,
		Dir:        opts.OSImageDir,
		Excludes:   opts.Excludes,
		RepoHost:   opts.Repo,
		ScriptRoot: opts.ScriptRoot,
		DryRun:     dryRun,
	}
}

// writeMetrics writes the metrics textfile when --metrics-file is set. A
// failure is logged and does not fail the deployment.
func writeMetrics(recorder *metrics.Recorder, log logr.Logger) {
	if metricsFile == "" {
		return
	}
	if err := recorder.WriteTextfile(metricsFile); err != nil {
		log.Error(err, "failed to write metrics")
	}
}

func printDeployResult(w io.Writer, res *engine.DeployResult, dryRun bool, deployErr error) error {
	if structuredOutput() {
		return outputStructured(w, res)
	}

	printPlan(w, res.Plan)

	if dryRun {
		PrintWarning(w, "Dry run, nothing was deployed")
		return nil
	}

	PrintSection(w, "Applied")
	if len(res.Applied) == 0 {
		PrintEmptyState(w, "No operations applied")
	}
	PrintList(w, describeOperations(res.Applied), 1)
	_, _ = fmt.Fprintln(w)

	var opErr *engine.OperationError
	if errors.As(deployErr, &opErr) {
		PrintError(w, fmt.Sprintf("%s %s failed after %s",
			opErr.Op.Type, opErr.Op.Target(), PrintCount(len(res.Applied), "operation", "operations")))
		return nil
	}

	elapsed := res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond)
	if res.Changed() {
		PrintSuccess(w, fmt.Sprintf("Deployed %s in %s", res.Image, elapsed))
	} else {
		PrintSuccess(w, fmt.Sprintf("%s already up to date (%s)", res.Image, elapsed))
	}
	return nil
}

func printPlan(w io.Writer, plan *planner.DeployPlan) {
	PrintSection(w, "Plan: "+plan.Image)
	PrintLabelValue(w, "osdistro", plan.Distro)
	PrintLabelValue(w, "repositories", fmt.Sprintf("%d", len(plan.Repositories)))
	PrintLabelValue(w, planner.SetPackages, fmt.Sprintf("%d", len(plan.Packages)))
	PrintLabelValue(w, planner.SetOtherPackages, fmt.Sprintf("%d", len(plan.OtherPackages)))
	PrintLabelValue(w, "scripts", fmt.Sprintf("%d", len(plan.Scripts)))
	if len(plan.Skipped) > 0 {
		PrintLabelValue(w, "skipped", strings.Join(plan.Skipped, ", "))
	}

	PrintSection(w, "Operations")
	if len(plan.Operations) == 0 {
		PrintEmptyState(w, "Nothing to do")
		return
	}
	PrintNumberedList(w, describeOperations(plan.Operations), 1)
}

// planTree renders plan grouped by section.
func planTree(plan *planner.DeployPlan) gotree.Tree {
	tree := gotree.New(fmt.Sprintf("%s (%s)", plan.Image, plan.Distro))

	repos := tree.Add("Repositories")
	for _, repo := range plan.Repositories {
		repos.Add(fmt.Sprintf("%s %s", repo.Name, repo.BaseURL))
	}

	for _, set := range []struct {
		name  string
		items []string
	}{
		{planner.SetPackages, plan.Packages},
		{planner.SetOtherPackages, plan.OtherPackages},
	} {
		node := tree.Add(fmt.Sprintf("%s (%d)", set.name, len(set.items)))
		for _, item := range set.items {
			node.Add(item)
		}
	}

	scripts := tree.Add("Scripts")
	for _, script := range plan.Scripts {
		scripts.Add(script)
	}

	for _, section := range plan.Skipped {
		tree.Add("skipped: " + section)
	}

	return tree
}

func describeOperations(ops []planner.Operation) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, fmt.Sprintf("%s %s", op.Type, op.Target()))
	}
	return out
}
