package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/danieljhkim/osdeploy/internal/config"
	"github.com/danieljhkim/osdeploy/internal/metrics"
	"github.com/danieljhkim/osdeploy/internal/planner"
	"github.com/danieljhkim/osdeploy/internal/result"
)

// Algorithm steps:
// 1. Validate the request (no file I/O before this succeeds)
// 2. Load the inventory and select the record
// 3. Build the plan (rejects unsupported distros before any delegation)
// 4. Execute operations in order, folding every result (if not DryRun)
// 5. Stamp the result and return it
func (e *Engine) Deploy(ctx context.Context, req *DeployRequest) (*DeployResult, error) {
	if err := validateDeploy(req); err != nil {
		return nil, err
	}
	if !req.DryRun && e.executor == nil {
		return nil, fmt.Errorf("%w: no target to deploy to", ErrConfig)
	}

	started := e.clock.Now()

	plan, err := e.buildPlan(req)
	if err != nil {
		e.observeDeployment(req.Name, metrics.OutcomeError, started)
		return nil, err
	}

	res := &DeployResult{
		Image:     plan.Image,
		Plan:      plan,
		Applied:   []planner.Operation{},
		StartedAt: started,
	}

	if req.DryRun {
		res.Result = result.Result{"changed": false}
		res.FinishedAt = e.clock.Now()
		return res, nil
	}

	log := e.log.WithValues("image", plan.Image)
	log.Info("deploying", "operations", len(plan.Operations))

	merged := result.Result{}
	summaries := []any{}
	changed := false

	for _, op := range plan.Operations {
		opStarted := e.clock.Now()
		opResult, err := e.executeOperation(ctx, op)
		elapsed := e.clock.Now().Sub(opStarted)

		if err != nil {
			e.metrics.ObserveOperation(string(op.Type), metrics.OutcomeError, elapsed)
			log.Error(err, "operation failed", "type", op.Type, "target", op.Target())

			summaries = append(summaries, summarize(op, nil, err))
			res.Result, res.FinishedAt = e.stamp(merged, summaries, changed, started)
			e.metrics.ObserveDeployment(plan.Image, metrics.OutcomeError, res.FinishedAt.Sub(started), res.FinishedAt)
			return res, &OperationError{Op: op, Err: err}
		}

		e.metrics.ObserveOperation(string(op.Type), metrics.OutcomeSuccess, elapsed)
		log.V(1).Info("operation done", "type", op.Type, "target", op.Target(), "changed", opResult.Changed())

		merged = result.Merge(merged, opResult)
		summaries = append(summaries, summarize(op, opResult, nil))
		changed = changed || opResult.Changed()
		res.Applied = append(res.Applied, op)
	}

	res.Result, res.FinishedAt = e.stamp(merged, summaries, changed, started)
	e.metrics.ObserveDeployment(plan.Image, metrics.OutcomeSuccess, res.FinishedAt.Sub(started), res.FinishedAt)
	log.Info("deployed", "changed", changed, "elapsed", res.FinishedAt.Sub(started))

	return res, nil
}

// Plan returns the operations Deploy would execute, without executing them.
func (e *Engine) Plan(req *DeployRequest) (*planner.DeployPlan, error) {
	if err := validateDeploy(req); err != nil {
		return nil, err
	}
	return e.buildPlan(req)
}

func validateDeploy(req *DeployRequest) error {
	if req == nil {
		return fmt.Errorf("%w: no deploy request", ErrConfig)
	}
	if err := config.ValidateSource(req.Source, req.Dir); err != nil {
		return err
	}
	return config.ValidateExcludes(req.Excludes)
}

func (e *Engine) buildPlan(req *DeployRequest) (*planner.DeployPlan, error) {
	rec, err := e.loadRecord(req.Name, req.Source, req.Dir)
	if err != nil {
		return nil, err
	}

	plan, err := planner.BuildDeployPlan(rec, planner.Options{
		RepoHost:   req.RepoHost,
		ScriptRoot: req.ScriptRoot,
		Excludes:   req.Excludes,
	}, e.resolver, e.log)
	if err != nil {
		return nil, fmt.Errorf("failed to build deploy plan: %w", classify(err))
	}

	e.metrics.SetPackages(planner.SetPackages, len(plan.Packages))
	e.metrics.SetPackages(planner.SetOtherPackages, len(plan.OtherPackages))

	return plan, nil
}

// stamp adds the operation summaries and timestamps to merged. The top level
// "changed" flag is true when any operation changed the target.
func (e *Engine) stamp(merged result.Result, summaries []any, changed bool, started time.Time) (result.Result, time.Time) {
	finished := e.clock.Now()
	return result.Merge(merged, result.Result{
		"changed":    changed,
		"operations": summaries,
		"start":      started.Format(time.RFC3339Nano),
		"end":        finished.Format(time.RFC3339Nano),
		"delta":      finished.Sub(started).String(),
	}), finished
}

func (e *Engine) observeDeployment(image, outcome string, started time.Time) {
	finished := e.clock.Now()
	e.metrics.ObserveDeployment(image, outcome, finished.Sub(started), finished)
}

func summarize(op planner.Operation, r result.Result, err error) result.Result {
	s := result.Result{
		"type":   string(op.Type),
		"target": op.Target(),
	}
	if err != nil {
		s["failed"] = true
		s["msg"] = err.Error()
		return s
	}
	s["changed"] = r.Changed()
	return s
}
