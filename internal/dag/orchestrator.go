package dag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"promptvault/internal/pipeline"
)

// Orchestrator runs DAG definitions through a prompt execution pipeline.
type Orchestrator struct {
	exec     *pipeline.Executor
	logger   *slog.Logger
	parallel bool
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithParallel enables concurrent execution of independent branches.
// Dependency order and fail-fast are preserved: a node never starts before
// all of its declared dependencies completed, and once any node fails no
// unstarted node is started. Nodes already running when a sibling fails are
// allowed to finish and their results are kept.
func WithParallel() Option {
	return func(o *Orchestrator) { o.parallel = true }
}

// WithLogger overrides the orchestrator's component logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New builds an Orchestrator over a pipeline executor.
func New(exec *pipeline.Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		exec:   exec,
		logger: slog.Default().With(slog.String("component", "dag")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run validates and executes the DAG. Validation failures execute zero
// nodes and report NodeID "validation". Run never returns a Go error: any
// failure is packaged into the result, partial progress included.
func (o *Orchestrator) Run(ctx context.Context, def Definition, rootInputs map[string]any, base pipeline.Context) *RunResult {
	start := o.now()

	order, err := validate(def)
	if err != nil {
		o.logger.Warn("dag rejected", "dag_id", def.ID, "reason", err.Error())
		return &RunResult{
			Success:            false,
			Results:            map[string]*pipeline.Result{},
			ExecutionOrder:     []string{},
			TotalExecutionTime: o.now().Sub(start).Milliseconds(),
			Error: &NodeError{
				NodeID: "validation",
				Err:    &pipeline.Fault{Code: pipeline.CodeValidationError, Message: err.Error()},
			},
		}
	}

	byID := make(map[string]*Node, len(def.Nodes))
	for i := range def.Nodes {
		byID[def.Nodes[i].ID] = &def.Nodes[i]
	}

	var res *RunResult
	if o.parallel {
		res = o.runParallel(ctx, def.ID, byID, order, rootInputs, base)
	} else {
		res = o.runSequential(ctx, def.ID, byID, order, rootInputs, base)
	}
	res.TotalExecutionTime = o.now().Sub(start).Milliseconds()

	o.logger.Info("dag finished",
		"dag_id", def.ID,
		"success", res.Success,
		"nodes_run", len(res.ExecutionOrder),
		"elapsed_ms", res.TotalExecutionTime)
	return res
}

// runSequential executes nodes one at a time in topological order.
func (o *Orchestrator) runSequential(ctx context.Context, dagID string, byID map[string]*Node, order []string, rootInputs map[string]any, base pipeline.Context) *RunResult {
	results := make(map[string]*pipeline.Result, len(order))
	executed := make([]string, 0, len(order))

	for _, id := range order {
		node := byID[id]
		result := o.runNode(ctx, node, results, rootInputs, base)

		results[id] = result
		executed = append(executed, id)

		if !result.Success {
			o.logger.Warn("dag node failed, stopping run",
				"dag_id", dagID, "node", id, "code", result.Metadata.Error.Code)
			return &RunResult{
				Success:        false,
				Results:        results,
				ExecutionOrder: executed,
				Error:          &NodeError{NodeID: id, Err: result.Metadata.Error},
			}
		}
	}

	return &RunResult{Success: true, Results: results, ExecutionOrder: executed}
}

// runNode executes one node through the pipeline with the accumulated
// results exposed as previous outputs.
func (o *Orchestrator) runNode(ctx context.Context, node *Node, results map[string]*pipeline.Result, rootInputs map[string]any, base pipeline.Context) *pipeline.Result {
	inputs := buildInputs(node, results, rootInputs)

	nodeCtx := base
	nodeCtx.PreviousOutputs = results

	o.logger.Debug("running dag node", "node", node.ID, "prompt_id", node.PromptID)
	result := o.exec.Execute(ctx, node.PromptID, node.Version, inputs, nodeCtx)
	if result == nil {
		// The executor contract forbids nil results; guard anyway so an
		// internal bug surfaces as a structured failure, not a panic.
		result = &pipeline.Result{
			Success: false,
			Metadata: pipeline.Metadata{
				PromptID: node.PromptID,
				Error: &pipeline.Fault{
					Code:    pipeline.CodeExecutionFailed,
					Message: fmt.Sprintf("pipeline returned no result for node %q", node.ID),
				},
			},
		}
	}
	return result
}
