package dag

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"promptvault/internal/pipeline"
)

// runParallel executes the DAG wave by wave: each wave holds every node
// whose dependencies have all completed, and the whole wave runs
// concurrently via errgroup. Waves preserve the dependency partial order,
// and fail-fast means a failed wave is the last one — nodes in the failing
// wave were already started and are allowed to finish, but no later wave
// begins. Within a wave, executionOrder and the reported failing node
// follow topological order, keeping runs deterministic.
func (o *Orchestrator) runParallel(ctx context.Context, dagID string, byID map[string]*Node, order []string, rootInputs map[string]any, base pipeline.Context) *RunResult {
	results := make(map[string]*pipeline.Result, len(order))
	executed := make([]string, 0, len(order))
	done := make(map[string]bool, len(order))

	for len(done) < len(order) {
		wave := nextWave(byID, order, done)

		// Freeze the accumulated results so concurrent node runs read a
		// stable snapshot.
		snapshot := make(map[string]*pipeline.Result, len(results))
		for k, v := range results {
			snapshot[k] = v
		}

		var mu sync.Mutex
		waveResults := make(map[string]*pipeline.Result, len(wave))

		g, gctx := errgroup.WithContext(ctx)
		for _, id := range wave {
			node := byID[id]
			g.Go(func() error {
				result := o.runNode(gctx, node, snapshot, rootInputs, base)
				mu.Lock()
				waveResults[node.ID] = result
				mu.Unlock()
				return nil
			})
		}
		// Node failures are carried in results, never as goroutine errors,
		// so started siblings always finish.
		_ = g.Wait()

		var failed *NodeError
		for _, id := range wave {
			result := waveResults[id]
			results[id] = result
			executed = append(executed, id)
			done[id] = true
			if !result.Success && failed == nil {
				failed = &NodeError{NodeID: id, Err: result.Metadata.Error}
			}
		}

		if failed != nil {
			o.logger.Warn("dag wave failed, stopping run",
				"dag_id", dagID, "node", failed.NodeID, "code", failed.Err.Code)
			return &RunResult{
				Success:        false,
				Results:        results,
				ExecutionOrder: executed,
				Error:          failed,
			}
		}
	}

	return &RunResult{Success: true, Results: results, ExecutionOrder: executed}
}

// nextWave returns, in topological order, every not-yet-run node whose
// dependencies have all completed. Validation guarantees progress: an
// acyclic graph always has at least one ready node until all are done.
func nextWave(byID map[string]*Node, order []string, done map[string]bool) []string {
	var wave []string
	for _, id := range order {
		if done[id] {
			continue
		}
		ready := true
		for _, dep := range byID[id].Dependencies {
			if !done[dep] {
				ready = false
				break
			}
		}
		if ready {
			wave = append(wave, id)
		}
	}
	return wave
}
