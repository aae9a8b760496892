// Package dag validates and executes directed acyclic graphs of prompt
// invocations. Node declarations carry the authoritative dependency graph;
// edges are informational and never re-derived. Execution is fail-fast:
// the first failing node stops the run, preserving all partial results.
package dag

import (
	"fmt"

	"promptvault/internal/pipeline"
)

// Node is one prompt invocation within a composed workflow.
type Node struct {
	ID           string         `json:"id" yaml:"id"`
	PromptID     string         `json:"promptId" yaml:"promptId"`
	Version      string         `json:"version,omitempty" yaml:"version,omitempty"`
	Inputs       map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Edge is an informational from/to pair. The dependency graph ground truth
// is Node.Dependencies; edges may be redundant or inconsistent and are not
// consulted by validation or ordering.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Definition is a complete workflow graph.
type Definition struct {
	ID    string `json:"id" yaml:"id"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// NodeError identifies the failing node of a run, or "validation" when the
// graph itself was rejected before any node executed.
type NodeError struct {
	NodeID string          `json:"nodeId"`
	Err    *pipeline.Fault `json:"error"`
}

// RunResult is the outcome of one DAG run. Results and ExecutionOrder hold
// partial progress on failure — they are never discarded.
type RunResult struct {
	Success            bool                        `json:"success"`
	Results            map[string]*pipeline.Result `json:"results"`
	ExecutionOrder     []string                    `json:"executionOrder"`
	TotalExecutionTime int64                       `json:"totalExecutionTime"` // wall-clock milliseconds
	Error              *NodeError                  `json:"error,omitempty"`
}

// validate rejects duplicate node ids, dangling dependency references, and
// cycles, and returns a deterministic topological order: depth-first
// post-order with ties broken by input node list order.
func validate(def Definition) ([]string, error) {
	byID := make(map[string]*Node, len(def.Nodes))
	for i := range def.Nodes {
		node := &def.Nodes[i]
		if node.ID == "" {
			return nil, fmt.Errorf("node %d has no id", i)
		}
		if _, dup := byID[node.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", node.ID)
		}
		byID[node.ID] = node
	}

	for _, node := range def.Nodes {
		for _, dep := range node.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("node %q depends on unknown node %q", node.ID, dep)
			}
		}
	}

	// Three-color DFS: white (unvisited), gray (in progress), black (done).
	// Revisiting a gray node means the dependency chain loops back.
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(def.Nodes))
	order := make([]string, 0, len(def.Nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("cycle detected through node %q", id)
		}
		color[id] = gray
		for _, dep := range byID[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		order = append(order, id)
		return nil
	}

	for _, node := range def.Nodes {
		if err := visit(node.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// buildInputs merges a node's effective input map. Precedence, later wins:
// the node's literal inputs, then object-shaped outputs of its declared
// dependencies (in declaration order), then root inputs. Root inputs taking
// final precedence lets one root call parameterize every node uniformly.
func buildInputs(node *Node, results map[string]*pipeline.Result, rootInputs map[string]any) map[string]any {
	merged := make(map[string]any, len(node.Inputs)+len(rootInputs))
	for k, v := range node.Inputs {
		merged[k] = v
	}
	for _, dep := range node.Dependencies {
		if obj := results[dep].ObjectOutput(); obj != nil {
			for k, v := range obj {
				merged[k] = v
			}
		}
	}
	for k, v := range rootInputs {
		merged[k] = v
	}
	return merged
}
