package pipeline

import "time"

// Metadata describes one execution attempt, success or failure.
type Metadata struct {
	ExecutionID   string    `json:"executionId"`
	PromptID      string    `json:"promptId"`
	Version       string    `json:"version,omitempty"`
	ExecutionTime int64     `json:"executionTime"` // wall-clock milliseconds
	Timestamp     time.Time `json:"timestamp"`
	Error         *Fault    `json:"error,omitempty"`
}

// Result is the outcome of one pipeline run. Output is nil on failure;
// Signature is present only on success.
type Result struct {
	Success   bool     `json:"success"`
	Output    any      `json:"output"`
	Metadata  Metadata `json:"metadata"`
	Signature string   `json:"signature,omitempty"`
}

// ObjectOutput returns the result's output as a string-keyed object, or nil
// when the output is absent or scalar. The DAG orchestrator merges only
// object-shaped outputs into downstream inputs.
func (r *Result) ObjectOutput() map[string]any {
	if r == nil || !r.Success {
		return nil
	}
	obj, ok := r.Output.(map[string]any)
	if !ok {
		return nil
	}
	return obj
}
