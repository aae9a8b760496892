package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Context is the per-invocation identity envelope threaded through a run.
// It is created fresh for every call and never mutated afterwards; only the
// DAG orchestrator populates PreviousOutputs for downstream nodes.
type Context struct {
	Caller    string
	Timestamp time.Time
	RequestID string
	Provider  string

	// PreviousOutputs maps upstream node ids to their results. Populated
	// only during DAG execution; nil for standalone prompt runs.
	PreviousOutputs map[string]*Result
}

// NewContext builds a well-formed context for a caller with a fresh
// request id.
func NewContext(caller string) Context {
	return Context{
		Caller:    caller,
		Timestamp: time.Now().UTC(),
		RequestID: uuid.NewString(),
	}
}

// wellFormed reports whether the context satisfies the pipeline's minimum
// contract: a non-empty caller and request id.
func (c Context) wellFormed() bool {
	return c.Caller != "" && c.RequestID != ""
}
