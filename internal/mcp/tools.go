package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"promptvault/internal/dag"
	"promptvault/internal/logging"
	"promptvault/internal/pipeline"
	"promptvault/internal/schema"
	"promptvault/internal/search"
)

// --- execute_prompt ---

type executePromptInput struct {
	PromptID string         `json:"prompt_id" jsonschema:"prompt id to execute"`
	Version  string         `json:"version,omitempty" jsonschema:"prompt version (default latest)"`
	Inputs   map[string]any `json:"inputs,omitempty" jsonschema:"input parameter map"`
	Provider string         `json:"provider,omitempty" jsonschema:"model provider override (e.g. mock, openai, anthropic)"`
	Caller   string         `json:"caller,omitempty" jsonschema:"caller identity for access checks (default anonymous)"`
}

type executePromptOutput struct {
	Success       bool          `json:"success"`
	Output        any           `json:"output,omitempty"`
	Signature     string        `json:"signature,omitempty"`
	ExecutionID   string        `json:"execution_id"`
	PromptID      string        `json:"prompt_id"`
	Version       string        `json:"version,omitempty"`
	ExecutionTime int64         `json:"execution_time_ms"`
	Error         *faultPayload `json:"error,omitempty"`
}

func (s *Server) handleExecutePrompt(ctx context.Context, _ *sdkmcp.CallToolRequest, input executePromptInput) (*sdkmcp.CallToolResult, executePromptOutput, error) {
	if input.PromptID == "" {
		return nil, executePromptOutput{}, fmt.Errorf("prompt_id is required")
	}

	ec := pipeline.NewContext(callerOrDefault(input.Caller))
	ec.Provider = input.Provider

	res := s.executor.Execute(ctx, input.PromptID, input.Version, input.Inputs, ec)

	return nil, executePromptOutput{
		Success:       res.Success,
		Output:        res.Output,
		Signature:     res.Signature,
		ExecutionID:   res.Metadata.ExecutionID,
		PromptID:      res.Metadata.PromptID,
		Version:       res.Metadata.Version,
		ExecutionTime: res.Metadata.ExecutionTime,
		Error:         toFaultPayload(res.Metadata.Error),
	}, nil
}

// --- search_prompts ---

type searchPromptsInput struct {
	Query  string   `json:"query" jsonschema:"text to match against prompt names and descriptions"`
	Tags   []string `json:"tags,omitempty" jsonschema:"tags to filter by (substring match)"`
	Author string   `json:"author,omitempty" jsonschema:"exact author filter"`
	Limit  int      `json:"limit,omitempty" jsonschema:"maximum results (default 10)"`
}

type searchMatch struct {
	PromptID       string   `json:"prompt_id"`
	Version        string   `json:"version"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Author         string   `json:"author,omitempty"`
	ExecutionCount int64    `json:"execution_count"`
	Score          float64  `json:"score"`
}

type searchPromptsOutput struct {
	Matches []searchMatch `json:"matches"`
	Total   int           `json:"total"`
}

func (s *Server) handleSearchPrompts(ctx context.Context, _ *sdkmcp.CallToolRequest, input searchPromptsInput) (*sdkmcp.CallToolResult, searchPromptsOutput, error) {
	records, err := s.library.List(ctx)
	if err != nil {
		return nil, searchPromptsOutput{}, fmt.Errorf("list prompts: %w", err)
	}

	matches := search.Run(records, search.Query{
		Text:   input.Query,
		Tags:   input.Tags,
		Author: input.Author,
		Limit:  input.Limit,
	})

	out := searchPromptsOutput{Matches: make([]searchMatch, 0, len(matches)), Total: len(matches)}
	for _, m := range matches {
		out.Matches = append(out.Matches, searchMatch{
			PromptID:       m.ID,
			Version:        m.Version,
			Name:           m.Meta.Name,
			Description:    m.Meta.Description,
			Tags:           m.Meta.Tags,
			Author:         m.Meta.Author,
			ExecutionCount: m.Meta.ExecutionCount,
			Score:          m.Score,
		})
	}
	return nil, out, nil
}

// --- get_prompt_info ---

type getPromptInfoInput struct {
	PromptID string `json:"prompt_id" jsonschema:"prompt id to describe"`
	Version  string `json:"version,omitempty" jsonschema:"prompt version (default latest)"`
}

// getPromptInfoOutput carries Inputs as plain JSON objects rather than
// schema.Spec values: the tool schema is derived from this type by
// reflection, and a self-referential type (Spec.Properties) cannot be
// expressed there.
type getPromptInfoOutput struct {
	PromptID       string         `json:"prompt_id,omitempty"`
	Version        string         `json:"version,omitempty"`
	Name           string         `json:"name,omitempty"`
	Description    string         `json:"description,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Author         string         `json:"author,omitempty"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	Dependencies   []string       `json:"dependencies,omitempty"`
	OutputSchema   map[string]any `json:"output_schema,omitempty"`
	AccessType     string         `json:"access_type,omitempty"`
	ExecutionCount int64          `json:"execution_count"`
	LastExecutedAt *time.Time     `json:"last_executed_at,omitempty"`
	Error          *faultPayload  `json:"error,omitempty"`
}

// inputSpecsToJSON flattens declared parameter specs into generic JSON
// objects for tool output.
func inputSpecsToJSON(specs map[string]schema.Spec) (map[string]any, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(specs)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleGetPromptInfo(ctx context.Context, _ *sdkmcp.CallToolRequest, input getPromptInfoInput) (*sdkmcp.CallToolResult, getPromptInfoOutput, error) {
	if input.PromptID == "" {
		return nil, getPromptInfoOutput{}, fmt.Errorf("prompt_id is required")
	}

	def, meta, err := s.library.Get(ctx, input.PromptID, input.Version)
	if err != nil {
		return nil, getPromptInfoOutput{Error: lookupFault(input.PromptID, input.Version, err)}, nil
	}

	inputs, err := inputSpecsToJSON(def.Inputs)
	if err != nil {
		return nil, getPromptInfoOutput{}, fmt.Errorf("encode input specs: %w", err)
	}

	out := getPromptInfoOutput{
		PromptID:       def.ID,
		Version:        def.Version,
		Name:           meta.Name,
		Description:    meta.Description,
		Tags:           meta.Tags,
		Author:         meta.Author,
		Inputs:         inputs,
		Dependencies:   def.Dependencies,
		OutputSchema:   def.OutputSchema,
		AccessType:     string(def.Access.Type),
		ExecutionCount: meta.ExecutionCount,
	}
	if !meta.LastExecutedAt.IsZero() {
		t := meta.LastExecutedAt
		out.LastExecutedAt = &t
	}
	return nil, out, nil
}

// --- validate_inputs ---

type validateInputsInput struct {
	PromptID string         `json:"prompt_id" jsonschema:"prompt id whose schema to validate against"`
	Version  string         `json:"version,omitempty" jsonschema:"prompt version (default latest)"`
	Inputs   map[string]any `json:"inputs,omitempty" jsonschema:"candidate input map"`
}

type validateInputsOutput struct {
	Valid    bool          `json:"valid"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Error    *faultPayload `json:"error,omitempty"`
}

func (s *Server) handleValidateInputs(ctx context.Context, _ *sdkmcp.CallToolRequest, input validateInputsInput) (*sdkmcp.CallToolResult, validateInputsOutput, error) {
	if input.PromptID == "" {
		return nil, validateInputsOutput{}, fmt.Errorf("prompt_id is required")
	}

	def, _, err := s.library.Get(ctx, input.PromptID, input.Version)
	if err != nil {
		return nil, validateInputsOutput{Error: lookupFault(input.PromptID, input.Version, err)}, nil
	}

	report := schema.Validate(input.Inputs, def.Inputs)
	return nil, validateInputsOutput{
		Valid:    report.Valid,
		Errors:   report.Errors,
		Warnings: report.Warnings,
	}, nil
}

// --- execute_dag ---

type executeDagInput struct {
	DagID      string         `json:"dag_id,omitempty" jsonschema:"workflow id for logging"`
	Nodes      []dag.Node     `json:"nodes" jsonschema:"prompt invocation nodes with dependencies"`
	Edges      []dag.Edge     `json:"edges,omitempty" jsonschema:"informational edges; node dependencies are authoritative"`
	RootInputs map[string]any `json:"root_inputs,omitempty" jsonschema:"inputs applied to every node with final precedence"`
	Caller     string         `json:"caller,omitempty" jsonschema:"caller identity for access checks (default anonymous)"`
	Provider   string         `json:"provider,omitempty" jsonschema:"model provider override for all nodes"`
	Parallel   bool           `json:"parallel,omitempty" jsonschema:"run independent branches concurrently"`
}

type dagNodeError struct {
	NodeID string        `json:"node_id"`
	Error  *faultPayload `json:"error"`
}

type executeDagOutput struct {
	Success            bool                           `json:"success"`
	Results            map[string]executePromptOutput `json:"results"`
	ExecutionOrder     []string                       `json:"execution_order"`
	TotalExecutionTime int64                          `json:"total_execution_time_ms"`
	Error              *dagNodeError                  `json:"error,omitempty"`
}

func (s *Server) handleExecuteDag(ctx context.Context, _ *sdkmcp.CallToolRequest, input executeDagInput) (*sdkmcp.CallToolResult, executeDagOutput, error) {
	if len(input.Nodes) == 0 {
		return nil, executeDagOutput{}, fmt.Errorf("nodes is required")
	}

	ec := pipeline.NewContext(callerOrDefault(input.Caller))
	ec.Provider = input.Provider

	orchestrator := s.sequential
	if input.Parallel {
		orchestrator = s.parallel
	}

	def := dag.Definition{ID: input.DagID, Nodes: input.Nodes, Edges: input.Edges}
	res := orchestrator.Run(ctx, def, input.RootInputs, ec)

	logging.New("mcp").Info("execute_dag finished",
		"dag_id", input.DagID, "success", res.Success, "nodes_run", len(res.ExecutionOrder))

	out := executeDagOutput{
		Success:            res.Success,
		Results:            make(map[string]executePromptOutput, len(res.Results)),
		ExecutionOrder:     res.ExecutionOrder,
		TotalExecutionTime: res.TotalExecutionTime,
	}
	for id, r := range res.Results {
		out.Results[id] = executePromptOutput{
			Success:       r.Success,
			Output:        r.Output,
			Signature:     r.Signature,
			ExecutionID:   r.Metadata.ExecutionID,
			PromptID:      r.Metadata.PromptID,
			Version:       r.Metadata.Version,
			ExecutionTime: r.Metadata.ExecutionTime,
			Error:         toFaultPayload(r.Metadata.Error),
		}
	}
	if res.Error != nil {
		out.Error = &dagNodeError{NodeID: res.Error.NodeID, Error: toFaultPayload(res.Error.Err)}
	}
	return nil, out, nil
}
