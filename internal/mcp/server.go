// Package mcp exposes the prompt vault over the Model Context Protocol.
// Five tools cover the declared operation surface: execute a prompt, search
// the library, fetch prompt info, validate inputs without executing, and
// execute a DAG. Execution failures are returned as structured payloads,
// never as protocol faults.
package mcp

import (
	"errors"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"promptvault/internal/dag"
	"promptvault/internal/pipeline"
	"promptvault/internal/provider"
	"promptvault/internal/vault"
)

// DefaultCaller is the identity assumed when a tool call names no caller.
const DefaultCaller = "anonymous"

// Server wires the vault, pipeline, and orchestrator behind MCP tools.
type Server struct {
	MCPServer *sdkmcp.Server

	library    *vault.Cache
	executor   *pipeline.Executor
	sequential *dag.Orchestrator
	parallel   *dag.Orchestrator
	providers  *provider.Registry
}

// NewServer builds an MCP server over a prompt library and provider table.
func NewServer(library *vault.Cache, executor *pipeline.Executor, providers *provider.Registry) *Server {
	s := &Server{
		library:    library,
		executor:   executor,
		sequential: dag.New(executor),
		parallel:   dag.New(executor, dag.WithParallel()),
		providers:  providers,
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "promptvault", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "execute_prompt",
		Description: "Execute a single prompt by id with the given inputs. Returns the model output, execution metadata, and a signature on success.",
	}, s.handleExecutePrompt)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "search_prompts",
		Description: "Search available prompts by text, tags, and author. Returns ranked matches.",
	}, s.handleSearchPrompts)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_prompt_info",
		Description: "Fetch a prompt's definition metadata: input schema, dependencies, access policy, and usage counters.",
	}, s.handleGetPromptInfo)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "validate_inputs",
		Description: "Validate an input map against a prompt's declared schema without executing it.",
	}, s.handleValidateInputs)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "execute_dag",
		Description: "Execute a DAG of prompt nodes. Upstream outputs feed downstream inputs; the run is fail-fast and partial results are preserved.",
	}, s.handleExecuteDag)
}

// faultPayload is the structured error carried in tool outputs.
type faultPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func toFaultPayload(f *pipeline.Fault) *faultPayload {
	if f == nil {
		return nil
	}
	return &faultPayload{Code: f.Code, Message: f.Message, Details: f.Details}
}

// callerOrDefault normalizes the optional caller identity field.
func callerOrDefault(caller string) string {
	if caller == "" {
		return DefaultCaller
	}
	return caller
}

// lookupFault converts a vault lookup error into a structured payload.
func lookupFault(id, version string, err error) *faultPayload {
	code := pipeline.CodeBlockchainError
	if errors.Is(err, vault.ErrNotFound) {
		code = pipeline.CodePromptNotFound
	}
	return &faultPayload{
		Code:    code,
		Message: fmt.Sprintf("prompt %s: %v", vault.Key(id, version), err),
	}
}
