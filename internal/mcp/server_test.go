package mcp_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"promptvault/internal/access"
	mcpserver "promptvault/internal/mcp"
	"promptvault/internal/pipeline"
	"promptvault/internal/provider"
	"promptvault/internal/schema"
	"promptvault/internal/vault"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})))
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) *mcpserver.Server {
	t.Helper()

	mem := vault.NewMemVault()
	put := func(def *vault.Definition, meta *vault.Metadata) {
		t.Helper()
		if err := mem.Put(def, meta); err != nil {
			t.Fatalf("Put(%s): %v", def.ID, err)
		}
	}

	put(&vault.Definition{
		ID:       "summarize",
		Version:  "1.0.0",
		Template: "Summarize: {{text}}",
		Inputs: map[string]schema.Spec{
			"text": {Type: schema.TypeString, Required: true},
			"options": {Type: schema.TypeObject, Properties: map[string]schema.Spec{
				"style": {Type: schema.TypeString},
			}},
		},
		Access:          access.Policy{Type: access.Public},
		DefaultProvider: "mock",
	}, &vault.Metadata{
		Name:        "Summarizer",
		Description: "Condenses text into a short summary",
		Tags:        []string{"text", "summary"},
		Author:      "alice",
	})

	put(&vault.Definition{
		ID:       "secret-notes",
		Version:  "1.0.0",
		Template: "Notes: {{topic}}",
		Inputs: map[string]schema.Spec{
			"topic": {Type: schema.TypeString, Required: true},
		},
		Access:          access.Policy{Type: access.Private},
		Owner:           "alice",
		DefaultProvider: "mock",
	}, &vault.Metadata{
		Name:   "Secret Notes",
		Author: "alice",
	})

	put(&vault.Definition{
		ID:       "expand",
		Version:  "1.0.0",
		Template: "Expand on: {{dep.summarize.content}}",
		Dependencies: []string{
			"summarize",
		},
		Access:          access.Policy{Type: access.Public},
		DefaultProvider: "mock",
	}, &vault.Metadata{
		Name:   "Expander",
		Author: "bob",
	})

	library := vault.NewCache(mem)

	registry := provider.NewRegistry()
	registry.Register("mock", provider.NewMockAdapter("mock-1"))

	executor := pipeline.New(library, registry)
	return mcpserver.NewServer(library, executor, registry)
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

// callTool invokes a tool and decodes the JSON text content into a map.
func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		for _, c := range res.Content {
			if tc, ok := c.(*sdkmcp.TextContent); ok {
				t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
			}
		}
		t.Fatalf("CallTool(%s) returned error", name)
	}
	result := make(map[string]any)
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			if err := json.Unmarshal([]byte(tc.Text), &result); err != nil {
				t.Fatalf("unmarshal tool result: %v (text: %s)", err, tc.Text)
			}
			return result
		}
	}
	t.Fatalf("no text content in tool result")
	return nil
}

func TestServer_ToolDiscovery(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	want := map[string]bool{
		"execute_prompt":  false,
		"search_prompts":  false,
		"get_prompt_info": false,
		"validate_inputs": false,
		"execute_dag":     false,
	}
	for _, tool := range tools.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("tool %q not found in ListTools", name)
		}
	}
}

func TestServer_ExecutePrompt(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "execute_prompt", map[string]any{
		"prompt_id": "summarize",
		"inputs":    map[string]any{"text": "hello world"},
	})

	if result["success"] != true {
		t.Fatalf("execute_prompt failed: %v", result["error"])
	}
	output, ok := result["output"].(map[string]any)
	if !ok {
		t.Fatalf("output is not an object: %T", result["output"])
	}
	content, _ := output["content"].(string)
	if !strings.Contains(content, "Summarize: hello world") {
		t.Errorf("content = %q, want rendered template inside", content)
	}
	if sig, _ := result["signature"].(string); sig == "" {
		t.Error("successful execution carries no signature")
	}
	if result["execution_id"] == "" {
		t.Error("execution_id is empty")
	}
}

func TestServer_ExecutePrompt_NotFound(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "execute_prompt", map[string]any{
		"prompt_id": "no-such-prompt",
	})

	if result["success"] != false {
		t.Fatal("expected failure for unknown prompt")
	}
	fault, ok := result["error"].(map[string]any)
	if !ok {
		t.Fatalf("error payload missing: %v", result)
	}
	if fault["code"] != "PROMPT_NOT_FOUND" {
		t.Errorf("code = %v, want PROMPT_NOT_FOUND", fault["code"])
	}
	if result["signature"] != nil && result["signature"] != "" {
		t.Errorf("failed execution must not carry a signature, got %v", result["signature"])
	}
}

func TestServer_ExecutePrompt_AccessDenied(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "execute_prompt", map[string]any{
		"prompt_id": "secret-notes",
		"inputs":    map[string]any{"topic": "launch"},
	})

	if result["success"] != false {
		t.Fatal("anonymous caller should be denied on a private prompt")
	}
	fault, _ := result["error"].(map[string]any)
	if fault["code"] != "ACCESS_DENIED" {
		t.Errorf("code = %v, want ACCESS_DENIED", fault["code"])
	}

	// The owner gets through.
	result = callTool(t, ctx, session, "execute_prompt", map[string]any{
		"prompt_id": "secret-notes",
		"inputs":    map[string]any{"topic": "launch"},
		"caller":    "alice",
	})
	if result["success"] != true {
		t.Fatalf("owner should be granted: %v", result["error"])
	}
}

func TestServer_ValidateInputs(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "validate_inputs", map[string]any{
		"prompt_id": "summarize",
		"inputs":    map[string]any{"extra": 1},
	})

	if result["valid"] != false {
		t.Fatal("missing required parameter should be invalid")
	}
	errs, _ := result["errors"].([]any)
	if len(errs) != 1 || errs[0] != "Required parameter 'text' is missing" {
		t.Errorf("errors = %v", errs)
	}
	warns, _ := result["warnings"].([]any)
	if len(warns) != 1 || warns[0] != "Unexpected parameter 'extra' will be ignored" {
		t.Errorf("warnings = %v", warns)
	}
}

func TestServer_GetPromptInfo(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "get_prompt_info", map[string]any{
		"prompt_id": "summarize",
	})

	if result["name"] != "Summarizer" {
		t.Errorf("name = %v", result["name"])
	}
	if result["access_type"] != "public" {
		t.Errorf("access_type = %v", result["access_type"])
	}
	inputs, _ := result["inputs"].(map[string]any)
	if _, ok := inputs["text"]; !ok {
		t.Errorf("inputs missing 'text': %v", inputs)
	}
	// Nested object specs survive the generic-JSON flattening.
	options, _ := inputs["options"].(map[string]any)
	props, _ := options["properties"].(map[string]any)
	if _, ok := props["style"]; !ok {
		t.Errorf("nested property 'style' lost in inputs: %v", inputs)
	}

	// Unknown prompt is reported in the payload, not as a protocol error.
	result = callTool(t, ctx, session, "get_prompt_info", map[string]any{
		"prompt_id": "no-such-prompt",
	})
	fault, _ := result["error"].(map[string]any)
	if fault["code"] != "PROMPT_NOT_FOUND" {
		t.Errorf("code = %v, want PROMPT_NOT_FOUND", fault["code"])
	}
}

func TestServer_SearchPrompts(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "search_prompts", map[string]any{
		"query": "summar",
	})

	matches, _ := result["matches"].([]any)
	if len(matches) != 1 {
		t.Fatalf("matches = %v, want exactly the summarizer", matches)
	}
	first, _ := matches[0].(map[string]any)
	if first["prompt_id"] != "summarize" {
		t.Errorf("prompt_id = %v", first["prompt_id"])
	}

	result = callTool(t, ctx, session, "search_prompts", map[string]any{
		"query":  "",
		"author": "bob",
	})
	matches, _ = result["matches"].([]any)
	if len(matches) != 1 {
		t.Fatalf("author filter returned %d matches", len(matches))
	}
}

func TestServer_ExecuteDag(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "execute_dag", map[string]any{
		"dag_id": "chain",
		"nodes": []map[string]any{
			{"id": "summarize", "promptId": "summarize", "inputs": map[string]any{"text": "hello"}},
			{"id": "expand", "promptId": "expand", "dependencies": []string{"summarize"}},
		},
	})

	if result["success"] != true {
		t.Fatalf("dag failed: %v", result["error"])
	}
	order, _ := result["execution_order"].([]any)
	if len(order) != 2 || order[0] != "summarize" || order[1] != "expand" {
		t.Errorf("execution_order = %v", order)
	}

	results, _ := result["results"].(map[string]any)
	expand, _ := results["expand"].(map[string]any)
	output, _ := expand["output"].(map[string]any)
	content, _ := output["content"].(string)
	if !strings.Contains(content, "Expand on: [mock-1] Summarize: hello") {
		t.Errorf("dependent node content = %q", content)
	}
}

func TestServer_ExecuteDag_CycleRejected(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "execute_dag", map[string]any{
		"nodes": []map[string]any{
			{"id": "a", "promptId": "summarize", "dependencies": []string{"b"}},
			{"id": "b", "promptId": "summarize", "dependencies": []string{"a"}},
		},
	})

	if result["success"] != false {
		t.Fatal("cyclic dag must fail")
	}
	results, _ := result["results"].(map[string]any)
	if len(results) != 0 {
		t.Errorf("no node may execute on validation failure, got %v", results)
	}
	fault, _ := result["error"].(map[string]any)
	if fault["node_id"] != "validation" {
		t.Errorf("node_id = %v, want validation", fault["node_id"])
	}
	inner, _ := fault["error"].(map[string]any)
	if inner["code"] != "VALIDATION_ERROR" {
		t.Errorf("code = %v, want VALIDATION_ERROR", inner["code"])
	}
}
