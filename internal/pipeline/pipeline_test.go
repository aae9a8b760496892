package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"promptvault/internal/access"
	"promptvault/internal/provider"
	"promptvault/internal/schema"
	"promptvault/internal/vault"
)

func newLibrary(t *testing.T, defs ...*vault.Definition) *vault.Cache {
	t.Helper()
	mem := vault.NewMemVault()
	for _, def := range defs {
		if err := mem.Put(def, &vault.Metadata{Name: def.ID}); err != nil {
			t.Fatalf("Put %s: %v", def.ID, err)
		}
	}
	return vault.NewCache(mem)
}

func summarizeDef() *vault.Definition {
	minLen, maxLen := 1, 5000
	return &vault.Definition{
		ID:       "summarize",
		Version:  "1.0.0",
		Template: "Summarize the following text: {{text}}",
		Inputs: map[string]schema.Spec{
			"text": {Type: schema.TypeString, Required: true, MinLength: &minLen, MaxLength: &maxLen},
		},
		Access: access.Policy{Type: access.Public},
		Owner:  "alice",
	}
}

func mockRegistry() *provider.Registry {
	r := provider.NewRegistry()
	r.Register("mock", provider.NewMockAdapter("mock-1"))
	return r
}

// failingAdapter always returns the configured error.
type failingAdapter struct{ err error }

func (f *failingAdapter) Execute(context.Context, provider.Request) (*provider.Response, error) {
	return nil, f.err
}
func (f *failingAdapter) Validate() error       { return nil }
func (f *failingAdapter) Describe() provider.Info { return provider.Info{Name: "failing"} }

func TestExecute_EndToEnd(t *testing.T) {
	lib := newLibrary(t, summarizeDef())
	e := New(lib, mockRegistry())

	res := e.Execute(context.Background(), "summarize", "", map[string]any{"text": "hello"}, NewContext("alice"))

	if !res.Success {
		t.Fatalf("expected success, got error %+v", res.Metadata.Error)
	}
	obj := res.ObjectOutput()
	if obj == nil {
		t.Fatal("expected object output")
	}
	content, _ := obj["content"].(string)
	if !strings.Contains(content, "hello") {
		t.Errorf("output %q does not reference the input", content)
	}
	if res.Signature == "" {
		t.Error("expected a non-empty signature")
	}
	if res.Metadata.PromptID != "summarize" {
		t.Errorf("PromptID = %s", res.Metadata.PromptID)
	}
	if res.Metadata.Version != "1.0.0" {
		t.Errorf("Version = %s, want resolved 1.0.0", res.Metadata.Version)
	}
	if res.Metadata.ExecutionID == "" {
		t.Error("expected an execution id")
	}

	// Counter moved exactly once.
	_, meta, err := lib.Get(context.Background(), "summarize", "")
	if err != nil {
		t.Fatal(err)
	}
	if meta.ExecutionCount != 1 {
		t.Errorf("ExecutionCount = %d, want 1", meta.ExecutionCount)
	}
}

func TestExecute_MalformedContext(t *testing.T) {
	e := New(newLibrary(t, summarizeDef()), mockRegistry())

	res := e.Execute(context.Background(), "summarize", "", map[string]any{"text": "hi"}, Context{})

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Metadata.Error.Code != CodeValidationError {
		t.Errorf("code = %s, want %s", res.Metadata.Error.Code, CodeValidationError)
	}
}

func TestExecute_PromptNotFound(t *testing.T) {
	e := New(newLibrary(t), mockRegistry())

	res := e.Execute(context.Background(), "ghost", "", nil, NewContext("alice"))

	if res.Metadata.Error == nil || res.Metadata.Error.Code != CodePromptNotFound {
		t.Errorf("expected %s, got %+v", CodePromptNotFound, res.Metadata.Error)
	}
}

func TestExecute_InvalidInputCarriesValidatorErrors(t *testing.T) {
	lib := newLibrary(t, summarizeDef())
	e := New(lib, mockRegistry())

	res := e.Execute(context.Background(), "summarize", "", map[string]any{}, NewContext("alice"))

	if res.Metadata.Error == nil || res.Metadata.Error.Code != CodeInvalidInput {
		t.Fatalf("expected %s, got %+v", CodeInvalidInput, res.Metadata.Error)
	}
	details, ok := res.Metadata.Error.Details.([]string)
	if !ok || len(details) == 0 {
		t.Fatalf("expected validator error list in details, got %v", res.Metadata.Error.Details)
	}
	if details[0] != "Required parameter 'text' is missing" {
		t.Errorf("details[0] = %q", details[0])
	}

	// Failed calls never move the counter.
	_, meta, err := lib.Get(context.Background(), "summarize", "")
	if err != nil {
		t.Fatal(err)
	}
	if meta.ExecutionCount != 0 {
		t.Errorf("ExecutionCount = %d after failed call, want 0", meta.ExecutionCount)
	}
}

func TestExecute_AccessDenied(t *testing.T) {
	def := summarizeDef()
	def.Access = access.Policy{Type: access.Private}
	e := New(newLibrary(t, def), mockRegistry())

	res := e.Execute(context.Background(), "summarize", "", map[string]any{"text": "hi"}, NewContext("stranger"))

	if res.Metadata.Error == nil || res.Metadata.Error.Code != CodeAccessDenied {
		t.Errorf("expected %s, got %+v", CodeAccessDenied, res.Metadata.Error)
	}
}

func TestExecute_OwnerPassesPrivateAccess(t *testing.T) {
	def := summarizeDef()
	def.Access = access.Policy{Type: access.Private}
	e := New(newLibrary(t, def), mockRegistry())

	res := e.Execute(context.Background(), "summarize", "", map[string]any{"text": "hi"}, NewContext("alice"))
	if !res.Success {
		t.Errorf("owner denied: %+v", res.Metadata.Error)
	}
}

func TestExecute_DefaultsAndOmittedKeys(t *testing.T) {
	def := &vault.Definition{
		ID:       "styled",
		Version:  "1.0.0",
		Template: "style={{style}} optional={{note}}",
		Inputs: map[string]schema.Spec{
			"style": {Type: schema.TypeString, Default: "concise"},
			"note":  {Type: schema.TypeString}, // no default, not required
		},
		Access: access.Policy{Type: access.Public},
	}
	e := New(newLibrary(t, def), mockRegistry())

	res := e.Execute(context.Background(), "styled", "", map[string]any{}, NewContext("alice"))
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res.Metadata.Error)
	}
	content := res.ObjectOutput()["content"].(string)
	if !strings.Contains(content, "style=concise") {
		t.Errorf("default not applied: %q", content)
	}
	// Omitted key stays an unresolved placeholder, not an empty string.
	if !strings.Contains(content, "optional={{note}}") {
		t.Errorf("omitted key was substituted: %q", content)
	}
}

func TestExecute_DependencyResolution(t *testing.T) {
	def := &vault.Definition{
		ID:           "compose",
		Version:      "1.0.0",
		Template:     "Upstream: {{dep.extract.content}}",
		Dependencies: []string{"extract"},
		Access:       access.Policy{Type: access.Public},
	}
	e := New(newLibrary(t, def), mockRegistry())

	ec := NewContext("alice")
	ec.PreviousOutputs = map[string]*Result{
		"extract": {Success: true, Output: map[string]any{"content": "X"}},
	}

	res := e.Execute(context.Background(), "compose", "", nil, ec)
	if !res.Success {
		t.Fatalf("unexpected failure: %+v", res.Metadata.Error)
	}
	if content := res.ObjectOutput()["content"].(string); !strings.Contains(content, "Upstream: X") {
		t.Errorf("dependency not substituted: %q", content)
	}
}

func TestExecute_UnresolvedDependencyStaysVerbatim(t *testing.T) {
	def := &vault.Definition{
		ID:           "compose",
		Version:      "1.0.0",
		Template:     "Upstream: {{dep.extract.content}}",
		Dependencies: []string{"extract"},
		Access:       access.Policy{Type: access.Public},
	}
	e := New(newLibrary(t, def), mockRegistry())

	// Standalone run: no previous outputs at all.
	res := e.Execute(context.Background(), "compose", "", nil, NewContext("alice"))
	if !res.Success {
		t.Fatalf("soft resolution must not fail the run: %+v", res.Metadata.Error)
	}
	if content := res.ObjectOutput()["content"].(string); !strings.Contains(content, "{{dep.extract.content}}") {
		t.Errorf("unresolved dependency placeholder altered: %q", content)
	}
}

func TestExecute_AdapterErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"rate limit", fmt.Errorf("%w: status 429", provider.ErrRateLimited), CodeRateLimitExceeded},
		{"network", fmt.Errorf("%w: connection refused", provider.ErrNetwork), CodeNetworkError},
		{"auth", fmt.Errorf("%w: bad key", provider.ErrAuth), CodeExecutionFailed},
		{"generic", errors.New("model exploded"), CodeExecutionFailed},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := provider.NewRegistry()
			r.Register("failing", &failingAdapter{err: c.err})
			e := New(newLibrary(t, summarizeDef()), r)

			res := e.Execute(context.Background(), "summarize", "", map[string]any{"text": "hi"}, NewContext("alice"))
			if res.Metadata.Error == nil || res.Metadata.Error.Code != c.want {
				t.Errorf("code = %+v, want %s", res.Metadata.Error, c.want)
			}
		})
	}
}

func TestExecute_UnknownProviderFails(t *testing.T) {
	e := New(newLibrary(t, summarizeDef()), provider.NewRegistry())

	ec := NewContext("alice")
	ec.Provider = "ghost"
	res := e.Execute(context.Background(), "summarize", "", map[string]any{"text": "hi"}, ec)
	if res.Metadata.Error == nil || res.Metadata.Error.Code != CodeExecutionFailed {
		t.Errorf("expected %s, got %+v", CodeExecutionFailed, res.Metadata.Error)
	}
}

// erroringLibrary simulates a chain collaborator failure.
type erroringLibrary struct{}

func (erroringLibrary) Get(context.Context, string, string) (*vault.Definition, *vault.Metadata, error) {
	return nil, nil, errors.New("chain rpc timeout")
}
func (erroringLibrary) RecordExecution(string, string, time.Time) {}

func TestExecute_VaultInfraFailureIsBlockchainError(t *testing.T) {
	e := New(erroringLibrary{}, mockRegistry())

	res := e.Execute(context.Background(), "summarize", "", map[string]any{"text": "hi"}, NewContext("alice"))
	if res.Metadata.Error == nil || res.Metadata.Error.Code != CodeBlockchainError {
		t.Errorf("expected %s, got %+v", CodeBlockchainError, res.Metadata.Error)
	}
}

func TestExecute_MeasuresTimeOnFailure(t *testing.T) {
	tick := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(5 * time.Millisecond)
		return tick
	}
	e := New(newLibrary(t), mockRegistry(), WithClock(clock))

	res := e.Execute(context.Background(), "ghost", "", nil, NewContext("alice"))
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Metadata.ExecutionTime <= 0 {
		t.Errorf("ExecutionTime = %d, want > 0 even on failure", res.Metadata.ExecutionTime)
	}
}
