// Package pipeline executes a single prompt invocation as a forward-only
// state machine: context check → vault lookup → input validation → access
// check → input preparation → dependency resolution → template render →
// model invocation → signature → result packaging. Any stage failure
// short-circuits into a structured failed result; the pipeline never
// returns a raw error to its caller.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"promptvault/internal/access"
	"promptvault/internal/provider"
	"promptvault/internal/schema"
	"promptvault/internal/signature"
	"promptvault/internal/template"
	"promptvault/internal/vault"
)

// Library is the prompt source the executor reads from. *vault.Cache is the
// canonical implementation; the interface keeps tests free to substitute.
type Library interface {
	Get(ctx context.Context, id, version string) (*vault.Definition, *vault.Metadata, error)
	RecordExecution(id, version string, at time.Time)
}

// Executor drives the prompt execution state machine.
type Executor struct {
	library   Library
	providers *provider.Registry
	holdings  access.HoldingChecker
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithHoldings wires the chain boundary used by token/NFT gated policies.
func WithHoldings(h access.HoldingChecker) Option {
	return func(e *Executor) { e.holdings = h }
}

// WithLogger overrides the executor's component logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New builds an Executor over a prompt library and a provider table.
func New(library Library, providers *provider.Registry, opts ...Option) *Executor {
	e := &Executor{
		library:   library,
		providers: providers,
		logger:    slog.Default().With(slog.String("component", "pipeline")),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one prompt invocation. The returned result is never nil and
// always carries metadata; failures are packaged, not raised.
func (e *Executor) Execute(ctx context.Context, promptID, version string, inputs map[string]any, ec Context) *Result {
	start := e.now()
	executionID := uuid.NewString()

	fail := func(code, message string, details any) *Result {
		e.logger.Debug("execution failed",
			"execution_id", executionID, "prompt_id", promptID, "code", code, "message", message)
		return &Result{
			Success: false,
			Metadata: Metadata{
				ExecutionID:   executionID,
				PromptID:      promptID,
				Version:       version,
				ExecutionTime: e.now().Sub(start).Milliseconds(),
				Timestamp:     start,
				Error:         &Fault{Code: code, Message: message, Details: details},
			},
		}
	}

	// 1. Context check.
	if !ec.wellFormed() {
		return fail(CodeValidationError, "execution context requires a caller and a request id", nil)
	}

	// Vault lookup.
	def, _, err := e.library.Get(ctx, promptID, version)
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			return fail(CodePromptNotFound, "prompt not found: "+vault.Key(promptID, version), nil)
		}
		return fail(CodeBlockchainError, "vault lookup failed: "+err.Error(), nil)
	}
	resolvedVersion := def.Version

	// 2. Input validation.
	report := schema.Validate(inputs, def.Inputs)
	for _, w := range report.Warnings {
		e.logger.Warn("input warning", "prompt_id", promptID, "warning", w)
	}
	if !report.Valid {
		return fail(CodeInvalidInput, "input validation failed", report.Errors)
	}

	// 3. Access check.
	if err := access.Check(ctx, def.Access, ec.Caller, def.Owner, e.holdings, e.now()); err != nil {
		var denied *access.DeniedError
		if errors.As(err, &denied) {
			return fail(CodeAccessDenied, denied.Reason, nil)
		}
		return fail(CodeBlockchainError, "access check failed: "+err.Error(), nil)
	}

	// 4. Input preparation: pass-through, default, or omit.
	execInputs := prepareInputs(inputs, def.Inputs)

	// 5. Dependency resolution (soft): unresolved dependencies yield no
	// substitution, leaving their placeholders for the renderer to pass
	// through verbatim.
	depValues := resolveDependencies(def.Dependencies, ec.PreviousOutputs)

	// 6. Template render.
	rendered := template.Render(def.Template, execInputs, depValues)

	// 7. Model invocation.
	providerName := ec.Provider
	if providerName == "" {
		providerName = def.DefaultProvider
	}
	adapter, err := e.providers.Resolve(providerName)
	if err != nil {
		return fail(CodeExecutionFailed, err.Error(), nil)
	}
	resp, err := adapter.Execute(ctx, provider.Request{
		Prompt:    rendered,
		Settings:  def.Settings,
		RequestID: ec.RequestID,
	})
	if err != nil {
		return fail(classifyAdapterError(err), err.Error(), nil)
	}

	output := map[string]any{"content": resp.Content}
	if resp.TokenUsage > 0 {
		output["tokenUsage"] = resp.TokenUsage
	}
	if resp.FinishReason != "" {
		output["finishReason"] = resp.FinishReason
	}

	// 8. Signature over the original caller input and the model output.
	sig, err := signature.Sign(executionID, promptID, resolvedVersion, inputs, output, ec.Caller, ec.Timestamp)
	if err != nil {
		return fail(CodeExecutionFailed, "signature generation failed: "+err.Error(), nil)
	}

	// 9. Package. The execution counter moves exactly once per successful run.
	finished := e.now()
	e.library.RecordExecution(promptID, resolvedVersion, finished)

	e.logger.Info("prompt executed",
		"execution_id", executionID,
		"prompt_id", promptID,
		"version", resolvedVersion,
		"caller", ec.Caller,
		"provider", adapter.Describe().Name,
		"elapsed_ms", finished.Sub(start).Milliseconds())

	return &Result{
		Success: true,
		Output:  output,
		Metadata: Metadata{
			ExecutionID:   executionID,
			PromptID:      promptID,
			Version:       resolvedVersion,
			ExecutionTime: finished.Sub(start).Milliseconds(),
			Timestamp:     start,
		},
		Signature: sig,
	}
}

// prepareInputs builds the execution input map: declared keys present in the
// caller's map pass through; absent keys with defaults take the default;
// absent keys without defaults are omitted entirely, never set to nil.
func prepareInputs(inputs map[string]any, specs map[string]schema.Spec) map[string]any {
	prepared := make(map[string]any, len(specs))
	for name, spec := range specs {
		if value, ok := inputs[name]; ok {
			prepared[name] = value
			continue
		}
		if spec.Default != nil {
			prepared[name] = spec.Default
		}
	}
	return prepared
}

// resolveDependencies collects successful upstream outputs for the declared
// dependency ids. Missing or failed dependencies are skipped.
func resolveDependencies(deps []string, previous map[string]*Result) map[string]any {
	if len(deps) == 0 || previous == nil {
		return nil
	}
	resolved := make(map[string]any, len(deps))
	for _, id := range deps {
		result, ok := previous[id]
		if !ok || result == nil || !result.Success {
			continue
		}
		resolved[id] = result.Output
	}
	return resolved
}

// classifyAdapterError maps provider error classes 1:1 onto result codes.
// Auth failures have no dedicated code in the taxonomy and fall through to
// EXECUTION_FAILED with the cause preserved in the message.
func classifyAdapterError(err error) string {
	switch {
	case errors.Is(err, provider.ErrRateLimited):
		return CodeRateLimitExceeded
	case errors.Is(err, provider.ErrNetwork):
		return CodeNetworkError
	default:
		return CodeExecutionFailed
	}
}
