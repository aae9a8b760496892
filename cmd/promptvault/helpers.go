package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"promptvault/internal/pipeline"
	"promptvault/internal/provider"
	"promptvault/internal/vault"
)

// loadLibrary reads the prompt library from dir (YAML files) and wraps it in
// the process-lifetime execution-count cache.
func loadLibrary(dir string) (*vault.Cache, error) {
	mem, err := vault.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load prompt library: %w", err)
	}
	return vault.NewCache(mem), nil
}

// buildRegistry assembles the provider table. The mock provider is always
// available; OpenAI and Anthropic are registered when their API keys are set.
func buildRegistry() *provider.Registry {
	r := provider.NewRegistry()
	r.Register("mock", provider.NewMockAdapter(""))
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		r.Register("openai", provider.NewOpenAIAdapter(key, os.Getenv("OPENAI_MODEL")))
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		r.Register("anthropic", provider.NewAnthropicAdapter(key, os.Getenv("ANTHROPIC_MODEL")))
	}
	return r
}

// newExecutor wires the standard pipeline over a library directory.
func newExecutor(promptDir string) (*vault.Cache, *pipeline.Executor, *provider.Registry, error) {
	library, err := loadLibrary(promptDir)
	if err != nil {
		return nil, nil, nil, err
	}
	registry := buildRegistry()
	return library, pipeline.New(library, registry), registry, nil
}

// parseInputs merges repeatable k=v pairs and an optional JSON object into
// one input map. JSON values win over k=v pairs on key collision.
func parseInputs(pairs []string, jsonBlob string) (map[string]any, error) {
	inputs := make(map[string]any)
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --input %q, want key=value", p)
		}
		inputs[k] = v
	}
	if jsonBlob != "" {
		var fromJSON map[string]any
		if err := json.Unmarshal([]byte(jsonBlob), &fromJSON); err != nil {
			return nil, fmt.Errorf("parse --inputs-json: %w", err)
		}
		for k, v := range fromJSON {
			inputs[k] = v
		}
	}
	return inputs, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
