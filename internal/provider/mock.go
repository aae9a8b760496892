package provider

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter is a deterministic in-process model used by tests, the demo
// library, and offline runs. It echoes the rendered prompt back so callers
// can assert on rendered content end to end.
type MockAdapter struct {
	// Model label reported by Describe; purely cosmetic.
	Model string
}

// NewMockAdapter returns a mock provider with the given model label.
func NewMockAdapter(model string) *MockAdapter {
	if model == "" {
		model = "mock-1"
	}
	return &MockAdapter{Model: model}
}

// Execute returns a canned completion embedding the rendered prompt.
// Token usage is approximated as whitespace-separated word count.
func (m *MockAdapter) Execute(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Response{
		Content:      fmt.Sprintf("[%s] %s", m.Model, req.Prompt),
		TokenUsage:   len(strings.Fields(req.Prompt)),
		FinishReason: "stop",
	}, nil
}

func (m *MockAdapter) Validate() error {
	return nil
}

func (m *MockAdapter) Describe() Info {
	return Info{Name: "mock", Model: m.Model}
}
