package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 60 * time.Second

// classifyStatus maps an HTTP status to a package error class, or nil for
// statuses that are not transport-level failures.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrNetwork
	default:
		return nil
	}
}

// postJSON sends a JSON request and decodes the JSON response into out,
// classifying transport and status failures.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if classErr := classifyStatus(resp.StatusCode); classErr != nil {
		return fmt.Errorf("%w: status %d", classErr, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// OpenAIAdapter calls the OpenAI chat completions API.
type OpenAIAdapter struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

// NewOpenAIAdapter builds an adapter for the given key and model.
func NewOpenAIAdapter(apiKey, model string) *OpenAIAdapter {
	return &OpenAIAdapter{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://api.openai.com",
		Client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (a *OpenAIAdapter) Execute(ctx context.Context, req Request) (*Response, error) {
	body := map[string]any{
		"model":    a.Model,
		"messages": []map[string]string{{"role": "user", "content": req.Prompt}},
	}
	if t, ok := req.Settings["temperature"]; ok {
		body["temperature"] = t
	}
	if m, ok := req.Settings["maxTokens"]; ok {
		body["max_tokens"] = m
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	headers := map[string]string{"Authorization": "Bearer " + a.APIKey}
	if err := postJSON(ctx, a.Client, a.BaseURL+"/v1/chat/completions", headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}
	return &Response{
		Content:      out.Choices[0].Message.Content,
		TokenUsage:   out.Usage.TotalTokens,
		FinishReason: out.Choices[0].FinishReason,
	}, nil
}

func (a *OpenAIAdapter) Validate() error {
	if a.APIKey == "" {
		return fmt.Errorf("%w: missing OpenAI API key", ErrAuth)
	}
	return nil
}

func (a *OpenAIAdapter) Describe() Info {
	return Info{Name: "openai", Model: a.Model}
}

// AnthropicAdapter calls the Anthropic messages API.
type AnthropicAdapter struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

// NewAnthropicAdapter builds an adapter for the given key and model.
func NewAnthropicAdapter(apiKey, model string) *AnthropicAdapter {
	return &AnthropicAdapter{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://api.anthropic.com",
		Client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (a *AnthropicAdapter) Execute(ctx context.Context, req Request) (*Response, error) {
	maxTokens := 1024
	if m, ok := req.Settings["maxTokens"]; ok {
		if n, isFloat := m.(float64); isFloat {
			maxTokens = int(n)
		} else if n, isInt := m.(int); isInt {
			maxTokens = n
		}
	}
	body := map[string]any{
		"model":      a.Model,
		"max_tokens": maxTokens,
		"messages":   []map[string]string{{"role": "user", "content": req.Prompt}},
	}

	var out struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	headers := map[string]string{
		"x-api-key":         a.APIKey,
		"anthropic-version": "2023-06-01",
	}
	if err := postJSON(ctx, a.Client, a.BaseURL+"/v1/messages", headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Content) == 0 {
		return nil, fmt.Errorf("anthropic returned no content")
	}
	return &Response{
		Content:      out.Content[0].Text,
		TokenUsage:   out.Usage.InputTokens + out.Usage.OutputTokens,
		FinishReason: out.StopReason,
	}, nil
}

func (a *AnthropicAdapter) Validate() error {
	if a.APIKey == "" {
		return fmt.Errorf("%w: missing Anthropic API key", ErrAuth)
	}
	return nil
}

func (a *AnthropicAdapter) Describe() Info {
	return Info{Name: "anthropic", Model: a.Model}
}
