package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIOpts configures the chat-completions source (OpenAI-compatible API).
type OpenAIOpts struct {
	BaseURL string // e.g. https://api.openai.com
	APIKey  string
	Model   string // e.g. gpt-4o-mini
	Timeout time.Duration
}

// OpenAIClient implements Source and Advisory over the chat completions
// endpoint. Any transport or parse failure surfaces as an error; the
// caller decides what degraded behavior looks like.
type OpenAIClient struct {
	opts   OpenAIOpts
	client *http.Client
}

// NewOpenAIClient builds a client, or nil when no API key is set.
func NewOpenAIClient(opts OpenAIOpts) *OpenAIClient {
	if opts.APIKey == "" || opts.BaseURL == "" {
		return nil
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &OpenAIClient{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	url := strings.TrimSuffix(c.opts.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("completion API returned status %d", resp.StatusCode)
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return apiResp.Choices[0].Message.Content, nil
}

// Generate implements Source.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, "You are a retail demand forecasting expert. Respond with valid JSON.", prompt)
}

// Assess implements Advisory. The adjustment is clamped before return
// so a confused model cannot swing the plan by more than 15%.
func (c *OpenAIClient) Assess(ctx context.Context, prompt string) (AdvisorySignal, error) {
	text, err := c.complete(ctx, "You are a supply chain risk analyst. Respond with valid JSON.", prompt)
	if err != nil {
		return AdvisorySignal{}, err
	}

	raw, err := ExtractJSONObject(text)
	if err != nil {
		return AdvisorySignal{}, err
	}
	var signal AdvisorySignal
	if err := json.Unmarshal([]byte(raw), &signal); err != nil {
		return AdvisorySignal{}, fmt.Errorf("decode advisory response: %w", err)
	}
	if signal.ConfidenceAdjustment == 0 {
		signal.ConfidenceAdjustment = 1.0
	}
	signal.ConfidenceAdjustment = ClampAdjustment(signal.ConfidenceAdjustment)
	return signal, nil
}
