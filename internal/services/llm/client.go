package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	completionsPath    = "chat/completions"
	defaultHTTPTimeout = 15 * time.Second
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	// RepetitionPenalty is forwarded as an extra body field when positive.
	RepetitionPenalty float64
}

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	cfg         Config
	endpoint    string
	endpointErr error
	httpClient *http.Client
	retry      retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the number of attempts per request.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff overrides the exponential backoff bounds.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.base = baseDelay
		c.retry.max = maxDelay
	}
}

// WithSleeper replaces the timer used between attempts.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleeper = sleeper }
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry:      defaultRetryPolicy(),
	}
	client.endpoint, client.endpointErr = chatEndpoint(cfg.BaseURL)
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model reports the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System builds a system message.
func System(content string) Message { return Message{Role: "system", Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: "user", Content: content} }

// Assistant builds an assistant message.
func Assistant(content string) Message { return Message{Role: "assistant", Content: content} }

// Complete sends messages and returns the trimmed assistant content.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("llm complete: messages required")
	}
	return c.complete(ctx, chatRequest{Messages: messages})
}

// CompleteJSON asks for a json_object response to a system/user prompt pair
// and returns the raw payload. Use DecodeLLMJSON to parse it.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", errors.New("llm complete: system and user prompts required")
	}
	return c.complete(ctx, chatRequest{
		Messages:       []Message{System(systemPrompt), User(userPrompt)},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

type chatRequest struct {
	Model             string            `json:"model"`
	Messages          []Message         `json:"messages"`
	Temperature       float64           `json:"temperature"`
	ResponseFormat    map[string]string `json:"response_format,omitempty"`
	RepetitionPenalty float64           `json:"repetition_penalty,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// content returns the first non-blank choice plus the finish reason and
// refusal text for diagnostics.
func (r chatResponse) content() (text, finishReason, refusal string) {
	for _, choice := range r.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = strings.TrimSpace(choice.Message.Refusal)
		}
		if text = strings.TrimSpace(choice.Message.Content); text != "" {
			return text, finishReason, refusal
		}
	}
	return "", finishReason, refusal
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, e.Body)
}

type emptyContentError struct {
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("llm complete: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.FinishReason, e.Refusal, e.Snippet)
}

func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errors.New("llm complete: api key required")
	}
	if c.endpointErr != nil {
		return "", fmt.Errorf("llm request: build url: %w", c.endpointErr)
	}
	req.Model = c.cfg.Model
	if c.cfg.RepetitionPenalty > 0 {
		req.RepetitionPenalty = c.cfg.RepetitionPenalty
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("llm request: encode body: %w", err)
	}

	var text string
	err = c.retry.do(ctx, func() error {
		resp, raw, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		content, finish, refusal := resp.content()
		if content == "" {
			return &emptyContentError{FinishReason: finish, Refusal: refusal, Snippet: payloadSnippet(string(raw))}
		}
		text = content
		return nil
	})
	return text, err
}

func (c *Client) post(ctx context.Context, body []byte) (chatResponse, []byte, error) {
	var parsed chatResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return parsed, nil, fmt.Errorf("llm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return parsed, nil, fmt.Errorf("llm request (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return parsed, nil, fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return parsed, raw, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			RetryAfter: retryAfter,
		}
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return parsed, raw, fmt.Errorf("llm request: decode response: %w", err)
	}
	if parsed.Error != nil {
		return parsed, raw, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(parsed.Error.Message))
	}
	return parsed, raw, nil
}

// chatEndpoint accepts either an API base (".../v1") or a full completions URL.
func chatEndpoint(base string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasSuffix(base, "/"+completionsPath) {
		return base, nil
	}
	return url.JoinPath(base, completionsPath)
}
