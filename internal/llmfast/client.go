package llmfast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const (
	DefaultBaseURL     = "https://api.openai.com"
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 300
	DefaultTemperature = 0.2

	completionsPath = "/v1/chat/completions"
	defaultTimeout  = 30 * time.Second
)

var (
	ErrMissingAPIKey   = errors.New("llmfast: api key required")
	ErrEmptyCompletion = errors.New("llmfast: model returned an empty completion")
)

// StatusError reports a non-2xx reply from the completion endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llmfast: completion api error: status=%d body=%s", e.Code, e.Body)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Client talks to an OpenAI-compatible chat-completion endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *fasthttp.Client

	model          string
	maxTokens      int
	temperature    float64
	userAgent      string
	defaultTimeout time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.http.MaxConnsPerHost = n
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if strings.TrimSpace(model) != "" {
			c.model = strings.TrimSpace(model)
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithTemperature(tp float64) Option {
	return func(c *Client) {
		if tp >= 0 {
			c.temperature = tp
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = strings.TrimSpace(ua) }
}

// New builds a client. The credential is an explicit parameter, never
// an ambient environment lookup; a missing key fails here so batch
// runs are refused before they start.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:         strings.TrimSpace(apiKey),
		http:           &fasthttp.Client{ReadTimeout: defaultTimeout, WriteTimeout: defaultTimeout, MaxConnsPerHost: 16},
		model:          DefaultModel,
		maxTokens:      DefaultMaxTokens,
		temperature:    DefaultTemperature,
		defaultTimeout: defaultTimeout,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Model() string { return c.model }

// Complete sends one chat-completion request and returns the reply
// text. Exactly one attempt is made: batch callers record failures and
// keep going instead of retrying.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	var out chatResponse
	if err := c.postJSON(ctx, completionsPath, payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

// Ping asks for a one-word completion. Used by the diagnostic binary
// to verify endpoint, credential and model in one round trip.
func (c *Client) Ping(ctx context.Context) (string, error) {
	payload := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: "Reply with the single word: ready"}},
		MaxTokens:   16,
		Temperature: 0,
	}
	var out chatResponse
	if err := c.postJSON(ctx, completionsPath, payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.userAgent != "" {
		req.Header.SetUserAgent(c.userAgent)
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("llmfast: marshal request: %w", err)
	}
	req.SetBody(payload)

	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return fmt.Errorf("llmfast: request failed: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return &StatusError{Code: status, Body: truncate(string(resp.Body()), 512)}
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("llmfast: decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
