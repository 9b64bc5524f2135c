// Package gemini is a minimal client for the Gemini generateContent API.
//
// Every call goes through a retry.Retrier, so transient upstream failures
// (429, 5xx, transport errors) are retried with backoff. An optional token
// bucket limits the outbound request rate across all callers of one Client.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/usestring/perfrelay/pkg/retry"
	"github.com/usestring/perfrelay/pkg/upstream"
)

const (
	// DefaultBaseURL is the Generative Language API host.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-2.5-pro"
	// DefaultMaxResponseBytes bounds a generateContent response.
	DefaultMaxResponseBytes = 8 << 20
)

// Client calls generateContent for a single model.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	retryCfg   retry.Config
	retryOpts  []retry.Option
	limiter    *rate.Limiter
	maxBytes   int64

	retrier *retry.Retrier
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithAPIKey sets the access key appended to every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithModel selects the model path segment.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRetry sets the retry configuration and any Retrier options.
func WithRetry(cfg retry.Config, opts ...retry.Option) Option {
	return func(c *Client) {
		c.retryCfg = cfg
		c.retryOpts = append(c.retryOpts, opts...)
	}
}

// WithRateLimit limits outbound attempts to rpm per minute with the given
// burst. rpm <= 0 disables limiting.
func WithRateLimit(rpm, burst int) Option {
	return func(c *Client) {
		if rpm <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst)
	}
}

// WithMaxResponseBytes caps the response size read from upstream.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		c.maxBytes = n
	}
}

// New creates a new Gemini client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: http.DefaultClient,
		retryCfg:   retry.DefaultConfig(),
		maxBytes:   DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}

	var doer retry.Doer = c.httpClient
	if c.limiter != nil {
		limiter, httpClient := c.limiter, c.httpClient
		doer = retry.DoerFunc(func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, fmt.Errorf("waiting for rate limiter: %w", err)
			}
			return httpClient.Do(req)
		})
	}
	c.retrier = retry.New(doer, c.retryCfg, c.retryOpts...)
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

// Generate sends prompt as a single user turn. Any non-retriable status is
// returned as a Response; transport failures and exhausted retries produce
// an error (*retry.ExhaustedError for the latter).
func (c *Client) Generate(ctx context.Context, prompt string) (*upstream.Response, error) {
	start := time.Now()

	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.retrier.Do(req)
	if err != nil {
		slog.Debug("gemini request failed",
			slog.String("model", c.model),
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil, err
	}

	out, err := upstream.Read(resp, c.maxBytes)
	if err != nil {
		return nil, err
	}

	slog.Debug("gemini request completed",
		slog.String("model", c.model),
		slog.Int("status", out.StatusCode),
		slog.Int("prompt_chars", len([]rune(prompt))),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return out, nil
}

func (c *Client) endpoint() string {
	u := c.baseURL + "/v1beta/models/" + url.PathEscape(c.model) + ":generateContent"
	if c.apiKey != "" {
		u += "?key=" + url.QueryEscape(c.apiKey)
	}
	return u
}

// ExtractText returns the text of the first candidate, joining its text
// parts. ok is false when the body carries no candidate text.
func ExtractText(body []byte) (string, bool) {
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []part `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Candidates) == 0 {
		return "", false
	}

	var texts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	if len(texts) == 0 {
		return "", false
	}
	return strings.Join(texts, ""), true
}
