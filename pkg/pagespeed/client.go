// Package pagespeed is a client for the PageSpeed Insights v5 runPagespeed API.
//
// The client makes exactly one call per Run and hands back the upstream
// status and body unchanged; deciding what a non-2xx answer means is left
// to the caller.
package pagespeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/usestring/perfrelay/pkg/upstream"
)

// DefaultBaseURL is the Google APIs host serving PageSpeed Insights.
const DefaultBaseURL = "https://www.googleapis.com"

const runPath = "/pagespeedonline/v5/runPagespeed"

// DefaultMaxResponseBytes bounds a PageSpeed response; full reports with
// screenshots are typically a few MB.
const DefaultMaxResponseBytes = 32 << 20

// Strategy selects the emulated device.
type Strategy string

const (
	StrategyMobile  Strategy = "mobile"
	StrategyDesktop Strategy = "desktop"
)

// Request describes one analysis run.
type Request struct {
	URL        string
	Strategy   Strategy // optional
	Categories []string // optional, e.g. "performance", "seo"
	Locale     string   // optional
}

// ErrMissingURL is returned when Request.URL is empty.
var ErrMissingURL = errors.New("missing url")

// Client calls the PageSpeed Insights API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxBytes   int64
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

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMaxResponseBytes caps the response size read from upstream.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		c.maxBytes = n
	}
}

// New creates a new PageSpeed client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		maxBytes:   DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run performs a single analysis call. Any HTTP status is returned as a
// Response; only transport failures produce an error.
func (c *Client) Run(ctx context.Context, req Request) (*upstream.Response, error) {
	if req.URL == "" {
		return nil, ErrMissingURL
	}

	start := time.Now()
	endpoint := c.endpoint(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Debug("pagespeed request failed",
			slog.String("url", upstream.RedactQuery(endpoint)),
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil, fmt.Errorf("executing request: %w", err)
	}

	out, err := upstream.Read(resp, c.maxBytes)
	if err != nil {
		return nil, err
	}

	slog.Debug("pagespeed request completed",
		slog.String("url", upstream.RedactQuery(endpoint)),
		slog.Int("status", out.StatusCode),
		slog.Int("bytes", len(out.Body)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return out, nil
}

func (c *Client) endpoint(req Request) string {
	q := url.Values{}
	q.Set("url", req.URL)
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	if req.Strategy != "" {
		q.Set("strategy", string(req.Strategy))
	}
	for _, cat := range req.Categories {
		q.Add("category", cat)
	}
	if req.Locale != "" {
		q.Set("locale", req.Locale)
	}
	return c.baseURL + runPath + "?" + q.Encode()
}
