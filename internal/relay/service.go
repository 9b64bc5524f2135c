// Package relay implements the two relay operations: passing PageSpeed runs
// through with the service key, and summarizing reports into a bounded prompt
// for Gemini.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/usestring/perfrelay/internal/cache"
	"github.com/usestring/perfrelay/pkg/gemini"
	"github.com/usestring/perfrelay/pkg/lighthouse"
	"github.com/usestring/perfrelay/pkg/pagespeed"
	"github.com/usestring/perfrelay/pkg/upstream"
)

// PageSpeedRunner performs one PageSpeed call.
type PageSpeedRunner interface {
	Run(ctx context.Context, req pagespeed.Request) (*upstream.Response, error)
}

// Generator sends one prompt to the model. Implementations retry transient
// failures themselves.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*upstream.Response, error)
}

// Service holds the relay dependencies. It is safe for concurrent use.
type Service struct {
	pagespeed PageSpeedRunner
	generator Generator
	cache     *cache.ResponseCache
	prompt    lighthouse.Options
}

// Option is a functional option for configuring the Service.
type Option func(*Service)

// WithCache serves repeated PageSpeed requests from c.
func WithCache(c *cache.ResponseCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithPromptLimits sets the prompt bound and the language named in the
// default instructions.
func WithPromptLimits(maxChars int, language string) Option {
	return func(s *Service) {
		s.prompt.MaxChars = maxChars
		s.prompt.Language = language
	}
}

// NewService creates a relay over the given upstreams.
func NewService(ps PageSpeedRunner, gen Generator, opts ...Option) *Service {
	s := &Service{
		pagespeed: ps,
		generator: gen,
		prompt:    lighthouse.Options{MaxChars: lighthouse.DefaultMaxChars},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageSpeed runs one analysis without retry. Any upstream status is returned
// as a Response; JSON bodies are relayed untouched and non-JSON error bodies
// are replaced by {"error", "status"}.
func (s *Service) PageSpeed(ctx context.Context, req PageSpeedRequest) (*upstream.Response, error) {
	if req.URL == "" {
		return nil, invalidRequest(MsgMissingURL)
	}

	psReq := req.upstream()
	fill := func(ctx context.Context) (*upstream.Response, error) {
		return s.pagespeed.Run(ctx, psReq)
	}

	var (
		resp *upstream.Response
		hit  bool
		err  error
	)
	if s.cache != nil {
		resp, hit, err = s.cache.Fetch(ctx, cache.PageSpeedKey(psReq), fill)
	} else {
		resp, err = fill(ctx)
	}
	if err != nil {
		slog.Warn("pagespeed relay failed",
			slog.String("url", req.URL),
			slog.String("error", upstream.RedactKeys(err.Error())),
		)
		return nil, unavailable(err)
	}

	slog.Info("pagespeed relayed",
		slog.String("url", req.URL),
		slog.Int("status", resp.StatusCode),
		slog.Bool("cache_hit", hit),
	)
	if !resp.OK() && !resp.IsJSON() {
		return normalizeError(resp), nil
	}
	return resp, nil
}

func normalizeError(resp *upstream.Response) *upstream.Response {
	body, _ := json.Marshal(map[string]any{
		"error":  resp.ErrorMessage(),
		"status": resp.StatusCode,
	})
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &upstream.Response{StatusCode: resp.StatusCode, Header: h, Body: body}
}

// AnalyzeResult is a successful Gemini relay.
type AnalyzeResult struct {
	Status int
	Header http.Header
	Body   []byte // upstream body, verbatim
	Text   string // first candidate text, empty if none

	// Prompt is nil when the caller supplied the prompt directly.
	Prompt *lighthouse.Prompt
}

// AI returns the upstream body as JSON, quoting it when it is not JSON.
func (r *AnalyzeResult) AI() json.RawMessage {
	if json.Valid(r.Body) {
		return r.Body
	}
	quoted, _ := json.Marshal(string(r.Body))
	return quoted
}

// Analyze resolves the prompt from req and calls the model exactly once
// through its retry wrapper. Failures are returned as *Error; those raised
// after summarizing carry the prompt.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	var built *lighthouse.Prompt
	text := req.Prompt
	if text == "" {
		report, ok := req.Report()
		if !ok {
			return nil, invalidRequest(MsgMissingPayload)
		}
		built = s.Summarize(report, req.Instructions)
		text = built.Text
	}

	start := time.Now()
	resp, err := s.generator.Generate(ctx, text)
	if err != nil {
		e := unavailable(err)
		e.Prompt = built
		slog.Warn("gemini relay failed",
			slog.String("kind", string(e.Kind)),
			slog.String("error", e.Detail()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil, e
	}
	if !resp.OK() {
		e := rejected(resp)
		e.Prompt = built
		slog.Warn("gemini rejected request",
			slog.Int("status", resp.StatusCode),
			slog.String("error", e.Message),
		)
		return nil, e
	}

	result := &AnalyzeResult{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   resp.Body,
		Prompt: built,
	}
	result.Text, _ = gemini.ExtractText(resp.Body)

	slog.Info("gemini relayed",
		slog.Int("status", resp.StatusCode),
		slog.Bool("summarized", built != nil),
		slog.Int("prompt_chars", len([]rune(text))),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return result, nil
}

// Summarize builds the bounded prompt for report without calling upstream.
// Extraction problems degrade into Summary.Diagnostic.
func (s *Service) Summarize(report any, instructions string) *lighthouse.Prompt {
	opts := s.prompt
	opts.Instructions = instructions
	p := lighthouse.BuildPrompt(report, opts)

	if p.Summary.Degraded() {
		slog.Warn("report summary degraded", slog.String("diagnostic", p.Summary.Diagnostic))
	}
	if p.Trimmed {
		slog.Debug("prompt trimmed", slog.Int("chars", p.Length()), slog.Int("max_chars", opts.MaxChars))
	}
	return p
}
