package relay

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/perfrelay/internal/cache"
	"github.com/usestring/perfrelay/internal/config"
	"github.com/usestring/perfrelay/pkg/pagespeed"
	"github.com/usestring/perfrelay/pkg/retry"
	"github.com/usestring/perfrelay/pkg/upstream"
)

type fakePageSpeed struct {
	mu    sync.Mutex
	calls []pagespeed.Request
	resp  *upstream.Response
	err   error
}

func (f *fakePageSpeed) Run(_ context.Context, req pagespeed.Request) (*upstream.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.resp, f.err
}

type fakeGenerator struct {
	prompts []string
	resp    *upstream.Response
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (*upstream.Response, error) {
	f.prompts = append(f.prompts, prompt)
	return f.resp, f.err
}

func jsonResponse(status int, body string) *upstream.Response {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &upstream.Response{StatusCode: status, Header: h, Body: []byte(body)}
}

const geminiOK = `{"candidates":[{"content":{"parts":[{"text":"Looks fast."}]}}]}`

func TestPageSpeed_MissingURL(t *testing.T) {
	ps := &fakePageSpeed{}
	svc := NewService(ps, &fakeGenerator{})

	_, err := svc.PageSpeed(context.Background(), PageSpeedRequest{})

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindInvalidRequest, re.Kind)
	assert.Equal(t, http.StatusBadRequest, re.Status)
	assert.Equal(t, MsgMissingURL, re.Message)
	assert.Empty(t, ps.calls)
}

func TestPageSpeed_Passthrough(t *testing.T) {
	ps := &fakePageSpeed{resp: jsonResponse(200, `{"id":"example"}`)}
	svc := NewService(ps, &fakeGenerator{})

	resp, err := svc.PageSpeed(context.Background(), PageSpeedRequest{
		URL:        "https://example.com",
		Strategy:   "desktop",
		Categories: []string{"performance"},
	})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"id":"example"}`, string(resp.Body))
	require.Len(t, ps.calls, 1)
	assert.Equal(t, pagespeed.Request{
		URL:        "https://example.com",
		Strategy:   pagespeed.StrategyDesktop,
		Categories: []string{"performance"},
	}, ps.calls[0])
}

func TestPageSpeed_UpstreamErrorRelayed(t *testing.T) {
	body := `{"error":{"code":400,"message":"Invalid URL"}}`
	svc := NewService(&fakePageSpeed{resp: jsonResponse(400, body)}, &fakeGenerator{})

	resp, err := svc.PageSpeed(context.Background(), PageSpeedRequest{URL: "nope"})
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, body, string(resp.Body))
}

func TestPageSpeed_NonJSONErrorNormalized(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "text/html")
	ps := &fakePageSpeed{resp: &upstream.Response{StatusCode: 502, Header: h, Body: []byte("<html>bad gateway</html>")}}
	svc := NewService(ps, &fakeGenerator{})

	resp, err := svc.PageSpeed(context.Background(), PageSpeedRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, 502, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Bad Gateway","status":502}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestPageSpeed_TransportFailure(t *testing.T) {
	ps := &fakePageSpeed{err: errors.New(`Get "https://x/run?key=secret&url=y": connection refused`)}
	svc := NewService(ps, &fakeGenerator{})

	_, err := svc.PageSpeed(context.Background(), PageSpeedRequest{URL: "y"})

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindUpstreamUnavailable, re.Kind)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
	assert.NotContains(t, re.Detail(), "secret")
	assert.Contains(t, re.Detail(), "connection refused")
}

func TestPageSpeed_CacheServesRepeats(t *testing.T) {
	c, err := cache.NewResponseCache(8, time.Minute)
	require.NoError(t, err)
	ps := &fakePageSpeed{resp: jsonResponse(200, `{"id":"example"}`)}
	svc := NewService(ps, &fakeGenerator{}, WithCache(c))

	for range 3 {
		_, err := svc.PageSpeed(context.Background(), PageSpeedRequest{URL: "https://example.com"})
		require.NoError(t, err)
	}
	assert.Len(t, ps.calls, 1)
}

func TestAnalyze_MissingPayload(t *testing.T) {
	gen := &fakeGenerator{}
	svc := NewService(&fakePageSpeed{}, gen)

	for _, req := range []AnalyzeRequest{
		{},
		{Instructions: "be brief"},
		{Lighthouse: "", LHR: false, PageSpeed: 0.0},
	} {
		_, err := svc.Analyze(context.Background(), req)

		var re *Error
		require.ErrorAs(t, err, &re)
		assert.Equal(t, KindInvalidRequest, re.Kind)
		assert.Equal(t, MsgMissingPayload, re.Message)
	}
	assert.Empty(t, gen.prompts)
}

func TestAnalyze_PromptForwardedVerbatim(t *testing.T) {
	gen := &fakeGenerator{resp: jsonResponse(200, geminiOK)}
	svc := NewService(&fakePageSpeed{}, gen)

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Prompt:     "explain CLS",
		Lighthouse: map[string]any{"finalUrl": "https://ignored/"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"explain CLS"}, gen.prompts)
	assert.Nil(t, result.Prompt)
	assert.Equal(t, geminiOK, string(result.Body))
	assert.Equal(t, "Looks fast.", result.Text)
}

func TestAnalyze_ReportSummarized(t *testing.T) {
	gen := &fakeGenerator{resp: jsonResponse(200, geminiOK)}
	svc := NewService(&fakePageSpeed{}, gen)

	report := map[string]any{
		"lighthouseResult": map[string]any{
			"finalUrl": "https://example.com/",
			"audits": map[string]any{
				"speed-index": map[string]any{"numericValue": 1200.0},
			},
		},
	}
	result, err := svc.Analyze(context.Background(), AnalyzeRequest{PageSpeed: report, Instructions: "Be brief."})
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	require.NotNil(t, result.Prompt)
	assert.Equal(t, gen.prompts[0], result.Prompt.Text)
	assert.Contains(t, result.Prompt.Text, "Target URL: https://example.com/")
	assert.True(t, strings.HasSuffix(result.Prompt.Text, "Be brief."))
	assert.Equal(t, 1200.0, result.Prompt.Summary.Metrics["speed-index"])
	assert.JSONEq(t, geminiOK, string(result.AI()))
}

func TestAnalyze_ReportPrecedence(t *testing.T) {
	gen := &fakeGenerator{resp: jsonResponse(200, geminiOK)}
	svc := NewService(&fakePageSpeed{}, gen)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{
		LHR:       map[string]any{"finalUrl": "https://lhr/"},
		PageSpeed: map[string]any{"finalUrl": "https://psi/"},
	})
	require.NoError(t, err)
	assert.Contains(t, gen.prompts[0], "https://lhr/")
	assert.NotContains(t, gen.prompts[0], "https://psi/")
}

func TestAnalyze_DegradedReportStillSent(t *testing.T) {
	gen := &fakeGenerator{resp: jsonResponse(200, geminiOK)}
	svc := NewService(&fakePageSpeed{}, gen)

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{Lighthouse: "not a report"})
	require.NoError(t, err)
	assert.True(t, result.Prompt.Summary.Degraded())
	assert.Len(t, gen.prompts, 1)
}

func TestAnalyze_PromptBounded(t *testing.T) {
	gen := &fakeGenerator{resp: jsonResponse(200, geminiOK)}
	svc := NewService(&fakePageSpeed{}, gen, WithPromptLimits(200, "English"))

	audits := map[string]any{}
	for i := range 20 {
		id := "audit-" + strings.Repeat("x", i)
		audits[id] = map[string]any{
			"title":   strings.Repeat("Long opportunity title ", 3),
			"details": map[string]any{"type": "opportunity", "overallSavingsMs": float64(100 + i)},
		}
	}
	result, err := svc.Analyze(context.Background(), AnalyzeRequest{Lighthouse: map[string]any{"audits": audits}, Instructions: "Go."})
	require.NoError(t, err)

	assert.True(t, result.Prompt.Trimmed)
	assert.True(t, strings.HasSuffix(gen.prompts[0], "Go. (trimmed)"))
	assert.LessOrEqual(t, len(result.Prompt.Summary.Opportunities), 3)
}

func TestAnalyze_UpstreamRejected(t *testing.T) {
	gen := &fakeGenerator{resp: jsonResponse(400, `{"error":{"code":400,"message":"API key not valid"}}`)}
	svc := NewService(&fakePageSpeed{}, gen)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{Lighthouse: map[string]any{}})

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindUpstreamRejected, re.Kind)
	assert.Equal(t, 400, re.Status)
	assert.Equal(t, "API key not valid", re.Message)
	assert.NotNil(t, re.Prompt)
}

func TestAnalyze_RetriesExhausted(t *testing.T) {
	gen := &fakeGenerator{err: &retry.ExhaustedError{Attempts: 3, LastStatus: 503}}
	svc := NewService(&fakePageSpeed{}, gen)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{Prompt: "hi"})

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindRetriesExhausted, re.Kind)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Nil(t, re.Prompt)
	assert.Len(t, gen.prompts, 1)
}

func TestAnalyze_Timeout(t *testing.T) {
	gen := &fakeGenerator{err: context.DeadlineExceeded}
	svc := NewService(&fakePageSpeed{}, gen)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{Prompt: "hi"})
	assert.True(t, IsKind(err, KindUpstreamUnavailable))

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "request timed out", re.Message)
}

func TestAnalyzeResult_AIQuotesNonJSON(t *testing.T) {
	r := &AnalyzeResult{Body: []byte("plain text")}
	assert.Equal(t, `"plain text"`, string(r.AI()))
}

func TestSummarize_NoUpstreamCalls(t *testing.T) {
	gen := &fakeGenerator{}
	ps := &fakePageSpeed{}
	svc := NewService(ps, gen, WithPromptLimits(0, "Serbian"))

	p := svc.Summarize(map[string]any{"finalUrl": "https://a/"}, "")
	assert.Contains(t, p.Text, "Serbian")
	assert.Empty(t, gen.prompts)
	assert.Empty(t, ps.calls)
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{
		PageSpeedBaseURL:       "http://127.0.0.1:1",
		GeminiBaseURL:          "http://127.0.0.1:1",
		GeminiModel:            "gemini-2.5-pro",
		PageSpeedTimeout:       time.Second,
		GeminiTimeout:          time.Second,
		RetryMaxAttempts:       3,
		PromptMaxChars:         500,
		PromptLanguage:         "French",
		PageSpeedCacheMaxItems: 4,
		PageSpeedCacheTTL:      time.Minute,
	}

	svc, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc.cache)
	assert.Equal(t, 500, svc.prompt.MaxChars)
	assert.Contains(t, svc.Summarize(map[string]any{}, "").Text, "French")

	cfg.PageSpeedCacheMaxItems = 0
	svc, err = NewFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, svc.cache)
}

func TestWithTimeout(t *testing.T) {
	base := &http.Client{Timeout: 5 * time.Second}
	c := withTimeout(base, time.Second)

	assert.Equal(t, time.Second, c.Timeout)
	assert.Equal(t, 5*time.Second, base.Timeout)
	assert.Equal(t, 5*time.Second, withTimeout(base, 0).Timeout)
}
