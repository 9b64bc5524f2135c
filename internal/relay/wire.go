package relay

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/usestring/perfrelay/internal/cache"
	"github.com/usestring/perfrelay/internal/config"
	"github.com/usestring/perfrelay/pkg/gemini"
	"github.com/usestring/perfrelay/pkg/pagespeed"
	"github.com/usestring/perfrelay/pkg/retry"
)

// NewFromConfig wires the upstream clients, retry, rate limit and cache
// described by cfg. base supplies the transport for both upstreams and may be
// nil; each upstream gets its own timeout.
func NewFromConfig(cfg *config.Config, base *http.Client) (*Service, error) {
	psClient := pagespeed.New(
		pagespeed.WithBaseURL(cfg.PageSpeedBaseURL),
		pagespeed.WithAPIKey(cfg.PageSpeedAPIKey),
		pagespeed.WithHTTPClient(withTimeout(base, cfg.PageSpeedTimeout)),
	)

	genClient := gemini.New(
		gemini.WithBaseURL(cfg.GeminiBaseURL),
		gemini.WithAPIKey(cfg.GeminiAPIKey),
		gemini.WithModel(cfg.GeminiModel),
		gemini.WithHTTPClient(withTimeout(base, cfg.GeminiTimeout)),
		gemini.WithRetry(cfg.RetryConfig(), retry.WithObserver(logAttempt)),
		gemini.WithRateLimit(cfg.GeminiRateLimitRPM, cfg.GeminiRateLimitBurst),
	)

	opts := []Option{WithPromptLimits(cfg.PromptMaxChars, cfg.PromptLanguage)}
	if cfg.PageSpeedCacheMaxItems > 0 {
		c, err := cache.NewResponseCache(cfg.PageSpeedCacheMaxItems, cfg.PageSpeedCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("creating pagespeed cache: %w", err)
		}
		opts = append(opts, WithCache(c))
	}

	return NewService(psClient, genClient, opts...), nil
}

// withTimeout copies base, or a zero client, and sets timeout when positive.
func withTimeout(base *http.Client, timeout time.Duration) *http.Client {
	c := &http.Client{}
	if base != nil {
		*c = *base
	}
	if timeout > 0 {
		c.Timeout = timeout
	}
	return c
}

func logAttempt(a retry.Attempt) {
	if a.Outcome != retry.OutcomeRetriable {
		return
	}
	slog.Debug("gemini attempt failed",
		slog.Int("attempt", a.Number),
		slog.Int("status", a.StatusCode),
		slog.Int64("retry_in_ms", a.Delay.Milliseconds()),
	)
}
