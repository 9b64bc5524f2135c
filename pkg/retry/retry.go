// Package retry wraps outbound HTTP calls with bounded retries, exponential
// backoff and additive jitter.
//
// Only transport failures and transient statuses (429 and any 5xx) are
// retried. Every other response is handed back to the caller after a single
// call. A Retrier keeps no state between calls and is safe for concurrent use.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// Default values for Config.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxJitter   = 300 * time.Millisecond
)

// maxDrainBytes bounds how much of a retriable response body is kept for logging.
const maxDrainBytes = 64 << 10

// Config controls retry behavior.
type Config struct {
	MaxAttempts int           // Total attempts including the first (<= 0 uses the default)
	BaseDelay   time.Duration // Delay after the first failed attempt, doubled each time
	MaxJitter   time.Duration // Exclusive upper bound of the random delay added to each wait
}

// DefaultConfig returns the default retry settings: 3 attempts, 500ms base, 300ms jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxJitter:   DefaultMaxJitter,
	}
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	if c.MaxJitter < 0 {
		c.MaxJitter = 0
	}
	return c
}

// BaseBackoff returns the deterministic part of the wait after the given
// failed attempt (1-based): BaseDelay * 2^(failed-1).
func BaseBackoff(cfg Config, failed int) time.Duration {
	if failed < 1 {
		failed = 1
	}
	return cfg.BaseDelay << (failed - 1)
}

// Backoff returns the full wait after the given failed attempt, including a
// uniformly random jitter in [0, MaxJitter).
func Backoff(cfg Config, failed int) time.Duration {
	return BaseBackoff(cfg, failed) + randomJitter(cfg.MaxJitter)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(limit))) //nolint:gosec // jitter does not need crypto randomness
}

// IsRetriableStatus reports whether an HTTP status is transient.
func IsRetriableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusServiceUnavailable ||
		code >= 500
}

// Doer executes a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Retrier performs HTTP requests through a Doer with retries.
type Retrier struct {
	doer      Doer
	cfg       Config
	onAttempt func(Attempt)
	jitter    func(limit time.Duration) time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithObserver registers a hook that is called once per attempt.
func WithObserver(fn func(Attempt)) Option {
	return func(r *Retrier) {
		r.onAttempt = fn
	}
}

// WithJitter replaces the random jitter source.
func WithJitter(fn func(limit time.Duration) time.Duration) Option {
	return func(r *Retrier) {
		r.jitter = fn
	}
}

// WithSleep replaces the wait between attempts. The function must return
// ctx.Err() when ctx is done before d elapses.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retrier) {
		r.sleep = fn
	}
}

// New creates a Retrier. A nil doer uses http.DefaultClient.
func New(doer Doer, cfg Config, opts ...Option) *Retrier {
	if doer == nil {
		doer = http.DefaultClient
	}
	r := &Retrier{
		doer:   doer,
		cfg:    cfg.normalized(),
		jitter: randomJitter,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective configuration.
func (r *Retrier) Config() Config {
	return r.cfg
}

// Do sends req, retrying transient failures. The request context bounds the
// whole sequence including waits. Requests with a body must set GetBody
// (http.NewRequest does for in-memory readers) so the body can be replayed.
//
// On success the caller owns the returned response body. When every attempt
// fails the error is an *ExhaustedError.
func (r *Retrier) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	var (
		lastStatus int
		lastBody   string
		lastErr    error
	)

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		attemptReq := req
		if attempt > 1 {
			var err error
			if attemptReq, err = rewind(req); err != nil {
				return nil, err
			}
		}

		resp, err := r.doer.Do(attemptReq)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				r.observe(Attempt{Number: attempt, Outcome: OutcomeAborted, Err: err})
				return nil, err
			}
			lastStatus, lastBody, lastErr = 0, "", err
			slog.Warn("upstream request failed",
				slog.String("host", req.URL.Host),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", r.cfg.MaxAttempts),
				slog.String("error", err.Error()),
			)

		case IsRetriableStatus(resp.StatusCode):
			body := drain(resp)
			lastStatus, lastBody = resp.StatusCode, body
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: body}
			slog.Warn("upstream returned retriable status",
				slog.String("host", req.URL.Host),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", r.cfg.MaxAttempts),
				slog.Int("status", resp.StatusCode),
				slog.String("body", body),
			)

		default:
			r.observe(Attempt{Number: attempt, Outcome: OutcomeSuccess, StatusCode: resp.StatusCode})
			return resp, nil
		}

		if attempt == r.cfg.MaxAttempts {
			r.observe(Attempt{Number: attempt, Outcome: OutcomeRetriable, StatusCode: lastStatus, Err: lastErr})
			break
		}

		delay := BaseBackoff(r.cfg, attempt) + r.jitter(r.cfg.MaxJitter)
		r.observe(Attempt{Number: attempt, Outcome: OutcomeRetriable, StatusCode: lastStatus, Err: lastErr, Delay: delay})

		if err := r.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("waiting to retry: %w", err)
		}
	}

	return nil, &ExhaustedError{
		Attempts:      r.cfg.MaxAttempts,
		TotalDuration: time.Since(start),
		LastStatus:    lastStatus,
		LastBody:      lastBody,
		LastError:     lastErr,
	}
}

func (r *Retrier) observe(a Attempt) {
	if r.onAttempt != nil {
		r.onAttempt(a)
	}
}

// rewind clones req with a fresh body for the next attempt.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed: GetBody is nil")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("replaying request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

// drain reads a bounded prefix of the body for logging and closes it.
func drain(resp *http.Response) string {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxDrainBytes))
	_, _ = io.Copy(io.Discard, resp.Body)
	return string(data)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
