package retry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noJitter(time.Duration) time.Duration { return 0 }

// recordSleep returns a sleep func that records delays instead of waiting.
func recordSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func statusSequence(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"attempt":` + string(rune('0'+n)) + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRetrier_RetriesTransientThenSucceeds(t *testing.T) {
	srv, calls := statusSequence(t, 503, 503, 200)

	var delays []time.Duration
	r := New(srv.Client(), DefaultConfig(), WithJitter(noJitter), WithSleep(recordSleep(&delays)))

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := r.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"attempt":3}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, delays)
}

func TestRetrier_NonRetriableReturnedImmediately(t *testing.T) {
	for _, status := range []int{200, 201, 400, 401, 403, 404, 422} {
		srv, calls := statusSequence(t, status)
		r := New(srv.Client(), DefaultConfig(), WithJitter(noJitter), WithSleep(recordSleep(new([]time.Duration))))

		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)

		resp, err := r.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, status, resp.StatusCode)
		assert.Equal(t, int32(1), calls.Load(), "status %d", status)
	}
}

func TestRetrier_ExhaustedOnPersistentFailure(t *testing.T) {
	srv, calls := statusSequence(t, 500)

	var attempts []Attempt
	r := New(srv.Client(), DefaultConfig(),
		WithJitter(noJitter),
		WithSleep(recordSleep(new([]time.Duration))),
		WithObserver(func(a Attempt) { attempts = append(attempts, a) }),
	)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := r.Do(req)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, int32(3), calls.Load())

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 500, exhausted.LastStatus)
	assert.JSONEq(t, `{"attempt":3}`, exhausted.LastBody)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 500, statusErr.StatusCode)

	require.Len(t, attempts, 3)
	assert.Equal(t, OutcomeRetriable, attempts[2].Outcome)
	assert.Zero(t, attempts[2].Delay)
}

func TestRetrier_TransportErrorsRetried(t *testing.T) {
	var calls int
	doer := DoerFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return nil, errors.New("connection refused")
	})
	r := New(doer, Config{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond}, WithSleep(recordSleep(new([]time.Duration))))

	req, err := http.NewRequest(http.MethodGet, "http://upstream.invalid", nil)
	require.NoError(t, err)

	_, err = r.Do(req)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 0, exhausted.LastStatus)
	assert.ErrorContains(t, err, "connection refused")
}

func TestRetrier_ReplaysRequestBody(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New(srv.Client(), DefaultConfig(), WithJitter(noJitter), WithSleep(recordSleep(new([]time.Duration))))

	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader([]byte(`{"prompt":"hi"}`)))
	require.NoError(t, err)

	resp, err := r.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{`{"prompt":"hi"}`, `{"prompt":"hi"}`}, bodies)
}

func TestRetrier_ContextCancelledDuringWait(t *testing.T) {
	srv, calls := statusSequence(t, 503)

	ctx, cancel := context.WithCancel(context.Background())
	r := New(srv.Client(), Config{MaxAttempts: 3, BaseDelay: time.Hour}, WithJitter(noJitter))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	time.AfterFunc(50*time.Millisecond, cancel)
	_, err = r.Do(req)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetrier_ContextCancelledStopsTransportRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	doer := DoerFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		cancel()
		return nil, req.Context().Err()
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://upstream.invalid", nil)
	require.NoError(t, err)

	_, err = New(doer, DefaultConfig()).Do(req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNew_Defaults(t *testing.T) {
	r := New(nil, Config{})
	assert.Equal(t, DefaultMaxAttempts, r.Config().MaxAttempts)
	assert.Equal(t, http.DefaultClient, r.doer)
}

func TestIsRetriableStatus(t *testing.T) {
	assert.True(t, IsRetriableStatus(429))
	assert.True(t, IsRetriableStatus(500))
	assert.True(t, IsRetriableStatus(502))
	assert.True(t, IsRetriableStatus(503))
	assert.True(t, IsRetriableStatus(504))
	assert.False(t, IsRetriableStatus(200))
	assert.False(t, IsRetriableStatus(400))
	assert.False(t, IsRetriableStatus(404))
	assert.False(t, IsRetriableStatus(408))
}
