package retry

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestBackoffProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("wait after failed attempt n lies in [base*2^(n-1), base*2^(n-1)+jitter)", prop.ForAll(
		func(baseMs, jitterMs, failed int) bool {
			cfg := Config{
				MaxAttempts: 10,
				BaseDelay:   time.Duration(baseMs) * time.Millisecond,
				MaxJitter:   time.Duration(jitterMs) * time.Millisecond,
			}
			lower := cfg.BaseDelay * time.Duration(1<<(failed-1))
			d := Backoff(cfg, failed)
			if jitterMs == 0 {
				return d == lower
			}
			return d >= lower && d < lower+cfg.MaxJitter
		},
		gen.IntRange(0, 2000),
		gen.IntRange(0, 1000),
		gen.IntRange(1, 8),
	))

	properties.Property("base backoff doubles per failed attempt", prop.ForAll(
		func(baseMs, failed int) bool {
			cfg := Config{BaseDelay: time.Duration(baseMs) * time.Millisecond}
			return BaseBackoff(cfg, failed+1) == 2*BaseBackoff(cfg, failed)
		},
		gen.IntRange(1, 2000),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}

func TestRetrierCallCountProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("transient statuses use every attempt, others exactly one", prop.ForAll(
		func(status, maxAttempts int) bool {
			calls := 0
			doer := DoerFunc(func(req *http.Request) (*http.Response, error) {
				calls++
				return &http.Response{
					StatusCode: status,
					Body:       io.NopCloser(strings.NewReader("{}")),
				}, nil
			})
			r := New(doer, Config{MaxAttempts: maxAttempts},
				WithSleep(func(context.Context, time.Duration) error { return nil }),
			)

			req, _ := http.NewRequest(http.MethodGet, "http://upstream.invalid", nil)
			resp, err := r.Do(req)

			if IsRetriableStatus(status) {
				return err != nil && resp == nil && calls == maxAttempts
			}
			return err == nil && resp.StatusCode == status && calls == 1
		},
		gen.IntRange(200, 599),
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}
