// Package cache provides caching utilities for upstream responses.
package cache

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/usestring/perfrelay/pkg/pagespeed"
	"github.com/usestring/perfrelay/pkg/upstream"
)

// ResponseCache provides thread-safe, time-bounded LRU caching for successful
// PageSpeed responses. Concurrent misses on the same key share one upstream call.
type ResponseCache struct {
	cache *expirable.LRU[string, *upstream.Response]
	group singleflight.Group
}

// NewResponseCache creates a cache holding at most maxItems responses for ttl
// each. ttl <= 0 keeps entries until evicted by size.
func NewResponseCache(maxItems int, ttl time.Duration) (*ResponseCache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxItems)
	}
	return &ResponseCache{
		cache: expirable.NewLRU[string, *upstream.Response](maxItems, nil, ttl),
	}, nil
}

// Get retrieves a response from the cache by key.
// Returns the response and true if found, nil and false otherwise.
func (c *ResponseCache) Get(key string) (*upstream.Response, bool) {
	return c.cache.Get(key)
}

// Put adds or updates a response in the cache.
func (c *ResponseCache) Put(key string, resp *upstream.Response) {
	c.cache.Add(key, resp)
}

// Len returns the current number of items in the cache.
func (c *ResponseCache) Len() int {
	return c.cache.Len()
}

// Fetch returns the cached response for key or calls fill. Only 2xx
// responses are stored. hit reports whether the response came from the cache
// or from another caller's in-flight fill.
//
// The fill runs detached from ctx cancellation so one caller going away does
// not fail the others waiting on the same key; the HTTP client timeout still
// bounds it. Returned responses are shared and must not be modified.
func (c *ResponseCache) Fetch(ctx context.Context, key string, fill func(context.Context) (*upstream.Response, error)) (resp *upstream.Response, hit bool, err error) {
	if cached, ok := c.cache.Get(key); ok {
		return cached, true, nil
	}

	fillCtx := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do(key, func() (any, error) {
		r, err := fill(fillCtx)
		if err != nil {
			return nil, err
		}
		if r.OK() {
			c.cache.Add(key, r)
		}
		return r, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*upstream.Response), shared, nil
}

// PageSpeedKey derives the cache key for a PageSpeed request. Category order
// does not matter.
func PageSpeedKey(req pagespeed.Request) string {
	cats := slices.Clone(req.Categories)
	slices.Sort(cats)
	return strings.Join([]string{
		req.URL,
		string(req.Strategy),
		strings.Join(cats, ","),
		req.Locale,
	}, "\x00")
}
