// Package jsoncompact shrinks large JSON documents such as PageSpeed reports
// for display to a language model: arrays are trimmed, long strings and
// embedded data URIs are truncated, and bulky keys can be dropped entirely.
package jsoncompact

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Options controls JSON compaction behavior.
type Options struct {
	MaxArrayItems int      // Trim arrays to N items (0 = no limit)
	MaxStringLen  int      // Truncate strings longer than N characters (0 = no limit)
	MaxDepth      int      // Max recursion depth (0 = unlimited)
	DropKeys      []string // Object keys removed at any depth
}

// Default values for compaction options.
const (
	DefaultMaxArrayItems = 5
	DefaultMaxStringLen  = 300
	DefaultMaxDepth      = 0 // unlimited
)

// ReportDropKeys are the PageSpeed / Lighthouse keys that carry screenshots,
// localisation tables and trace timing, none of which help a reader.
var ReportDropKeys = []string{
	"screenshot-thumbnails",
	"final-screenshot",
	"full-page-screenshot",
	"i18n",
	"timing",
	"stackPacks",
}

// DefaultOptions returns the default compaction settings for reports.
func DefaultOptions() *Options {
	return &Options{
		MaxArrayItems: DefaultMaxArrayItems,
		MaxStringLen:  DefaultMaxStringLen,
		MaxDepth:      DefaultMaxDepth,
		DropKeys:      ReportDropKeys,
	}
}

// Compact compresses JSON bytes. Returns an error if input is not valid JSON.
// If opts is nil, DefaultOptions() is used.
func Compact(data []byte, opts *Options) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	return json.Marshal(CompactValue(v, opts))
}

// CompactValue compresses a parsed JSON value (any type from json.Unmarshal).
// The input is not modified. If opts is nil, DefaultOptions() is used.
func CompactValue(v any, opts *Options) any {
	if opts == nil {
		opts = DefaultOptions()
	}
	c := compactor{opts: opts, drop: make(map[string]bool, len(opts.DropKeys))}
	for _, k := range opts.DropKeys {
		c.drop[k] = true
	}
	return c.value(v, 0)
}

type compactor struct {
	opts *Options
	drop map[string]bool
}

func (c *compactor) value(v any, depth int) any {
	if c.opts.MaxDepth > 0 && depth >= c.opts.MaxDepth {
		switch v.(type) {
		case []any, map[string]any:
			return "[max depth]"
		}
	}

	switch val := v.(type) {
	case []any:
		return c.array(val, depth)
	case map[string]any:
		return c.object(val, depth)
	case string:
		return c.str(val)
	default:
		return v
	}
}

func (c *compactor) str(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i > 0 && len(s)-i-1 > 64 {
			return s[:i+1] + fmt.Sprintf("... (%d bytes elided)", len(s)-i-1)
		}
	}

	limit := c.opts.MaxStringLen
	if limit <= 0 {
		return s
	}
	n := utf8.RuneCountInString(s)
	if n <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + fmt.Sprintf("... (%d more chars)", n-limit)
}

func (c *compactor) array(arr []any, depth int) []any {
	if len(arr) == 0 {
		return arr
	}

	keep := len(arr)
	if c.opts.MaxArrayItems > 0 && keep > c.opts.MaxArrayItems {
		keep = c.opts.MaxArrayItems
	}

	result := make([]any, 0, keep+1)
	for _, item := range arr[:keep] {
		result = append(result, c.value(item, depth+1))
	}
	if remaining := len(arr) - keep; remaining > 0 {
		result = append(result, fmt.Sprintf("... (%d more items)", remaining))
	}
	return result
}

func (c *compactor) object(obj map[string]any, depth int) map[string]any {
	result := make(map[string]any, len(obj))
	for k, v := range obj {
		if c.drop[k] {
			continue
		}
		result[k] = c.value(v, depth+1)
	}
	return result
}
