package relay

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/usestring/perfrelay/internal/schema"
	"github.com/usestring/perfrelay/pkg/pagespeed"
)

// PageSpeedRequest is the body of POST /api/pagespeed.
type PageSpeedRequest struct {
	URL        string   `json:"url,omitempty" jsonschema:"description=Page to analyze"`
	Strategy   string   `json:"strategy,omitempty" jsonschema:"enum=mobile,enum=desktop"`
	Categories []string `json:"categories,omitempty" jsonschema:"description=Lighthouse categories such as performance or seo"`
	Locale     string   `json:"locale,omitempty"`
}

func (r PageSpeedRequest) upstream() pagespeed.Request {
	return pagespeed.Request{
		URL:        r.URL,
		Strategy:   pagespeed.Strategy(r.Strategy),
		Categories: r.Categories,
		Locale:     r.Locale,
	}
}

// AnalyzeRequest is the body of POST /api/gemini. Prompt wins over a report;
// among reports the first present of Lighthouse, LHR and PageSpeed is used.
type AnalyzeRequest struct {
	Prompt       string `json:"prompt,omitempty"`
	Lighthouse   any    `json:"lighthouse,omitempty"`
	LHR          any    `json:"lhr,omitempty"`
	PageSpeed    any    `json:"pagespeed,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Report returns the report to summarize. null, false, 0 and "" count as
// absent.
func (r AnalyzeRequest) Report() (any, bool) {
	for _, v := range []any{r.Lighthouse, r.LHR, r.PageSpeed} {
		if present(v) {
			return v, true
		}
	}
	return nil, false
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

var (
	pageSpeedSchema = schema.MustFor[PageSpeedRequest]("pagespeed-request")
	analyzeSchema   = schema.MustFor[AnalyzeRequest]("analyze-request")
)

// DecodePageSpeed parses and validates a PageSpeed request body.
func DecodePageSpeed(body []byte) (PageSpeedRequest, error) {
	var req PageSpeedRequest
	err := decode(body, pageSpeedSchema, &req)
	return req, err
}

// DecodeAnalyze parses and validates an analyze request body.
func DecodeAnalyze(body []byte) (AnalyzeRequest, error) {
	var req AnalyzeRequest
	err := decode(body, analyzeSchema, &req)
	return req, err
}

// decode validates body against v and unmarshals it into dst. An empty body
// is treated as {}. Top-level nulls are dropped before validation since
// they mean "absent".
func decode(body []byte, v *schema.Validator, dst any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte("{}")
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return invalidRequest(MsgInvalidBody, fmt.Sprintf("malformed JSON: %v", err))
	}
	if obj, ok := doc.(map[string]any); ok {
		for k, val := range obj {
			if val == nil {
				delete(obj, k)
			}
		}
	}

	if result := v.Validate(doc); !result.Valid {
		return invalidRequest(MsgInvalidBody, result.Errors...)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return invalidRequest(MsgInvalidBody, err.Error())
	}
	return nil
}
