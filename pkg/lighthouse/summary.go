// Package lighthouse reduces a Lighthouse / PageSpeed Insights report to a
// compact Summary and renders it as a size-bounded prompt for a language model.
//
// Reports are read through named accessors compiled from jq programs. Any
// field may be absent or of an unexpected type: extraction never fails, it
// records what went wrong in Summary.Diagnostic and returns what it could read.
package lighthouse

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Limits applied while summarizing.
const (
	MaxOpportunities        = 8
	MaxTrimmedOpportunities = 3
	MaxThirdParties         = 8
	MaxOriginsPerEntity     = 2
)

// MetricIDs lists the audits reported as metrics, in render order.
var MetricIDs = []string{
	"first-contentful-paint",
	"largest-contentful-paint",
	"total-blocking-time",
	"cumulative-layout-shift",
	"speed-index",
	"interactive",
}

// Summary is the compact form of a report.
type Summary struct {
	Target string   `json:"target,omitempty" jsonschema:"Final URL of the analyzed page"`
	Score  *float64 `json:"score,omitempty" jsonschema:"Performance category score between 0 and 1"`
	// Metrics maps an audit id to its numeric value (float64) or, when the
	// report carries no number, its display string.
	Metrics       map[string]any `json:"metrics,omitempty" jsonschema:"Metric audit id to numeric value or display string"`
	Opportunities []Opportunity  `json:"opportunities,omitempty" jsonschema:"Audits ranked by estimated savings, descending"`
	ThirdParties  []ThirdParty   `json:"thirdParties,omitempty" jsonschema:"Third-party entities seen on the page"`
	Diagnostic    string         `json:"diagnostic,omitempty" jsonschema:"Set when part of the report could not be read"`
}

// Opportunity is an audit worth acting on.
type Opportunity struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Wasted      *float64 `json:"wasted,omitempty" jsonschema:"Estimated savings in milliseconds"`
	WastedBytes *float64 `json:"wastedBytes,omitempty" jsonschema:"Estimated savings in bytes"`
	Score       *float64 `json:"score,omitempty"`
}

func (o Opportunity) savings() float64 {
	if o.Wasted == nil {
		return 0
	}
	return *o.Wasted
}

// ThirdParty is a named entity with a few of its origins.
type ThirdParty struct {
	Name    string   `json:"name"`
	Origins []string `json:"origins,omitempty"`
}

// Degraded reports whether extraction hit an error.
func (s *Summary) Degraded() bool {
	return s.Diagnostic != ""
}

// Summarize extracts a Summary from a decoded JSON report. The report may be
// a bare Lighthouse result or a PageSpeed response wrapping one.
func Summarize(report any) (s *Summary) {
	s = &Summary{}
	var errs []error

	defer func() {
		if r := recover(); r != nil {
			errs = append(errs, fmt.Errorf("panic during extraction: %v", r))
		}
		if len(errs) > 0 {
			s.Diagnostic = joinErrors(errs)
			slog.Debug("report summary degraded", slog.String("diagnostic", s.Diagnostic))
		}
	}()

	root, err := reportRoot(report)
	if err != nil {
		errs = append(errs, err)
	}
	if _, ok := root.(map[string]any); !ok {
		errs = append(errs, fmt.Errorf("report root is %s, not an object", jsonKind(root)))
		return s
	}

	if target, ok, err := targetURL(root); err != nil {
		errs = append(errs, err)
	} else if ok {
		s.Target = target
	}

	if score, ok, err := performanceScore(root); err != nil {
		errs = append(errs, err)
	} else if ok {
		s.Score = &score
	}

	for _, id := range MetricIDs {
		v, ok, err := metricValue(root, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		if s.Metrics == nil {
			s.Metrics = make(map[string]any, len(MetricIDs))
		}
		s.Metrics[id] = v
	}

	opps, err := candidateOpportunities(root)
	if err != nil {
		errs = append(errs, err)
	}
	s.Opportunities = rankOpportunities(opps, MaxOpportunities)

	tps, err := entities(root, MaxOriginsPerEntity)
	if err != nil {
		errs = append(errs, err)
	}
	if len(tps) > MaxThirdParties {
		tps = tps[:MaxThirdParties]
	}
	if len(tps) > 0 {
		s.ThirdParties = tps
	}

	return s
}

// rankOpportunities sorts by savings descending, keeping input order among
// equal savings, and keeps the first limit entries.
func rankOpportunities(opps []Opportunity, limit int) []Opportunity {
	if len(opps) == 0 {
		return nil
	}
	slices.SortStableFunc(opps, func(a, b Opportunity) int {
		return cmp.Compare(b.savings(), a.savings())
	})
	if len(opps) > limit {
		opps = opps[:limit]
	}
	return opps
}

// reduced returns the size-reduced copy used when a prompt is too long:
// target, score, metrics and the top opportunities.
func (s *Summary) reduced(topOpportunities int) *Summary {
	out := &Summary{
		Target:     s.Target,
		Score:      s.Score,
		Metrics:    s.Metrics,
		Diagnostic: s.Diagnostic,
	}
	if n := min(topOpportunities, len(s.Opportunities)); n > 0 {
		out.Opportunities = slices.Clone(s.Opportunities[:n])
	}
	return out
}

func joinErrors(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case map[string]any:
		return "an object"
	default:
		return "a number"
	}
}
