package lighthouse

import (
	"fmt"
	"math/big"

	"github.com/itchyny/gojq"
)

// query is a compiled jq program used as a named accessor into a report.
type query struct {
	name string
	code *gojq.Code
}

func mustCompile(name, src string, vars ...string) *query {
	parsed, err := gojq.Parse(src)
	if err != nil {
		panic(fmt.Sprintf("lighthouse: invalid %s query: %v", name, err))
	}
	code, err := gojq.Compile(parsed, gojq.WithVariables(vars))
	if err != nil {
		panic(fmt.Sprintf("lighthouse: compiling %s query: %v", name, err))
	}
	return &query{name: name, code: code}
}

// first returns the first non-null result. ok is false when the query
// produced nothing.
func (q *query) first(input any, vars ...any) (any, bool, error) {
	iter := q.code.Run(input, vars...)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil, false, nil
		}
		if err, isErr := v.(error); isErr {
			return nil, false, fmt.Errorf("%s: %w", q.name, err)
		}
		if v == nil {
			continue
		}
		return v, true, nil
	}
}

// all returns every non-null result. Evaluation stops at the first error;
// results collected before it are returned alongside.
func (q *query) all(input any, vars ...any) ([]any, error) {
	var out []any
	iter := q.code.Run(input, vars...)
	for {
		v, ok := iter.Next()
		if !ok {
			return out, nil
		}
		if err, isErr := v.(error); isErr {
			return out, fmt.Errorf("%s: %w", q.name, err)
		}
		if v != nil {
			out = append(out, v)
		}
	}
}

var (
	rootQuery = mustCompile("root", `
		if type != "object" then .
		elif (.lighthouseResult | type) == "object" then .lighthouseResult
		elif (.lhr | type) == "object" then .lhr
		else . end`)

	targetQuery = mustCompile("target", `
		[.finalUrl, .finalDisplayedUrl, .requestedUrl, .url]
		| map(strings | select(. != ""))
		| .[0]`)

	scoreQuery = mustCompile("score", `
		.categories as $c
		| if ($c | type) == "object"
		     and ($c.performance | type) == "object"
		     and ($c.performance.score | type) == "number"
		  then $c.performance.score
		  else [ $c
		         | if type == "object" or type == "array" then .[] else empty end
		         | objects
		         | select(.id == "performance")
		         | .score
		         | numbers ] | .[0]
		  end`)

	metricQuery = mustCompile("metric", `
		.audits | objects | .[$id] | objects
		| if (.numericValue | type) == "number" then .numericValue
		  elif (.displayValue | type) == "string" and .displayValue != "" then .displayValue
		  else empty end`, "$id")

	// Audits are visited in key order so ranking ties resolve the same way
	// on every run.
	opportunityQuery = mustCompile("opportunities", `
		.audits | objects | to_entries | sort_by(.key) | .[]
		| .key as $id
		| .value | objects
		| ([(.details | objects | .overallSavingsMs), .overallSavingsMs] | map(numbers) | .[0]) as $ms
		| ([(.details | objects | .overallSavingsBytes), .overallSavingsBytes] | map(numbers) | .[0]) as $bytes
		| (if (.score | type) == "number" then .score else null end) as $score
		| ([.details | objects | .type] | .[0]) as $type
		| select($type == "opportunity"
		         or (($ms // 0) > 0)
		         or ($score != null and $score < 0.9))
		| {
		    id: $id,
		    title: (if (.title | type) == "string" then .title else "" end),
		    wasted: $ms,
		    wastedBytes: $bytes,
		    score: $score
		  }`)

	entityQuery = mustCompile("entities", `
		.entities | arrays | .[] | objects
		| select(.isFirstParty != true)
		| {
		    name: (if (.name | type) == "string" then .name else "" end),
		    origins: [.origins | arrays | .[] | strings | select(. != "")]
		  }
		| select(.name != "")`)
)

// reportRoot resolves the analysis root: the lighthouseResult or lhr
// envelope field when present, otherwise the document itself.
func reportRoot(doc any) (any, error) {
	v, ok, err := rootQuery.first(doc)
	if err != nil || !ok {
		return doc, err
	}
	return v, nil
}

func targetURL(root any) (string, bool, error) {
	v, ok, err := targetQuery.first(root)
	if err != nil || !ok {
		return "", false, err
	}
	s, ok := v.(string)
	return s, ok, nil
}

func performanceScore(root any) (float64, bool, error) {
	v, ok, err := scoreQuery.first(root)
	if err != nil || !ok {
		return 0, false, err
	}
	return toFloat(v)
}

// metricValue returns a float64 or a display string.
func metricValue(root any, id string) (any, bool, error) {
	v, ok, err := metricQuery.first(root, id)
	if err != nil || !ok {
		return nil, false, err
	}
	if s, isStr := v.(string); isStr {
		return s, true, nil
	}
	f, ok, err := toFloat(v)
	if !ok {
		return nil, false, err
	}
	return f, true, nil
}

func candidateOpportunities(root any) ([]Opportunity, error) {
	vals, err := opportunityQuery.all(root)
	out := make([]Opportunity, 0, len(vals))
	for _, v := range vals {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		title, _ := m["title"].(string)
		out = append(out, Opportunity{
			ID:          id,
			Title:       title,
			Wasted:      optFloat(m["wasted"]),
			WastedBytes: optFloat(m["wastedBytes"]),
			Score:       optFloat(m["score"]),
		})
	}
	return out, err
}

func entities(root any, maxOrigins int) ([]ThirdParty, error) {
	vals, err := entityQuery.all(root)
	out := make([]ThirdParty, 0, len(vals))
	for _, v := range vals {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		tp := ThirdParty{Name: name}
		origins, _ := m["origins"].([]any)
		for _, o := range origins {
			if len(tp.Origins) == maxOrigins {
				break
			}
			if s, ok := o.(string); ok {
				tp.Origins = append(tp.Origins, s)
			}
		}
		out = append(out, tp)
	}
	return out, err
}

// toFloat normalizes the numeric types gojq can yield.
func toFloat(v any) (float64, bool, error) {
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("unexpected numeric type %T", v)
	}
}

func optFloat(v any) *float64 {
	if v == nil {
		return nil
	}
	f, ok, _ := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}
