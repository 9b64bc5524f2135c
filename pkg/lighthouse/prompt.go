package lighthouse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultMaxChars bounds the rendered prompt, counted in characters.
const DefaultMaxChars = 15000

// trimmedSuffix is appended to the instructions of a size-reduced prompt.
const trimmedSuffix = " (trimmed)"

var printer = message.NewPrinter(language.English)

// DefaultInstructions returns the instruction block used when the caller
// supplies none. An empty lang means English.
func DefaultInstructions(lang string) string {
	if lang == "" {
		lang = "English"
	}
	return "You are a web performance expert. Analyze these Google Lighthouse performance results " +
		"and provide a clear explanation in " + lang + ". Include:\n" +
		"- Overall performance summary\n" +
		"- What each score means (Performance, FCP, LCP, TBT, CLS, Speed Index)\n" +
		"- Top 3 specific recommendations to improve the score\n" +
		"- Priority level for each recommendation (High/Medium/Low)\n\n" +
		"Keep the explanation concise but actionable. Use simple language that non-technical users can understand."
}

// Options controls prompt construction.
type Options struct {
	Instructions string // Empty uses DefaultInstructions(Language)
	Language     string // Response language named in the default instructions
	MaxChars     int    // <= 0 uses DefaultMaxChars
}

// Prompt is a rendered prompt together with the summary it was built from.
type Prompt struct {
	Text    string
	Summary *Summary
	Trimmed bool
}

// Length returns the prompt length in characters.
func (p *Prompt) Length() int {
	return utf8.RuneCountInString(p.Text)
}

// BuildPrompt summarizes report and renders the prompt. When the full render
// exceeds MaxChars it is rebuilt exactly once from the reduced summary with
// " (trimmed)" appended to the instructions. The second render is not checked
// again: instructions longer than the limit still produce an oversized prompt.
func BuildPrompt(report any, opts Options) *Prompt {
	return BuildFromSummary(Summarize(report), opts)
}

// BuildFromSummary is BuildPrompt for an already extracted summary.
func BuildFromSummary(s *Summary, opts Options) *Prompt {
	instructions := opts.Instructions
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultInstructions(opts.Language)
	}
	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	text := Render(s, instructions)
	if utf8.RuneCountInString(text) <= maxChars {
		return &Prompt{Text: text, Summary: s}
	}

	reduced := s.reduced(MaxTrimmedOpportunities)
	return &Prompt{
		Text:    Render(reduced, instructions+trimmedSuffix),
		Summary: reduced,
		Trimmed: true,
	}
}

// Render flattens a summary into prompt text: one line per populated field
// in a fixed order, a blank line, then the instructions.
func Render(s *Summary, instructions string) string {
	var sb strings.Builder

	if s.Target != "" {
		fmt.Fprintf(&sb, "Target URL: %s\n", s.Target)
	}
	if s.Score != nil {
		fmt.Fprintf(&sb, "Performance score: %s (%d/100)\n",
			formatNumber(*s.Score), int(math.Round(*s.Score*100)))
	}

	if len(s.Metrics) > 0 {
		sb.WriteString("Metrics:\n")
		for _, id := range MetricIDs {
			v, ok := s.Metrics[id]
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "- %s: %s\n", id, formatMetric(id, v))
		}
	}

	if len(s.Opportunities) > 0 {
		sb.WriteString("Opportunities:\n")
		for _, o := range s.Opportunities {
			label := o.ID
			if o.Title != "" {
				label = fmt.Sprintf("%s (%s)", o.Title, o.ID)
			}
			fmt.Fprintf(&sb, "- %s: %s\n", label, annotate(o))
		}
	}

	if len(s.ThirdParties) > 0 {
		sb.WriteString("Third parties:\n")
		for _, tp := range s.ThirdParties {
			if len(tp.Origins) == 0 {
				fmt.Fprintf(&sb, "- %s\n", tp.Name)
				continue
			}
			fmt.Fprintf(&sb, "- %s: %s\n", tp.Name, strings.Join(tp.Origins, ", "))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(instructions)
	return sb.String()
}

func annotate(o Opportunity) string {
	switch {
	case o.Wasted != nil:
		s := "estimated savings " + formatNumber(*o.Wasted) + " ms"
		if o.WastedBytes != nil && *o.WastedBytes > 0 {
			s += ", " + formatNumber(*o.WastedBytes/1024) + " KiB"
		}
		return s
	case o.Score != nil:
		return "score " + formatNumber(*o.Score)
	default:
		return "flagged"
	}
}

func formatMetric(id string, v any) string {
	switch val := v.(type) {
	case float64:
		if id == "cumulative-layout-shift" {
			return formatNumber(val)
		}
		return formatNumber(val) + " ms"
	case string:
		return val
	default:
		return fmt.Sprint(v)
	}
}

// formatNumber groups digits for values of 10 and above and keeps up to
// three decimals below that.
func formatNumber(v float64) string {
	if math.Abs(v) >= 10 {
		return printer.Sprintf("%d", int64(math.Round(v)))
	}
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}
