package prompts

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// HandlePerformanceReview implements the performance review workflow.
func HandlePerformanceReview(cfg *Config) func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
	return func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
		args := req.Params.Arguments

		url := strings.TrimSpace(args["url"])
		if url == "" {
			return nil, fmt.Errorf("url argument is required")
		}
		strategy := args["strategy"]
		if strategy == "" {
			strategy = "mobile"
		}
		focus := strings.TrimSpace(args["focus"])
		lang := cfg.Language
		if lang == "" {
			lang = "English"
		}

		var sb strings.Builder

		sb.WriteString("# Web Performance Review\n\n")
		sb.WriteString("You are a web performance expert. Review the page below using Google PageSpeed Insights data ")
		fmt.Fprintf(&sb, "and answer in %s, in language a non-technical site owner can follow.\n\n", lang)

		sb.WriteString("## Target\n\n")
		fmt.Fprintf(&sb, "- URL: %s\n", url)
		fmt.Fprintf(&sb, "- Device: %s\n", strategy)
		if focus != "" {
			fmt.Fprintf(&sb, "- Focus: %s\n", focus)
		}
		sb.WriteString("\n")

		sb.WriteString("## Workflow Steps\n\n")
		sb.WriteString("1. **Run PageSpeed** - call `pagespeed_run` and read `summary` first\n")
		sb.WriteString("   - `summary.score` is 0-1; multiply by 100 for the familiar score\n")
		sb.WriteString("   - Check `summary.diagnostic`: if set, part of the report was unreadable\n")
		sb.WriteString("   - A non-2xx `status` means PageSpeed itself failed; report the error and stop\n\n")
		sb.WriteString("2. **Interpret the metrics** - FCP, LCP, TBT, CLS, Speed Index and TTI\n")
		sb.WriteString("   - Times are milliseconds; CLS is unitless\n")
		sb.WriteString("   - Good thresholds: LCP < 2500 ms, TBT < 200 ms, CLS < 0.1\n\n")
		sb.WriteString("3. **Rank the work** - opportunities are already sorted by estimated savings\n")
		sb.WriteString("   - Tie each recommendation to the metric it improves\n")
		sb.WriteString("   - Mention third parties only when they appear in the opportunities\n\n")
		sb.WriteString("4. **Optional second opinion** - call `pagespeed_analyze` with the same URL to get Gemini's review, ")
		sb.WriteString("then reconcile it with your own reading\n\n")

		sb.WriteString("## Suggested Tools\n\n")
		sb.WriteString("```\n")
		fmt.Fprintf(&sb, "pagespeed_run(url=%q, strategy=%q)\n", url, strategy)
		fmt.Fprintf(&sb, "pagespeed_analyze(url=%q, strategy=%q)\n", url, strategy)
		sb.WriteString("```\n\n")

		sb.WriteString("## Output Format\n\n")
		sb.WriteString("- Overall summary (2-3 sentences)\n")
		sb.WriteString("- What each score means for this page\n")
		sb.WriteString("- Top 3 recommendations, each with priority (High/Medium/Low)")
		if focus != "" {
			fmt.Fprintf(&sb, ", with at least one addressing %s", focus)
		}
		sb.WriteString("\n")

		return &sdkmcp.GetPromptResult{
			Description: "Performance review of " + url,
			Messages: []*sdkmcp.PromptMessage{
				{Role: "user", Content: &sdkmcp.TextContent{Text: sb.String()}},
			},
		}, nil
	}
}

// HandleToolUsageGuide serves the tool usage guide. Cache notes are included
// only when the PageSpeed cache is enabled.
func HandleToolUsageGuide(cfg *Config) func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
	return func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
		var sb strings.Builder

		sb.WriteString("# Efficient Tool Usage Guide\n\n")
		sb.WriteString("| Goal | Tool | Notes |\n")
		sb.WriteString("|------|------|-------|\n")
		sb.WriteString("| Scores, metrics, top opportunities | `pagespeed_run` | read `summary`; `report` is compacted |\n")
		sb.WriteString("| Raw audit details | `pagespeed_run` with `full: true` | several MB, use sparingly |\n")
		sb.WriteString("| AI review of a page | `pagespeed_analyze` with `url` | one PageSpeed run, one Gemini call |\n")
		sb.WriteString("| AI review of a report you hold | `pagespeed_analyze` with `report` | no PageSpeed run |\n")
		sb.WriteString("| See what would be sent to Gemini | `pagespeed_summarize` | no upstream calls |\n")

		sb.WriteString("\n**Key rules**:\n")
		sb.WriteString("- PageSpeed runs take 10-60 seconds; do not repeat a run just to re-read it\n")
		if cfg.CacheEnabled {
			sb.WriteString("- Identical runs are served from cache for a few minutes, so repeating one is cheap\n")
		}
		maxChars := cfg.PromptMaxChars
		if maxChars > 0 {
			fmt.Fprintf(&sb, "- Summaries are bounded to %d characters; when `trimmed` is true only the top 3 opportunities were kept\n", maxChars)
		}
		sb.WriteString("- `prompt` in `pagespeed_analyze` overrides any report or url\n")

		return &sdkmcp.GetPromptResult{
			Description: "Tool usage guide",
			Messages: []*sdkmcp.PromptMessage{
				{Role: "user", Content: &sdkmcp.TextContent{Text: sb.String()}},
			},
		}, nil
	}
}
