package tools

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/perfrelay/internal/relay"
	"github.com/usestring/perfrelay/pkg/jsoncompact"
	"github.com/usestring/perfrelay/pkg/lighthouse"
	"github.com/usestring/perfrelay/pkg/pagespeed"
)

// PageSpeedRunInput is the input for pagespeed_run.
type PageSpeedRunInput struct {
	URL        string   `json:"url" jsonschema:"Page to analyze, as an absolute URL"`
	Strategy   string   `json:"strategy,omitempty" jsonschema:"Device to emulate: mobile (default) or desktop"`
	Categories []string `json:"categories,omitempty" jsonschema:"Lighthouse categories to run (default: performance)"`
	Locale     string   `json:"locale,omitempty" jsonschema:"Locale for audit titles, e.g. en or de"`
	Full       bool     `json:"full,omitempty" jsonschema:"Return the report uncompacted. Reports are several MB; prefer the default compacted form"`
}

// PageSpeedRunOutput is the output for pagespeed_run.
type PageSpeedRunOutput struct {
	Status    int                 `json:"status"`
	Compacted bool                `json:"compacted"`
	Summary   *lighthouse.Summary `json:"summary,omitempty"`
	Report    any                 `json:"report,omitempty"`
}

// PageSpeedAnalyzeInput is the input for pagespeed_analyze.
type PageSpeedAnalyzeInput struct {
	URL          string `json:"url,omitempty" jsonschema:"Run PageSpeed for this URL first, then analyze the result"`
	Strategy     string `json:"strategy,omitempty" jsonschema:"Device for the PageSpeed run: mobile (default) or desktop"`
	Prompt       string `json:"prompt,omitempty" jsonschema:"Send this prompt verbatim instead of summarizing a report"`
	Report       any    `json:"report,omitempty" jsonschema:"A PageSpeed response or Lighthouse report to summarize"`
	Instructions string `json:"instructions,omitempty" jsonschema:"Instructions appended after the summary (default: performance review)"`
}

// PageSpeedAnalyzeOutput is the output for pagespeed_analyze.
type PageSpeedAnalyzeOutput struct {
	Text          string              `json:"text,omitempty"`
	PromptLength  int                 `json:"prompt_length,omitempty"`
	Trimmed       bool                `json:"trimmed,omitempty"`
	Summary       *lighthouse.Summary `json:"summary,omitempty"`
	AI            any                 `json:"ai,omitempty"`
	PageSpeedRuns int                 `json:"pagespeed_runs,omitempty"`
}

// PageSpeedSummarizeInput is the input for pagespeed_summarize.
type PageSpeedSummarizeInput struct {
	Report       any    `json:"report" jsonschema:"A PageSpeed response or Lighthouse report"`
	Instructions string `json:"instructions,omitempty" jsonschema:"Instructions appended after the summary (default: performance review)"`
}

// PageSpeedSummarizeOutput is the output for pagespeed_summarize.
type PageSpeedSummarizeOutput struct {
	Prompt       string              `json:"prompt"`
	PromptLength int                 `json:"prompt_length"`
	Trimmed      bool                `json:"trimmed"`
	Summary      *lighthouse.Summary `json:"summary,omitempty"`
}

func checkStrategy(s string) error {
	switch pagespeed.Strategy(s) {
	case "", pagespeed.StrategyMobile, pagespeed.StrategyDesktop:
		return nil
	}
	return ErrInvalidInput(fmt.Sprintf("strategy must be mobile or desktop, got %q", s))
}

// ToolPageSpeedRun runs PageSpeed and returns the (compacted) report with its summary.
func ToolPageSpeedRun(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input PageSpeedRunInput) (*sdkmcp.CallToolResult, PageSpeedRunOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input PageSpeedRunInput) (*sdkmcp.CallToolResult, PageSpeedRunOutput, error) {
		if err := checkStrategy(input.Strategy); err != nil {
			return nil, PageSpeedRunOutput{}, err
		}

		resp, err := d.Relay.PageSpeed(ctx, relay.PageSpeedRequest{
			URL:        input.URL,
			Strategy:   input.Strategy,
			Categories: input.Categories,
			Locale:     input.Locale,
		})
		if err != nil {
			return nil, PageSpeedRunOutput{}, WrapRelayError(err)
		}

		output := PageSpeedRunOutput{Status: resp.StatusCode}
		report := bodyValue(resp)
		if resp.OK() {
			output.Summary = lighthouse.Summarize(report)
		}
		if input.Full {
			output.Report = report
		} else {
			output.Report = jsoncompact.CompactValue(report, d.CompactOptions())
			output.Compacted = true
		}

		return nil, output, nil
	}
}

// ToolPageSpeedAnalyze asks the model for a performance review of a prompt,
// a supplied report, or a fresh PageSpeed run.
func ToolPageSpeedAnalyze(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input PageSpeedAnalyzeInput) (*sdkmcp.CallToolResult, PageSpeedAnalyzeOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input PageSpeedAnalyzeInput) (*sdkmcp.CallToolResult, PageSpeedAnalyzeOutput, error) {
		analyzeReq := relay.AnalyzeRequest{
			Prompt:       input.Prompt,
			PageSpeed:    input.Report,
			Instructions: input.Instructions,
		}

		var output PageSpeedAnalyzeOutput
		if _, ok := analyzeReq.Report(); !ok && input.Prompt == "" && input.URL != "" {
			if err := checkStrategy(input.Strategy); err != nil {
				return nil, output, err
			}
			resp, err := d.Relay.PageSpeed(ctx, relay.PageSpeedRequest{URL: input.URL, Strategy: input.Strategy})
			if err != nil {
				return nil, output, WrapRelayError(err)
			}
			output.PageSpeedRuns = 1
			if !resp.OK() {
				return nil, output, &CodedError{
					Code:    ErrCodeUpstreamRejected,
					Message: fmt.Sprintf("pagespeed status %d: %s", resp.StatusCode, resp.ErrorMessage()),
				}
			}
			report, err := DecodeJSON(resp.Body)
			if err != nil {
				return nil, output, &CodedError{Code: ErrCodeUpstreamUnavailable, Message: "pagespeed returned invalid JSON", Cause: err}
			}
			analyzeReq.PageSpeed = report
		}

		result, err := d.Relay.Analyze(ctx, analyzeReq)
		if err != nil {
			return nil, output, WrapRelayError(err)
		}

		output.Text = result.Text
		if v, err := DecodeJSON(result.AI()); err == nil {
			output.AI = v
		}
		if result.Prompt != nil {
			output.PromptLength = result.Prompt.Length()
			output.Trimmed = result.Prompt.Trimmed
			output.Summary = result.Prompt.Summary
		}
		return nil, output, nil
	}
}

// ToolPageSpeedSummarize builds the bounded prompt for a report without
// calling any upstream.
func ToolPageSpeedSummarize(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input PageSpeedSummarizeInput) (*sdkmcp.CallToolResult, PageSpeedSummarizeOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input PageSpeedSummarizeInput) (*sdkmcp.CallToolResult, PageSpeedSummarizeOutput, error) {
		report, ok := relay.AnalyzeRequest{Lighthouse: input.Report}.Report()
		if !ok {
			return nil, PageSpeedSummarizeOutput{}, ErrInvalidInput("report is required")
		}

		p := d.Relay.Summarize(report, input.Instructions)
		return nil, PageSpeedSummarizeOutput{
			Prompt:       p.Text,
			PromptLength: p.Length(),
			Trimmed:      p.Trimmed,
			Summary:      p.Summary,
		}, nil
	}
}
