package prompts

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register registers all prompts with the MCP server.
func Register(srv *sdkmcp.Server, cfg *Config) {
	srv.AddPrompt(&sdkmcp.Prompt{
		Name:        "performance_review",
		Description: "RECOMMENDED: Review the web performance of a page. Walks through running PageSpeed, reading the summary, and getting a prioritized improvement plan.",
		Arguments: []*sdkmcp.PromptArgument{
			{
				Name:        "url",
				Description: "Page to review",
				Required:    true,
			},
			{
				Name:        "strategy",
				Description: "mobile (default) or desktop",
				Required:    false,
			},
			{
				Name:        "focus",
				Description: "Area to emphasize, e.g. 'LCP', 'third-party scripts', 'images'",
				Required:    false,
			},
		},
	}, HandlePerformanceReview(cfg))

	srv.AddPrompt(&sdkmcp.Prompt{
		Name:        "tool_usage_guide",
		Description: "How to use the pagespeed_* tools efficiently without loading multi-megabyte reports into context.",
	}, HandleToolUsageGuide(cfg))
}
