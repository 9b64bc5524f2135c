package tools

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register registers all relay tools with the MCP server.
func Register(srv *sdkmcp.Server, d *Deps) {
	AddTool(srv, &sdkmcp.Tool{
		Name:        "pagespeed_run",
		Description: "Run Google PageSpeed Insights for a URL. Returns the upstream status, a summary (score, core metrics, top opportunities, third parties) and the report compacted for reading (arrays trimmed, screenshots dropped). Set full=true only when you need the raw report.",
	}, ToolPageSpeedRun(d))

	AddTool(srv, &sdkmcp.Tool{
		Name:        "pagespeed_analyze",
		Description: "Get an AI performance review from Gemini. Pass a prompt to send it verbatim, a report to summarize, or a url to run PageSpeed first. Reports are reduced to a bounded summary before sending; transient upstream failures are retried.",
	}, ToolPageSpeedAnalyze(d))

	AddTool(srv, &sdkmcp.Tool{
		Name:        "pagespeed_summarize",
		Description: "Summarize a PageSpeed or Lighthouse report into the bounded prompt that pagespeed_analyze would send, without calling any upstream. Use to inspect or reuse the extracted metrics and opportunities.",
	}, ToolPageSpeedSummarize(d))
}
