// Package mcpsrv provides an extensible MCP server for the PageSpeed and
// Gemini relay.
//
// The server exposes the builtin pagespeed_run, pagespeed_analyze and
// pagespeed_summarize tools plus the performance_review prompt. Upstream keys,
// retry policy and prompt limits come from the environment (see
// internal/config); functional options add custom tools, prompts and
// resources.
//
// # Basic Usage
//
//	server, err := mcpsrv.NewServer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Close()
//	server.Run(ctx)
//
// # Extension
//
// Add custom tools using MCP SDK types directly:
//
//	type ScoreInput struct {
//	    URL string `json:"url"`
//	}
//
//	type ScoreOutput struct {
//	    Status int `json:"status"`
//	}
//
//	server, err := mcpsrv.NewServer(
//	    mcpsrv.WithDepsTool(
//	        &mcp.Tool{Name: "score", Description: "Run PageSpeed and return the status"},
//	        func(d *mcpsrv.Deps) func(context.Context, *mcp.CallToolRequest, ScoreInput) (*mcp.CallToolResult, ScoreOutput, error) {
//	            return func(ctx context.Context, _ *mcp.CallToolRequest, in ScoreInput) (*mcp.CallToolResult, ScoreOutput, error) {
//	                resp, err := d.Relay.PageSpeed(ctx, relay.PageSpeedRequest{URL: in.URL})
//	                if err != nil {
//	                    return nil, ScoreOutput{}, err
//	                }
//	                return nil, ScoreOutput{Status: resp.StatusCode}, nil
//	            }
//	        },
//	    ),
//	)
//
// # Configuration
//
//	server, err := mcpsrv.NewServer(
//	    mcpsrv.WithLogLevel("debug"),
//	    mcpsrv.WithLogFile("/var/log/perfrelay-mcp.log"),
//	)
package mcpsrv
