// Package prompts contains MCP prompt implementations for the performance relay.
package prompts

// Config holds configuration needed by prompts.
type Config struct {
	Language       string // response language named in the review
	PromptMaxChars int    // bound applied to summarized reports
	CacheEnabled   bool   // PageSpeed responses are cached
}
