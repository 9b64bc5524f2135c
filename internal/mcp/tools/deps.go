package tools

import (
	"github.com/usestring/perfrelay/internal/config"
	"github.com/usestring/perfrelay/internal/relay"
	"github.com/usestring/perfrelay/pkg/jsoncompact"
)

// Deps contains all dependencies needed by tool handlers.
type Deps struct {
	Relay   *relay.Service
	Config  *config.Config
	Compact *jsoncompact.Options // nil uses jsoncompact.DefaultOptions()
}

// CompactOptions returns the compaction settings for returned reports.
func (d *Deps) CompactOptions() *jsoncompact.Options {
	if d.Compact != nil {
		return d.Compact
	}
	opts := jsoncompact.DefaultOptions()
	if d.Config != nil {
		opts.MaxArrayItems = d.Config.CompactMaxArrayItems
		opts.MaxStringLen = d.Config.CompactMaxStringLen
	}
	return opts
}
