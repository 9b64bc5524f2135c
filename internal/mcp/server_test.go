package mcp

import (
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/perfrelay/internal/config"
	"github.com/usestring/perfrelay/internal/mcp/tools"
	"github.com/usestring/perfrelay/internal/relay"
	"github.com/usestring/perfrelay/pkg/gemini"
	"github.com/usestring/perfrelay/pkg/pagespeed"
)

func TestNewServer_RequiresRelay(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)

	_, err = NewServer(&tools.Deps{})
	assert.Error(t, err)
}

func TestNewServer_RegistersBuiltins(t *testing.T) {
	deps := &tools.Deps{
		Relay:  relay.NewService(pagespeed.New(), gemini.New()),
		Config: &config.Config{PromptLanguage: "English", PromptMaxChars: 15000},
	}

	var custom bool
	var srv *Server
	require.NotPanics(t, func() {
		var err error
		srv, err = NewServer(deps,
			WithBuiltinTools(),
			WithBuiltinPrompts(),
			WithCustomRegistration(func(*sdkmcp.Server) { custom = true }),
		)
		require.NoError(t, err)
	})

	assert.NotNil(t, srv.MCPServer())
	assert.True(t, custom)
}
