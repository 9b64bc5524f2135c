package mcpsrv

import (
	"github.com/usestring/perfrelay/internal/config"
	"github.com/usestring/perfrelay/internal/relay"
)

// Deps contains the dependencies available to custom tools: the same relay
// service and configuration the builtin tools use.
type Deps struct {
	Relay  *relay.Service
	Config *config.Config
}
