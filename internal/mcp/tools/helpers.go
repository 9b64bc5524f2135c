// Package tools contains MCP tool implementations for the performance relay.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/usestring/perfrelay/pkg/upstream"
)

// MIME type constant.
const MimeJSON = "application/json"

// DecodeJSON parses a JSON body into a generic value for tool output.
func DecodeJSON(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	return v, nil
}

// bodyValue returns the upstream body as JSON when it is JSON, otherwise as
// a string.
func bodyValue(resp *upstream.Response) any {
	if resp.IsJSON() {
		if v, err := DecodeJSON(resp.Body); err == nil {
			return v
		}
	}
	return string(resp.Body)
}
