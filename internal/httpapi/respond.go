package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/usestring/perfrelay/internal/relay"
	"github.com/usestring/perfrelay/pkg/lighthouse"
	"github.com/usestring/perfrelay/pkg/upstream"
)

// errorBody is the JSON envelope of every failed request.
type errorBody struct {
	Error         string              `json:"error"`
	Details       any                 `json:"details,omitempty"`
	SummaryLength int                 `json:"summaryLength,omitempty"`
	Summary       *lighthouse.Summary `json:"summary,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response failed", slog.String("error", err.Error()))
	}
}

// writeUpstream relays an upstream status and body verbatim.
func writeUpstream(w http.ResponseWriter, resp *upstream.Response) {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// writeError converts err into the error envelope. Only relay errors carry
// client-facing messages; anything else is reported as a proxy error.
func writeError(w http.ResponseWriter, err error) {
	var re *relay.Error
	if !errors.As(err, &re) {
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   relay.MsgProxyError,
			Details: upstream.RedactKeys(err.Error()),
		})
		return
	}

	body := errorBody{Error: re.Message}
	switch re.Kind {
	case relay.KindInvalidRequest:
		if len(re.Details) > 0 {
			body.Details = re.Details
		}
	case relay.KindUpstreamUnavailable, relay.KindRetriesExhausted:
		body.Error = relay.MsgProxyError
		body.Details = re.Detail()
	}
	if re.Prompt != nil {
		body.SummaryLength = re.Prompt.Length()
		body.Summary = re.Prompt.Summary
	}

	status := re.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, body)
}
