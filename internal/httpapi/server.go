// Package httpapi exposes the relay over HTTP.
package httpapi

import (
	"embed"
	"errors"
	"io"
	"net/http"

	"github.com/usestring/perfrelay/internal/relay"
	"github.com/usestring/perfrelay/pkg/upstream"
)

//go:embed assets/index.html
var assets embed.FS

// Options configures the HTTP surface.
type Options struct {
	MaxBodyBytes   int64    // <= 0 means unlimited
	AllowedOrigins []string // CORS origins, "*" for any
	ServeUI        bool     // serve the embedded page at /
}

type handler struct {
	svc  *relay.Service
	opts Options
}

// NewHandler builds the routed and wrapped handler for svc.
func NewHandler(svc *relay.Service, opts Options) http.Handler {
	h := &handler{svc: svc, opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/pagespeed", h.pageSpeed)
	mux.HandleFunc("POST /api/gemini", h.gemini)
	mux.HandleFunc("GET /healthz", h.healthz)
	if opts.ServeUI {
		mux.HandleFunc("GET /{$}", h.index)
	}

	return chain(mux,
		withRequestID(),
		logRequests(),
		recoverPanics(),
		cors(opts.AllowedOrigins),
	)
}

// readBody reads the request body within MaxBodyBytes. It writes the error
// response itself and reports false when the body could not be read.
func (h *handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body := r.Body
	if h.opts.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err == nil {
		return data, true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Payload too large"})
		return nil, false
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: relay.MsgInvalidBody, Details: []string{err.Error()}})
	return nil, false
}

func (h *handler) pageSpeed(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	req, err := relay.DecodePageSpeed(data)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.svc.PageSpeed(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeUpstream(w, resp)
}

// analyzeBody is the report-path success response.
type analyzeBody struct {
	AI            any    `json:"ai"`
	Text          string `json:"text,omitempty"`
	SummaryLength int    `json:"summaryLength"`
	Summary       any    `json:"summary"`
}

func (h *handler) gemini(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	req, err := relay.DecodeAnalyze(data)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Analyze(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.Prompt == nil {
		writeUpstream(w, &upstream.Response{StatusCode: result.Status, Header: result.Header, Body: result.Body})
		return
	}
	writeJSON(w, result.Status, analyzeBody{
		AI:            result.AI(),
		Text:          result.Text,
		SummaryLength: result.Prompt.Length(),
		Summary:       result.Prompt.Summary,
	})
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) index(w http.ResponseWriter, _ *http.Request) {
	content, err := assets.ReadFile("assets/index.html")
	if err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(content)
}
