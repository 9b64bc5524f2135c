// Package upstream holds the response and error types shared by the
// PageSpeed and Gemini clients.
package upstream

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
)

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsJSON reports whether the body is a JSON document. The content type is
// checked first; bodies without one are sniffed.
func (r *Response) IsJSON() bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil {
			mediaType = strings.ToLower(strings.TrimSpace(ct))
		}
		if !strings.Contains(mediaType, "json") {
			return false
		}
	}
	return json.Valid(r.Body)
}

// ErrorMessage extracts a human-readable message from a non-2xx response.
// Google APIs answer with {"error":{"code":..,"message":..,"status":..}};
// other JSON shapes with a string "error" or "message" are accepted too.
// Falls back to the HTTP status text.
func (r *Response) ErrorMessage() string {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(r.Body, &env) == nil {
		var googleErr struct {
			Message string `json:"message"`
		}
		if len(env.Error) > 0 && json.Unmarshal(env.Error, &googleErr) == nil && googleErr.Message != "" {
			return googleErr.Message
		}
		var plain string
		if len(env.Error) > 0 && json.Unmarshal(env.Error, &plain) == nil && plain != "" {
			return plain
		}
		if env.Message != "" {
			return env.Message
		}
	}
	if text := http.StatusText(r.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("upstream status %d", r.StatusCode)
}

// Read consumes and closes an *http.Response. maxBytes <= 0 reads everything.
func Read(resp *http.Response, maxBytes int64) (*Response, error) {
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading upstream response: %w", err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, &TooLargeError{Limit: maxBytes}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// TooLargeError is returned by Read when the body exceeds the limit.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("upstream response exceeds %d bytes", e.Limit)
}

// RedactQuery returns rawURL with the value of the "key" query parameter
// masked, for logging.
func RedactQuery(rawURL string) string {
	i := strings.IndexByte(rawURL, '?')
	if i < 0 {
		return rawURL
	}
	parts := strings.Split(rawURL[i+1:], "&")
	for j, p := range parts {
		if strings.HasPrefix(p, "key=") {
			parts[j] = "key=REDACTED"
		}
	}
	return rawURL[:i+1] + strings.Join(parts, "&")
}

var keyParam = regexp.MustCompile(`([?&]key=)[^&\s"]*`)

// RedactKeys masks every "key=" query value found in s. Transport errors
// from net/http embed the request URL, so messages relayed to callers go
// through this first.
func RedactKeys(s string) string {
	return keyParam.ReplaceAllString(s, "${1}REDACTED")
}
