package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a non-2xx response from the upstream booking API.
type Error struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message())
}

// Message extracts a human-readable reason: body.message, then body.error, then the raw body.
func (e *Error) Message() string {
	var body struct {
		Message any `json:"message"`
		Error   any `json:"error"`
	}
	if err := json.Unmarshal(e.Body, &body); err == nil {
		if s := stringify(body.Message); s != "" {
			return s
		}
		if s := stringify(body.Error); s != "" {
			return s
		}
	}
	if s := strings.TrimSpace(string(e.Body)); s != "" {
		return s
	}
	return http.StatusText(e.Status)
}

// JSON returns the body as JSON, quoting it when the upstream sent plain text.
func (e *Error) JSON() json.RawMessage {
	if len(e.Body) > 0 && json.Valid(e.Body) {
		return json.RawMessage(e.Body)
	}
	quoted, _ := json.Marshal(e.Message())
	return quoted
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// StatusOf returns the upstream status code carried anywhere in err's chain.
func StatusOf(err error) (int, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Status, true
	}
	return 0, false
}

// IsConflict reports whether the upstream rejected the request with 422.
func IsConflict(err error) bool {
	status, ok := StatusOf(err)
	return ok && status == http.StatusUnprocessableEntity
}

// ErrorMessage mirrors what callers show for a failed upstream call.
func ErrorMessage(err error) string {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Message()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
