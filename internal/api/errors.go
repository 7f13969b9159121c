package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// StatusNetworkError is the status sentinel for failures where no HTTP
// response was received at all. It is distinct from every real HTTP
// status code.
const StatusNetworkError = 0

// ErrorKind classifies a request failure.
type ErrorKind int

const (
	// KindNetwork means no response was received; Message carries the
	// underlying transport error.
	KindNetwork ErrorKind = iota
	// KindHTTP means a response arrived with a non-2xx status.
	KindHTTP
	// KindAuthExpired means a 401 that could not be resolved by a token
	// refresh; the credential store has been cleared.
	KindAuthExpired
	// KindValidation means a 4xx whose body carries structured per-field
	// errors.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindAuthExpired:
		return "auth_expired"
	case KindValidation:
		return "validation"
	}
	return "unknown"
}

// Error is the uniform failure value returned for every failed request,
// so callers can render any failure the same way. Body holds the raw
// response payload when one was received.
type Error struct {
	Kind    ErrorKind
	Status  int
	Body    json.RawMessage
	Message string
}

func (e *Error) Error() string {
	if e.Status == StatusNetworkError {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Summary())
}

// Summary returns the single human-readable line for this failure: the
// body's "detail" field, else "message", else the error's own message,
// else a generic fallback.
func (e *Error) Summary() string {
	if m := e.bodyObject(); m != nil {
		if s, ok := m["detail"].(string); ok && s != "" {
			return s
		}
		if s, ok := m["message"].(string); ok && s != "" {
			return s
		}
	}
	if e.Message != "" {
		return e.Message
	}
	return "Something went wrong."
}

// FieldDetails returns one "field: value" line per structured body field,
// excluding the generic detail and message keys. Array values are joined
// with ", ". Keys are sorted for stable rendering.
func (e *Error) FieldDetails() []string {
	m := e.bodyObject()
	if m == nil {
		return nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		if k == "detail" || k == "message" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	details := make([]string, 0, len(keys))
	for _, k := range keys {
		details = append(details, fmt.Sprintf("%s: %s", k, formatDetailValue(m[k])))
	}
	return details
}

func (e *Error) bodyObject() map[string]any {
	if len(e.Body) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(e.Body, &m); err != nil {
		return nil
	}
	return m
}

func formatDetailValue(v any) string {
	switch val := v.(type) {
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// networkError wraps a transport-level failure where no response was
// received.
func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Status: StatusNetworkError, Message: err.Error()}
}

// httpError classifies a non-2xx response. A 4xx carrying a JSON object
// with at least one field beyond detail/message is a validation failure.
func httpError(status int, body []byte) *Error {
	e := &Error{Kind: KindHTTP, Status: status, Body: json.RawMessage(body)}
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		if len(e.FieldDetails()) > 0 {
			e.Kind = KindValidation
		}
	}
	return e
}

// authExpiredError wraps the original unresolved 401 so the caller sees
// the backend's own failure body rather than a synthesized one.
func authExpiredError(body []byte) *Error {
	return &Error{
		Kind:    KindAuthExpired,
		Status:  http.StatusUnauthorized,
		Body:    json.RawMessage(body),
		Message: "session expired, please sign in again",
	}
}
