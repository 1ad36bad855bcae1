package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Sentinel errors for classifying failures with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrServer       = errors.New("server error")
	ErrTransport    = errors.New("transport failure")
	ErrDecode       = errors.New("malformed response")
)

// APIError is a non-2xx response.
type APIError struct {
	Status   int
	Method   string
	Path     string
	Messages []string
	Body     []byte
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	if len(e.Messages) > 0 {
		msg += ": " + strings.Join(e.Messages, "; ")
	}
	return msg
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrValidation:
		return e.Status == http.StatusUnprocessableEntity || e.Status == http.StatusBadRequest
	case ErrServer:
		return e.Status >= 500
	}
	return false
}

// Messages returns the server-provided messages of err, if it is an APIError.
func Messages(err error) []string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Messages
	}
	return nil
}

// parseMessages understands the three error envelopes the backend uses:
//
//	{"errors": ["..."]}
//	{"errors": {"field": ["..."]}}
//	{"error": "..."} or {"message": "..."}
func parseMessages(body []byte) []string {
	var env struct {
		Errors  json.RawMessage `json:"errors"`
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if len(body) == 0 || json.Unmarshal(body, &env) != nil {
		return nil
	}

	var out []string
	if len(env.Errors) > 0 {
		var list []string
		var fields map[string]json.RawMessage
		switch {
		case json.Unmarshal(env.Errors, &list) == nil:
			out = append(out, list...)
		case json.Unmarshal(env.Errors, &fields) == nil:
			names := make([]string, 0, len(fields))
			for name := range fields {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				for _, m := range stringOrList(fields[name]) {
					out = append(out, name+" "+m)
				}
			}
		default:
			out = append(out, stringOrList(env.Errors)...)
		}
	}
	if len(env.Error) > 0 {
		out = append(out, stringOrList(env.Error)...)
	}
	if env.Message != "" {
		out = append(out, env.Message)
	}
	return out
}

func stringOrList(raw json.RawMessage) []string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	return nil
}
