package monite

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Domain errors
var (
	ErrMissingConfig   = errors.New("monite: fetchToken and entityId are required")
	ErrInvalidEntityID = errors.New("monite: entityId must be a UUID")
	ErrEmptyToken      = errors.New("monite: token source returned an empty access token")
	ErrMissingID       = errors.New("monite: resource id is required")
)

// APIError is returned for every non-2xx Monite API response.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("monite api error: %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the API status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// MessageOf extracts the user facing message from err. API errors yield the
// server message; anything else yields err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// errorBody covers the two error envelopes the API uses:
// {"error": {"message": "..."}} and {"detail": "..." | [{"msg": "..."}]}.
type errorBody struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Method:     method,
		Path:       path,
		Body:       body,
		Message:    http.StatusText(status),
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}
	if eb.Error != nil && eb.Error.Message != "" {
		apiErr.Message = eb.Error.Message
		return apiErr
	}
	if len(eb.Detail) == 0 {
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(eb.Detail, &detail); err == nil && detail != "" {
		apiErr.Message = detail
		return apiErr
	}
	var details []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(eb.Detail, &details); err == nil && len(details) > 0 {
		msgs := make([]string, 0, len(details))
		for _, d := range details {
			if d.Msg != "" {
				msgs = append(msgs, d.Msg)
			}
		}
		if len(msgs) > 0 {
			apiErr.Message = strings.Join(msgs, "; ")
		}
	}
	return apiErr
}
