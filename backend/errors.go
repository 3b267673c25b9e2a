package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/airdrop-session/internal/errors"
	"github.com/jrsteele09/airdrop-session/internal/utils"
)

// APIError is a non-2xx backend response. Detail carries the server message
// suitable for showing to the user.
type APIError struct {
	Endpoint   string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Endpoint, e.StatusCode, e.Detail)
}

// Unwrap maps well known status codes onto the shared sentinels
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return errors.ErrUnauthorized
	case http.StatusForbidden:
		return errors.ErrForbidden
	case http.StatusNotFound:
		return errors.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errors.ErrInvalidRequest
	}
	return nil
}

// StatusCode returns the HTTP status of an *APIError in err's chain, or 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Detail returns the user facing message of an *APIError in err's chain
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// parseDetail extracts the FastAPI "detail" field, which is either a string,
// a list of validation items, or an object with "msg".
func parseDetail(body []byte, fallback string) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return fallback
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		if s == "" {
			return fallback
		}
		return s
	}

	var items []any
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		if msgs := utils.ToMessageSlice(items); len(msgs) > 0 {
			return strings.Join(msgs, ", ")
		}
		return fallback
	}

	var obj struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &obj); err == nil && obj.Msg != "" {
		return obj.Msg
	}
	return fallback
}
