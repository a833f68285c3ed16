package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized matches any response with status 401. The credential has
// already been cleared by the time a caller sees it.
var ErrUnauthorized = errors.New("unauthorized")

// NetworkError is returned when no response was received.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is returned for responses with a failure status. Detail carries
// the backend's "detail" or "message" field when the body has one.
type HTTPError struct {
	Status int
	Detail string
	Body   []byte
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// DecodeError is returned when a response body cannot be decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func newHTTPError(status int, body []byte) *HTTPError {
	herr := &HTTPError{Status: status, Body: body}

	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch d := payload.Detail.(type) {
		case string:
			herr.Detail = d
		case nil:
			herr.Detail = payload.Message
		default:
			// validation errors arrive as a list of objects
			if b, err := json.Marshal(d); err == nil {
				herr.Detail = string(b)
			}
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		herr.Detail = text
	}

	return herr
}
