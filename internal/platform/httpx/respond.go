// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// ErrMalformedBody is returned by DecodeJSON when the body is not a single JSON object.
var ErrMalformedBody = errors.New("malformed JSON body")

// ProblemDetail represents RFC7807 problem details. Code is the stable failure kind (e.g. OTP_EXPIRED).
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

// MessageResponse is the acknowledgement body used by most endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Message sends {"message": msg}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, MessageResponse{Message: msg})
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Code:   code,
	})
}

// DecodeJSON decodes JSON request body into the target struct. Unknown fields are rejected.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return ErrMalformedBody
	}
	if dec.More() {
		return ErrMalformedBody
	}
	return nil
}
