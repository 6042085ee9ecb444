// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/lumen-lms/lumen/internal/shared"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

// RateLimitBody is the body of every 429 response.
type RateLimitBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
	Lockout    bool   `json:"lockout"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}


// TooManyRequests writes the rate limit rejection with a Retry-After header.
func TooManyRequests(w http.ResponseWriter, rl *shared.RateLimitError) {
	secs := rl.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	JSON(w, http.StatusTooManyRequests, RateLimitBody{
		Error:      rl.Message,
		RetryAfter: secs,
		Lockout:    rl.Lockout,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return shared.Validation("malformed request body")
	}
	return nil
}
