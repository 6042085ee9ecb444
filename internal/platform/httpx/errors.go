// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/lumen-lms/lumen/internal/shared"
)

// RespondError maps the shared error taxonomy to HTTP responses using RFC7807.
// Internal failures never expose their cause.
func RespondError(w http.ResponseWriter, err error) {
	var rl *shared.RateLimitError
	if errors.As(err, &rl) {
		TooManyRequests(w, rl)
		return
	}

	detail, code := "", ""
	var e *shared.Error
	if errors.As(err, &e) {
		detail, code = e.Message, e.Code
	}

	var status int
	var title string
	switch shared.KindOf(err) {
	case shared.KindUnauthorized:
		status, title = http.StatusUnauthorized, "Unauthorized"
	case shared.KindForbidden:
		status, title = http.StatusForbidden, "Forbidden"
	case shared.KindNotFound:
		status, title = http.StatusNotFound, "Not Found"
	case shared.KindConflict:
		status, title = http.StatusConflict, "Conflict"
	case shared.KindValidation:
		status, title = http.StatusBadRequest, "Validation Failed"
	case shared.KindRateLimited:
		status, title = http.StatusTooManyRequests, "Too Many Requests"
	case shared.KindInternal:
		status, title = http.StatusInternalServerError, "Internal Error"
		detail, code = "", "INTERNAL_ERROR"
	}
	JSON(w, status, ProblemDetail{Title: title, Status: status, Detail: detail, Code: code})
}
