package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lms/lumen/internal/shared"
)

func TestRespondErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{shared.ErrAuthenticationRequired, http.StatusUnauthorized, "UNAUTHORIZED"},
		{fmt.Errorf("wrap: %w", shared.ErrInsufficientPermissions), http.StatusForbidden, "FORBIDDEN"},
		{shared.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{shared.Conflict("email already registered"), http.StatusConflict, "CONFLICT"},
		{shared.Validation("bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Code)
	}
}

func TestRespondErrorInternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, shared.Internal(errors.New("password=hunter2")))
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestRespondErrorRateLimited(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, &shared.RateLimitError{RetryAfter: 3599500 * time.Millisecond, Lockout: true, Message: "locked"})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
	var body RateLimitBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, RateLimitBody{Error: "locked", RetryAfter: 3600, Lockout: true}, body)
}
