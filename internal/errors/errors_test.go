package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/victornm/edusync/internal/errors"
)

func TestConvert(t *testing.T) {
	cause := stderrors.New("connection reset")

	tests := map[string]struct {
		err      error
		wantCode errors.Code
		wantHTTP int
		wantMsg  string
	}{
		"not found": {
			err:      errors.NotFound("result not found: id=%s", "r1"),
			wantCode: errors.CodeNotFound,
			wantHTTP: http.StatusNotFound,
			wantMsg:  "result not found: id=r1",
		},
		"wrapped invalid argument": {
			err:      fmt.Errorf("create result: %w", errors.InvalidArgument("user ID is required")),
			wantCode: errors.CodeInvalidArgument,
			wantHTTP: http.StatusBadRequest,
			wantMsg:  "user ID is required",
		},
		"already exists": {
			err:      errors.New(errors.CodeAlreadyExists),
			wantCode: errors.CodeAlreadyExists,
			wantHTTP: http.StatusConflict,
			wantMsg:  "AlreadyExists",
		},
		"plain error hides its cause": {
			err:      cause,
			wantCode: errors.CodeInternal,
			wantHTTP: http.StatusInternalServerError,
			wantMsg:  "Internal",
		},
		"unmapped code": {
			err:      errors.New(errors.Code(codes.ResourceExhausted)),
			wantCode: errors.Code(codes.ResourceExhausted),
			wantHTTP: http.StatusInternalServerError,
			wantMsg:  "ResourceExhausted",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			e := errors.Convert(tt.err)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantHTTP, e.HTTPStatusCode())
			assert.Equal(t, tt.wantMsg, e.Message)
			assert.Equal(t, codes.Code(tt.wantCode), status.Code(e))
		})
	}
}

func TestWithCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := errors.New(errors.CodeUnavailable, errors.WithCause(cause))

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatusCode())
}

func TestHasCode(t *testing.T) {
	assert.True(t, errors.HasCode(fmt.Errorf("get: %w", errors.NotFound("missing")), errors.CodeNotFound))
	assert.False(t, errors.HasCode(errors.NotFound("missing"), errors.CodeInternal))
	assert.False(t, errors.HasCode(stderrors.New("boom"), errors.CodeNotFound))
	assert.False(t, errors.HasCode(nil, errors.CodeNotFound))
}
