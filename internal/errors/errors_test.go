// Package errors tests for error code definitions and error handling.
package errors

import (
	stderrors "errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAppError_Error verifies error message formatting.
func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "error without underlying error",
			appError: &AppError{Code: ErrInternal, Message: "something failed"},
			want:     "[INTERNAL_ERROR] something failed",
		},
		{
			name:     "error with underlying error",
			appError: &AppError{Code: ErrDatabase, Message: "save donation", Err: stderrors.New("disk I/O error")},
			want:     "[DATABASE_ERROR] save donation: disk I/O error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestWrap_nil(t *testing.T) {
	assert.Nil(t, Wrap(ErrDatabase, "noop", nil))
}

func TestIs_walksChain(t *testing.T) {
	inner := New(ErrValidation, "missing user id")
	outer := Wrap(ErrSyncFailed, "book item", inner)
	wrapped := fmt.Errorf("context: %w", outer)

	assert.True(t, Is(wrapped, ErrSyncFailed))
	assert.True(t, Is(wrapped, ErrValidation))
	assert.False(t, Is(wrapped, ErrDatabase))
	assert.False(t, Is(stderrors.New("plain"), ErrInternal))
	assert.False(t, Is(nil, ErrInternal))
}

func TestHTTPStatus(t *testing.T) {
	err := fmt.Errorf("book: %w", Status(400, "item already booked"))
	assert.Equal(t, 400, HTTPStatus(err))
	assert.Equal(t, 0, HTTPStatus(stderrors.New("x")))
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"react native message", stderrors.New("Network request failed"), true},
		{"fetch message", stderrors.New("TypeError: Failed to fetch"), true},
		{"refused", stderrors.New("dial tcp 10.0.2.2:3000: connect: connection refused"), true},
		{"coded network", New(ErrNetwork, "offline"), true},
		{"net.Error", &url.Error{Op: "Get", URL: "http://x", Err: &net.DNSError{Err: "no such host", Name: "x"}}, true},
		{"protocol", Status(500, "HTTP error! status: 500"), false},
		{"protocol mentioning network", Status(502, "bad gateway from network edge"), false},
		{"other", stderrors.New("unexpected end of JSON input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNetworkError(tt.err))
		})
	}
}
