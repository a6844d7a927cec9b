package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/cartify/internal/service"
	"github.com/Skotchmaster/cartify/internal/transport"
	"github.com/Skotchmaster/cartify/pkg/logging"
)

func TestStatusFor(t *testing.T) {
	pid := uuid.MustParse("7f8b6a52-2f1c-4c61-9a7e-3c1f3e9b2d10")

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("qty: %w", service.ErrInvalidArgument), 400, CodeInvalidArgument},
		{fmt.Errorf("p: %w", service.ErrOutOfStock), 400, CodeOutOfStock},
		{service.ErrEmptyCart, 400, CodeEmptyCart},
		{fmt.Errorf("wrapped: %w", &service.InsufficientStockError{ProductID: pid, Available: 3}), 400, "INSUFFICIENT_STOCK:" + pid.String() + ":3"},
		{service.ErrNotFound, 404, CodeNotFound},
		{service.ErrConflict, 409, CodeConflict},
		{service.ErrTimeout, 503, CodeTimeout},
		{service.ErrUnauthorized, 401, CodeUnauthorized},
		{service.ErrForbidden, 403, CodeForbidden},
		{context.Canceled, 503, CodeTimeout},
		{errors.New("boom"), 500, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestFail(t *testing.T) {
	e := echo.New()
	l := logging.NewWithWriter(io.Discard, "error")

	t.Run("timeout carries retry-after", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

		err := fail(c, l, "checkout", fmt.Errorf("tx: %w", service.ErrTimeout))
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusServiceUnavailable, he.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	})

	t.Run("internal hides the cause", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

		err := fail(c, l, "checkout", errors.New("pq: connection refused"))
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		body, ok := he.Message.(transport.ErrorResponse)
		require.True(t, ok)
		assert.Equal(t, CodeInternal, body.Code)
		assert.NotContains(t, body.Message, "connection refused")
	})
}

func TestHTTPErrorHandler(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"structured", echo.NewHTTPError(409, transport.ErrorResponse{Code: CodeConflict, Message: "busy"}), 409, CodeConflict},
		{"plain echo error", echo.ErrNotFound, 404, CodeNotFound},
		{"string message", echo.NewHTTPError(401, "missing access token"), 401, CodeUnauthorized},
		{"non http error", errors.New("boom"), 500, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			HTTPErrorHandler(tt.err, c)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}
