package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cartify/internal/service"
	"github.com/Skotchmaster/cartify/internal/transport"
)

const (
	CodeInvalidArgument   = "INVALID_ARGUMENT"
	CodeOutOfStock        = "OUT_OF_STOCK"
	CodeEmptyCart         = "EMPTY_CART"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeTimeout           = "TIMEOUT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInternal          = "INTERNAL"
)

// statusFor maps a service error to an HTTP status and a response code.
func statusFor(err error) (int, string) {
	var ise *service.InsufficientStockError
	switch {
	case errors.As(err, &ise):
		return http.StatusBadRequest, fmt.Sprintf("%s:%s:%d", CodeInsufficientStock, ise.ProductID, ise.Available)
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, CodeInvalidArgument
	case errors.Is(err, service.ErrOutOfStock):
		return http.StatusBadRequest, CodeOutOfStock
	case errors.Is(err, service.ErrEmptyCart):
		return http.StatusBadRequest, CodeEmptyCart
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, service.ErrTimeout):
		return http.StatusServiceUnavailable, CodeTimeout
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeTimeout
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return CodeInvalidArgument
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusServiceUnavailable:
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// fail logs err under op and turns it into an HTTP error with the {code, message} body.
func fail(c echo.Context, l *slog.Logger, op string, err error) error {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= 500 {
		if code == CodeTimeout {
			c.Response().Header().Set("Retry-After", "1")
		} else {
			msg = "internal server error"
		}
		l.Error(op+"_error", "status", status, "reason", code, "error", err)
	} else {
		l.Warn(op+"_error", "status", status, "reason", code, "error", err)
	}
	return echo.NewHTTPError(status, transport.ErrorResponse{Code: code, Message: msg})
}

func badRequest(l *slog.Logger, op, reason string, err error) error {
	l.Warn(op+"_error", "status", 400, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, transport.ErrorResponse{Code: CodeInvalidArgument, Message: reason})
}

// HTTPErrorHandler writes every error, including ones raised by echo and middleware, as {code, message}.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := transport.ErrorResponse{Code: CodeInternal, Message: "internal server error"}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch m := he.Message.(type) {
		case transport.ErrorResponse:
			body = m
		case string:
			body = transport.ErrorResponse{Code: codeForStatus(status), Message: m}
		default:
			body = transport.ErrorResponse{Code: codeForStatus(status), Message: http.StatusText(status)}
		}
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, body)
	}
	if werr != nil {
		c.Logger().Error(werr)
	}
}
