package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cartify/internal/service"
	"github.com/Skotchmaster/cartify/internal/transport"
	"github.com/Skotchmaster/cartify/pkg/logging"
	middleware "github.com/Skotchmaster/cartify/pkg/middleware/auth"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

type CheckoutHTTP struct {
	Engine *service.CheckoutEngine
	Users  *service.UserService
}

func (h *CheckoutHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout")

	userID, err := h.Users.Authorize(ctx, c.Param("user"), middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, l, "checkout", err)
	}

	order, replayed, err := h.Engine.CheckoutWithKey(ctx, userID, c.Request().Header.Get(HeaderIdempotencyKey))
	if err != nil {
		return fail(c, l, "checkout", err)
	}

	if replayed {
		c.Response().Header().Set(HeaderReplayed, "true")
		return c.JSON(http.StatusOK, transport.NewOrderResponse(order))
	}
	return c.JSON(http.StatusCreated, transport.NewOrderResponse(order))
}
