package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cartify/internal/service"
	"github.com/Skotchmaster/cartify/internal/transport"
	"github.com/Skotchmaster/cartify/internal/util"
	"github.com/Skotchmaster/cartify/pkg/logging"
	middleware "github.com/Skotchmaster/cartify/pkg/middleware/auth"
)

type OrderHTTP struct {
	Svc   *service.OrderService
	Users *service.UserService
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	userID, err := h.Users.Authorize(ctx, c.Param("user"), middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, l, "list_orders", err)
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, orders, err := h.Svc.ListOrders(ctx, userID, offset, limit)
	if err != nil {
		return fail(c, l, "list_orders", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": transport.NewOrderResponses(orders),
		"meta": util.NewMeta(page, offset, limit, total),
	})
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "get_order", "order id is not a uuid", err)
	}
	userID, err := h.Users.Authorize(ctx, c.Param("user"), middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, l, "get_order", err)
	}

	order, err := h.Svc.GetOrder(ctx, userID, id)
	if err != nil {
		return fail(c, l, "get_order", err)
	}
	return c.JSON(http.StatusOK, transport.NewOrderResponse(order))
}

func (h *OrderHTTP) DeleteOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.delete")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "delete_order", "order id is not a uuid", err)
	}
	userID, err := h.Users.Authorize(ctx, c.Param("user"), middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, l, "delete_order", err)
	}

	if err := h.Svc.DeleteOrder(ctx, userID, id); err != nil {
		return fail(c, l, "delete_order", err)
	}

	l.Info("order deleted", "order_id", id)
	return c.NoContent(http.StatusNoContent)
}
