package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cartify/internal/service"
	"github.com/Skotchmaster/cartify/internal/transport"
	"github.com/Skotchmaster/cartify/pkg/logging"
	middleware "github.com/Skotchmaster/cartify/pkg/middleware/auth"
)

type CartHTTP struct {
	Svc   *service.CartService
	Users *service.UserService
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req transport.AddCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_item", "invalid body", err)
	}

	userID, err := h.Users.Authorize(ctx, req.User, middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, l, "add_item", err)
	}

	line, err := h.Svc.AddItem(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		return fail(c, l, "add_item", err)
	}

	l.Info("item added to cart", "line_id", line.ID, "quantity", line.Quantity)
	return c.JSON(http.StatusCreated, line)
}

func (h *CartHTTP) SetQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_quantity")

	lineID, err := uuid.Parse(c.Param("line"))
	if err != nil {
		return badRequest(l, "set_quantity", "line id is not a uuid", err)
	}
	var req transport.SetQuantityRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "set_quantity", "invalid body", err)
	}

	userID, err := h.Users.Authorize(ctx, "", middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, l, "set_quantity", err)
	}

	line, err := h.Svc.SetQuantity(ctx, userID, lineID, req.Quantity)
	if err != nil {
		return fail(c, l, "set_quantity", err)
	}
	return c.JSON(http.StatusOK, line)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	lineID, err := uuid.Parse(c.Param("line"))
	if err != nil {
		return badRequest(l, "remove_item", "line id is not a uuid", err)
	}
	userID, err := h.Users.Authorize(ctx, "", middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, l, "remove_item", err)
	}

	line, err := h.Svc.RemoveItem(ctx, userID, lineID)
	if err != nil {
		return fail(c, l, "remove_item", err)
	}
	return c.JSON(http.StatusOK, line)
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	userID, err := h.Users.Authorize(ctx, "", middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, l, "clear_cart", err)
	}

	n, err := h.Svc.ClearCart(ctx, userID)
	if err != nil {
		return fail(c, l, "clear_cart", err)
	}
	return c.JSON(http.StatusOK, transport.ClearCartResponse{Removed: n})
}

func (h *CartHTTP) ListCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.list")

	userID, err := h.Users.Authorize(ctx, c.Param("user"), middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		return fail(c, l, "list_cart", err)
	}

	view, err := h.Svc.ListCart(ctx, userID)
	if err != nil {
		return fail(c, l, "list_cart", err)
	}
	return c.JSON(http.StatusOK, view)
}
