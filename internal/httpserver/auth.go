package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cartify/internal/models"
	"github.com/Skotchmaster/cartify/internal/service"
	"github.com/Skotchmaster/cartify/internal/transport"
	"github.com/Skotchmaster/cartify/pkg/logging"
	"github.com/Skotchmaster/cartify/pkg/tokens"
)

type AuthHTTP struct {
	Svc *service.UserService
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "register", "invalid body", err)
	}

	user, err := h.Svc.Register(ctx, req, models.RoleUser)
	if err != nil {
		return fail(c, l, "register", err)
	}

	l.Info("user registered", "user_id", user.ID)
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login", "invalid body", err)
	}
	login := req.Login
	if login == "" {
		login = req.Username
	}
	if login == "" || req.Password == "" {
		return badRequest(l, "login", "login and password are required", nil)
	}

	res, err := h.Svc.Login(ctx, login, req.Password)
	if err != nil {
		return fail(c, l, "login", err)
	}

	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, res.AccessToken, "/", res.AccessExp))
	l.Info("user logged in", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, res)
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/"))
	return c.NoContent(http.StatusNoContent)
}
