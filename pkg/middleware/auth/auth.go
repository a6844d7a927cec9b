package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cartify/pkg/tokens"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

type AuthMiddleware struct {
	JWTSecret []byte
}

func NewAuthMiddleware(secret []byte) *AuthMiddleware {
	return &AuthMiddleware{JWTSecret: secret}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
		if claims.Role != tokens.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

func (m *AuthMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, fromCookie := accessToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
		if err != nil {
			if fromCookie {
				c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/"))
			}
			if errors.Is(err, jwt.ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "access token expired")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		if validator != nil {
			if validationErr := validator(claims); validationErr != nil {
				return validationErr
			}
		}

		setUserContext(c, claims)
		return next(c)
	}
}

// accessToken prefers the Authorization header over the cookie.
func accessToken(c echo.Context) (string, bool) {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after), false
		}
	}
	cookie, err := c.Cookie(tokens.AccessCookie)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set(ctxUserID, claims.Subject)
	c.Set(ctxRole, claims.Role)
}

func UserID(c echo.Context) string {
	v, _ := c.Get(ctxUserID).(string)
	return v
}

func Role(c echo.Context) string {
	v, _ := c.Get(ctxRole).(string)
	return v
}

func IsAdmin(c echo.Context) bool {
	return Role(c) == tokens.RoleAdmin
}
