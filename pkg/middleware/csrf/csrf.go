// Package csrf guards cookie-authenticated writes with a double-submit token.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	CookieName = "XSRF-TOKEN"
	HeaderName = "X-CSRF-Token"
)

type Config struct {
	// AuthCookie is the session cookie that makes a request CSRF sensitive.
	AuthCookie string
	Secure     bool
	MaxAge     time.Duration
}

// Middleware issues a token cookie on every response. Unsafe requests that authenticate with
// AuthCookie must echo that token in HeaderName. Bearer-authenticated requests are not checked.
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 24 * time.Hour
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			token := cookieValue(req, CookieName)
			if token == "" {
				var err error
				if token, err = newToken(); err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "failed to create CSRF token")
				}
			}
			c.SetCookie(&http.Cookie{
				Name:     CookieName,
				Value:    token,
				Path:     "/",
				Secure:   cfg.Secure,
				MaxAge:   int(cfg.MaxAge.Seconds()),
				SameSite: http.SameSiteLaxMode,
			})

			if safeMethod(req.Method) || !cookieAuthenticated(req, cfg.AuthCookie) {
				return next(c)
			}

			provided := req.Header.Get(HeaderName)
			if provided == "" || subtle.ConstantTimeCompare([]byte(token), []byte(provided)) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token")
			}
			return next(c)
		}
	}
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func cookieAuthenticated(req *http.Request, authCookie string) bool {
	if strings.HasPrefix(req.Header.Get(echo.HeaderAuthorization), "Bearer ") {
		return false
	}
	return authCookie != "" && cookieValue(req, authCookie) != ""
}

func cookieValue(req *http.Request, name string) string {
	ck, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
