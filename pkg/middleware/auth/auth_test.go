package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/cartify/pkg/tokens"
)

var secret = []byte("mw-secret")

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, UserID(c)+"|"+Role(c))
}

func newToken(t *testing.T, role string, ttl time.Duration) string {
	t.Helper()
	tok, _, err := tokens.NewAccessToken(secret, "u-1", role, ttl)
	require.NoError(t, err)
	return tok
}

func run(h echo.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h(c)
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %T", err)
	return he.Code
}

func TestRequireAuth(t *testing.T) {
	m := NewAuthMiddleware(secret)

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
		wantBody string
	}{
		{
			name:     "missing token",
			prepare:  func(r *http.Request) {},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "bearer token",
			prepare: func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization, "Bearer "+newToken(t, tokens.RoleUser, time.Minute))
			},
			wantCode: http.StatusOK,
			wantBody: "u-1|user",
		},
		{
			name: "cookie token",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: tokens.AccessCookie, Value: newToken(t, tokens.RoleAdmin, time.Minute)})
			},
			wantCode: http.StatusOK,
			wantBody: "u-1|admin",
		},
		{
			name: "expired token",
			prepare: func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization, "Bearer "+newToken(t, tokens.RoleUser, -time.Minute))
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "garbage token",
			prepare: func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization, "Bearer nope")
			},
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)

			rec, err := run(m.RequireAuth(okHandler), req)
			if tt.wantCode == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, tt.wantBody, rec.Body.String())
				return
			}
			assert.Equal(t, tt.wantCode, httpCode(t, err))
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	m := NewAuthMiddleware(secret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+newToken(t, tokens.RoleUser, time.Minute))
	_, err := run(m.RequireAdmin(okHandler), req)
	assert.Equal(t, http.StatusForbidden, httpCode(t, err))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+newToken(t, tokens.RoleAdmin, time.Minute))
	rec, err := run(m.RequireAdmin(okHandler), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidCookieIsCleared(t *testing.T) {
	m := NewAuthMiddleware(secret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: tokens.AccessCookie, Value: "broken"})
	rec, err := run(m.RequireAuth(okHandler), req)
	assert.Equal(t, http.StatusUnauthorized, httpCode(t, err))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), tokens.AccessCookie+"=;")
}
