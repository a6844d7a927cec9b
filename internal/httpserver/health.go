package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cartify/pkg/db"
	"github.com/Skotchmaster/cartify/pkg/logging"
)

type HealthHTTP struct {
	DB *gorm.DB
}

func (h *HealthHTTP) Live(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *HealthHTTP) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := db.Ping(ctx, h.DB); err != nil {
		logging.FromContext(ctx).Warn("ready_error", "status", 503, "reason", "database unreachable", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
