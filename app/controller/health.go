package controller

import (
	"context"
	"net/http"
	"time"

	httpdto "github.com/breviobot/breviobot-service/app/dto/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type HealthController struct {
	db pinger
}

func NewHealthController(db pinger) *HealthController {
	return &HealthController{db: db}
}

func (c *HealthController) Health(ctx echo.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
	defer cancel()

	if err := c.db.PingContext(pingCtx); err != nil {
		logrus.WithError(err).Warn("Health check: database unreachable")
		return ctx.JSON(http.StatusServiceUnavailable, httpdto.HealthResponse{Status: "degraded", Database: "unreachable"})
	}
	return ctx.JSON(http.StatusOK, httpdto.HealthResponse{Status: "ok", Database: "ok"})
}
