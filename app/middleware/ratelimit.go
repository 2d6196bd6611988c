package middleware

import (
	"net/http"
	"time"

	httpdto "github.com/breviobot/breviobot-service/app/dto/http"
	"github.com/breviobot/breviobot-service/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimit budgets requests per client IP. Each call builds an independent
// store, so every route group gets its own budget.
func RateLimit(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}

	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})

	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, httpdto.ErrorResponse{Error: "unable to identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logrus.WithFields(logrus.Fields{
				"client": identifier,
				"path":   c.Path(),
			}).Warn("Rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, httpdto.ErrorResponse{Error: "Too many requests"})
		},
	})
}
