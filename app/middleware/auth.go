package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	httpdto "github.com/breviobot/breviobot-service/app/dto/http"
	"github.com/breviobot/breviobot-service/app/identity"
	"github.com/breviobot/breviobot-service/app/metrics"
	"github.com/breviobot/breviobot-service/app/service"
	"github.com/breviobot/breviobot-service/config"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type accessAuthorizer interface {
	Authorize(ctx context.Context, accessToken string) (identity.Identity, error)
}

// IdentityHandler is a protected handler that receives the caller explicitly.
type IdentityHandler func(c echo.Context, id identity.Identity) error

type AuthMiddleware struct {
	authorizer accessAuthorizer
	enabled    bool
}

func NewAuthMiddleware(authorizer accessAuthorizer, cfg config.AuthConfig) *AuthMiddleware {
	return &AuthMiddleware{authorizer: authorizer, enabled: cfg.Enabled}
}

// RequireAuth stores the caller's identity in the request context or answers 401.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.enabled {
			setIdentity(c, identity.Anonymous())
			return next(c)
		}

		token := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if token == "" {
			logrus.Debug("Missing bearer token")
			metrics.AuthRejectionsTotal.WithLabelValues("missing_token").Inc()
			return c.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: service.ErrTokenRequired.Error()})
		}

		id, err := m.authorizer.Authorize(c.Request().Context(), token)
		if err != nil {
			var authErr *service.AuthenticationError
			if errors.As(err, &authErr) {
				logrus.WithField("reason", authErr.Message).Debug("Rejected bearer token")
				metrics.AuthRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
				return c.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: authErr.Message})
			}
			logrus.WithError(err).Error("Failed to authorize request")
			return c.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		}

		setIdentity(c, id)
		return next(c)
	}
}

func setIdentity(c echo.Context, id identity.Identity) {
	req := c.Request()
	c.SetRequest(req.WithContext(identity.NewContext(req.Context(), id)))
}

// WithIdentity adapts an IdentityHandler to echo. It must run behind RequireAuth.
func WithIdentity(h IdentityHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := identity.FromContext(c.Request().Context())
		if !ok {
			logrus.WithField("path", c.Path()).Warn("Protected handler reached without identity")
			return c.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: service.ErrTokenRequired.Error()})
		}
		return h(c, id)
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return "expired"
	case errors.Is(err, service.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, service.ErrUserInactive):
		return "inactive"
	default:
		return "invalid"
	}
}
