package controller

import (
	"errors"
	"net/http"

	httpdto "github.com/breviobot/breviobot-service/app/dto/http"
	"github.com/breviobot/breviobot-service/app/service"
	"github.com/breviobot/breviobot-service/app/summarizer"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	signupEmailFailedMessage = "Account created but the verification email could not be sent. Please request a new one."
	resendEmailFailedMessage = "The verification email could not be sent. Please try again later."
)

// respondError maps domain errors to their status code. Anything unknown is
// logged with its context and answered with a generic 500.
func respondError(ctx echo.Context, err error, entry *logrus.Entry) error {
	var (
		valErr  *service.ValidationError
		authErr *service.AuthenticationError
		dupErr  *service.DuplicateUserError
	)
	switch {
	case errors.As(err, &valErr):
		entry.WithField("reason", valErr.Message).Warn("Request rejected: validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: valErr.Message})
	case errors.As(err, &dupErr):
		entry.WithField("field", dupErr.Field).Warn("Request rejected: duplicate user")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: dupErr.Error()})
	case errors.As(err, &authErr):
		entry.WithField("reason", authErr.Message).Warn("Request rejected: authentication failed")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: authErr.Message})
	case errors.Is(err, service.ErrVerificationEmail):
		entry.Error("Verification email could not be sent")
		return ctx.JSON(http.StatusBadGateway, httpdto.ErrorResponse{
			Error: signupEmailFailedMessage,
		})
	case errors.Is(err, summarizer.ErrModelUnavailable):
		entry.WithError(err).Warn("Request rejected: summarization model unavailable")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "Requested model is not available"})
	case errors.Is(err, summarizer.ErrBackend):
		entry.WithError(err).Error("Summarization backend failed")
		return ctx.JSON(http.StatusBadGateway, httpdto.ErrorResponse{Error: "Summarization backend unavailable"})
	default:
		entry.WithError(err).Error("Unhandled error")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}
}
