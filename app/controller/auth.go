package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/breviobot/breviobot-service/app/dto"
	httpdto "github.com/breviobot/breviobot-service/app/dto/http"
	"github.com/breviobot/breviobot-service/app/identity"
	"github.com/breviobot/breviobot-service/app/middleware"
	"github.com/breviobot/breviobot-service/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type signupWorkflow interface {
	RequestSignup(ctx context.Context, in service.SignupInput) (*service.SignupResult, error)
	CompleteVerification(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, username string) error
}

type sessionService interface {
	Login(ctx context.Context, username, password string) (*dto.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.RefreshResult, error)
	Logout(ctx context.Context, caller identity.Identity, refreshToken string) error
}

type AuthController struct {
	workflow signupWorkflow
	sessions sessionService
}

func NewAuthController(workflow signupWorkflow, sessions sessionService) *AuthController {
	return &AuthController{workflow: workflow, sessions: sessions}
}

func (c *AuthController) Signup(ctx echo.Context) error {
	var req httpdto.SignupRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind signup request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	entry := logrus.WithField("username", req.Username)
	entry.Info("Signup request received")
	result, err := c.workflow.RequestSignup(ctx.Request().Context(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(ctx, err, entry)
	}

	entry.WithField("user_id", result.User.ID).Info("User signed up, awaiting verification")
	return ctx.JSON(http.StatusOK, httpdto.SignupResponse{
		UserSummary: httpdto.NewUserSummary(result.User),
		Message:     result.Message,
	})
}

func (c *AuthController) Verify(ctx echo.Context) error {
	token := ctx.QueryParam("token")
	if err := c.workflow.CompleteVerification(ctx.Request().Context(), token); err != nil {
		return respondError(ctx, err, logrus.WithField("route", "verify"))
	}
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: service.VerifiedMessage})
}

func (c *AuthController) ResendVerification(ctx echo.Context) error {
	var req httpdto.ResendVerificationRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind resend verification request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	entry := logrus.WithField("username", req.Username)
	if err := c.workflow.ResendVerification(ctx.Request().Context(), req.Username); err != nil {
		// The account already exists here, so the signup wording does not apply.
		if errors.Is(err, service.ErrVerificationEmail) {
			entry.Error("Verification email could not be resent")
			return ctx.JSON(http.StatusBadGateway, httpdto.ErrorResponse{Error: resendEmailFailedMessage})
		}
		return respondError(ctx, err, entry)
	}
	entry.Info("Verification resend handled")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: service.ResendMessage})
}

func (c *AuthController) Login(ctx echo.Context) error {
	var req httpdto.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	entry := logrus.WithField("username", req.Username)
	result, err := c.sessions.Login(ctx.Request().Context(), req.Username, req.Password)
	if err != nil {
		return respondError(ctx, err, entry)
	}

	entry.WithField("user_id", result.User.ID).Info("Login successful")
	return ctx.JSON(http.StatusOK, httpdto.LoginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		ExpiresIn:    result.ExpiresIn,
		User:         httpdto.NewUserSummary(result.User),
	})
}

// Refresh takes the refresh token from the Authorization header, falling back
// to a JSON body field.
func (c *AuthController) Refresh(ctx echo.Context) error {
	token := middleware.BearerToken(ctx.Request().Header.Get(echo.HeaderAuthorization))
	if token == "" {
		var req httpdto.RefreshRequest
		if err := ctx.Bind(&req); err == nil {
			token = req.RefreshToken
		}
	}

	result, err := c.sessions.Refresh(ctx.Request().Context(), token)
	if err != nil {
		return respondError(ctx, err, logrus.WithField("route", "refresh"))
	}
	return ctx.JSON(http.StatusOK, httpdto.RefreshResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresIn:   result.ExpiresIn,
	})
}

func (c *AuthController) Logout(ctx echo.Context, caller identity.Identity) error {
	var req httpdto.LogoutRequest
	// The body is optional.
	_ = ctx.Bind(&req)

	entry := logrus.WithField("user_id", caller.UserID)
	if err := c.sessions.Logout(ctx.Request().Context(), caller, req.RefreshToken); err != nil {
		return respondError(ctx, err, entry)
	}
	entry.Info("Logout successful")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "Successfully logged out"})
}

func (c *AuthController) Me(ctx echo.Context, caller identity.Identity) error {
	return ctx.JSON(http.StatusOK, httpdto.MeResponse{User: httpdto.IdentityResponse{
		UserID:   caller.UserID,
		Username: caller.Username,
		Role:     caller.Role,
	}})
}
