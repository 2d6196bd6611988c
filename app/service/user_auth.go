package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/breviobot/breviobot-service/app/dto"
	"github.com/breviobot/breviobot-service/app/entity"
	"github.com/breviobot/breviobot-service/app/identity"
	"github.com/breviobot/breviobot-service/app/metrics"

	"github.com/sirupsen/logrus"
)

type revokedTokenRepository interface {
	Create(ctx context.Context, token *entity.RevokedToken) error
	Exists(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type UserAuthService struct {
	store   *CredentialStore
	tokens  *TokenService
	revoked revokedTokenRepository
	now     func() time.Time
}

func NewUserAuthService(store *CredentialStore, tokens *TokenService, revoked revokedTokenRepository) *UserAuthService {
	return &UserAuthService{
		store:   store,
		tokens:  tokens,
		revoked: revoked,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserAuthService) Login(ctx context.Context, username, password string) (*dto.LoginResult, error) {
	result, err := s.login(ctx, username, password)
	metrics.LoginAttemptsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	return result, err
}

func (s *UserAuthService) login(ctx context.Context, username, password string) (*dto.LoginResult, error) {
	// Signup stores trimmed usernames, so login matches on the same form.
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, &ValidationError{Message: "Username and password are required"}
	}

	user, err := s.store.Authenticate(ctx, username, password)
	if errors.Is(err, ErrInvalidCredentials) {
		return nil, newAuthError(ErrInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	// Inactive accounts look exactly like bad credentials.
	if !user.IsActive {
		return nil, newAuthError(ErrInvalidCredentials)
	}
	if !user.IsVerified {
		return nil, newAuthError(ErrAccountNotVerified)
	}

	accessToken, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    dto.TokenTypeBearer,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
		User:         user,
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh token
// itself is not rotated.
func (s *UserAuthService) Refresh(ctx context.Context, refreshToken string) (*dto.RefreshResult, error) {
	result, err := s.refresh(ctx, refreshToken)
	metrics.TokenRefreshTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	return result, err
}

func (s *UserAuthService) refresh(ctx context.Context, refreshToken string) (*dto.RefreshResult, error) {
	if refreshToken == "" {
		return nil, &AuthenticationError{Message: "Refresh token required", Err: ErrTokenRequired}
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, newAuthError(err)
	}
	if err = s.ensureNotRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}

	userID, _ := claims.UserID()
	user, err := s.store.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, newAuthError(ErrUserInactive)
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, newAuthError(ErrUserInactive)
	}
	if !user.IsVerified {
		return nil, newAuthError(ErrAccountNotVerified)
	}

	accessToken, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &dto.RefreshResult{
		AccessToken: accessToken,
		TokenType:   dto.TokenTypeBearer,
		ExpiresIn:   int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Authorize resolves a bearer access token to the caller's identity.
func (s *UserAuthService) Authorize(ctx context.Context, accessToken string) (identity.Identity, error) {
	if accessToken == "" {
		return identity.Identity{}, newAuthError(ErrTokenRequired)
	}

	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return identity.Identity{}, newAuthError(err)
	}
	if err = s.ensureNotRevoked(ctx, claims.ID); err != nil {
		return identity.Identity{}, err
	}

	userID, _ := claims.UserID()
	user, err := s.store.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return identity.Identity{}, newAuthError(ErrUserInactive)
	}
	if err != nil {
		return identity.Identity{}, err
	}
	if !user.IsActive {
		return identity.Identity{}, newAuthError(ErrUserInactive)
	}

	return identity.Identity{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role(),
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *UserAuthService) ensureNotRevoked(ctx context.Context, jti string) error {
	revoked, err := s.revoked.Exists(ctx, jti)
	if err != nil {
		return err
	}
	if revoked {
		return newAuthError(ErrTokenRevoked)
	}
	return nil
}

// Logout revokes the access token that authenticated the call and, when it
// belongs to the same user, the supplied refresh token.
func (s *UserAuthService) Logout(ctx context.Context, caller identity.Identity, refreshToken string) error {
	if caller.IsAnonymous() || caller.TokenID == "" {
		return nil
	}

	now := s.now()
	if err := s.revoked.Create(ctx, &entity.RevokedToken{
		JTI:       caller.TokenID,
		UserID:    caller.UserID,
		ExpiresAt: caller.ExpiresAt.UTC(),
		CreatedAt: now,
	}); err != nil {
		return err
	}

	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		logrus.WithField("user_id", caller.UserID).Debug("Logout: ignoring unusable refresh token")
		return nil
	}
	if owner, _ := claims.UserID(); owner != caller.UserID {
		logrus.WithField("user_id", caller.UserID).Warn("Logout: refresh token belongs to another user")
		return nil
	}
	return s.revoked.Create(ctx, &entity.RevokedToken{
		JTI:       claims.ID,
		UserID:    caller.UserID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
		CreatedAt: now,
	})
}

// PurgeRevoked removes denylist entries for tokens that have expired anyway.
func (s *UserAuthService) PurgeRevoked(ctx context.Context) (int64, error) {
	return s.revoked.DeleteExpired(ctx, s.now())
}
