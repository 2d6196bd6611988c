package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/breviobot/breviobot-service/app/entity"
	"github.com/breviobot/breviobot-service/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	signingAlgorithm = "HS256"
)

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It carries no identity
// beyond the subject.
type RefreshClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *AccessClaims) UserID() (uint64, error) {
	return parseSubject(c.Subject)
}

func (c *RefreshClaims) UserID() (uint64, error) {
	return parseSubject(c.Subject)
}

func parseSubject(subject string) (uint64, error) {
	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}

type TokenServiceOption func(*TokenService)

// WithClock replaces time.Now for issuing and checking expiry.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(cfg config.JWTConfig, opts ...TokenServiceOption) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, &ConfigurationError{Setting: "JWT_SECRET", Reason: "a signing secret is required"}
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, &ConfigurationError{Setting: "JWT_ACCESS_TOKEN_TTL", Reason: "must be positive"}
	}
	if cfg.RefreshTokenTTL <= 0 {
		return nil, &ConfigurationError{Setting: "JWT_REFRESH_TOKEN_TTL", Reason: "must be positive"}
	}

	s := &TokenService{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *TokenService) registeredClaims(user *entity.User, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(user.ID, 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) IssueAccessToken(user *entity.User) (string, error) {
	claims := &AccessClaims{
		Username:         user.Username,
		Role:             user.Role(),
		TokenType:        TokenTypeAccess,
		RegisteredClaims: s.registeredClaims(user, s.accessTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenService) IssueRefreshToken(user *entity.User) (string, error) {
	claims := &RefreshClaims{
		TokenType:        TokenTypeRefresh,
		RegisteredClaims: s.registeredClaims(user, s.refreshTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{signingAlgorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
