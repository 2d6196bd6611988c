// Package client is the caller side of the BrevioBot API. A Session holds the
// token pair and refreshes the access token shortly before it expires.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	httpdto "github.com/breviobot/breviobot-service/app/dto/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const DefaultGracePeriod = 60 * time.Second

// ErrReauthenticationRequired means the held tokens are gone and the user has
// to log in again.
var ErrReauthenticationRequired = errors.New("re-authentication required")

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

type Option func(*Session)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		s.httpClient = c
	}
}

func WithGracePeriod(d time.Duration) Option {
	return func(s *Session) {
		s.gracePeriod = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

type Session struct {
	baseURL     string
	httpClient  *http.Client
	store       TokenStore
	gracePeriod time.Duration
	now         func() time.Time

	mu     sync.Mutex
	tokens Tokens
}

// NewSession restores any tokens already persisted in store.
func NewSession(ctx context.Context, baseURL string, store TokenStore, opts ...Option) (*Session, error) {
	s := &Session{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		store:       store,
		gracePeriod: DefaultGracePeriod,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	tokens, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}
	s.tokens = tokens
	return s, nil
}

func (s *Session) Tokens() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// NeedsRefresh reads exp without checking the signature. A token that cannot
// be decoded, or carries no exp, is never reported as due.
func (s *Session) NeedsRefresh(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Sub(now) < s.gracePeriod
}

// EnsureValidAccessToken returns the held pair, refreshing the access token
// first when it is about to expire.
func (s *Session) EnsureValidAccessToken(ctx context.Context) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens.AccessToken != "" && !s.NeedsRefresh(s.tokens.AccessToken, s.now()) {
		return s.tokens.AccessToken, s.tokens.RefreshToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		logrus.WithError(err).Debug("Access token refresh failed")
		return "", "", ErrReauthenticationRequired
	}
	return s.tokens.AccessToken, s.tokens.RefreshToken, nil
}

// RefreshAccessToken exchanges the refresh token for a new access token. Any
// failure clears the held tokens.
func (s *Session) RefreshAccessToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.tokens.RefreshToken == "" {
		s.clearLocked(ctx)
		return ErrReauthenticationRequired
	}

	var out httpdto.RefreshResponse
	if err := s.send(ctx, http.MethodPost, "/refresh", s.tokens.RefreshToken, nil, &out); err != nil {
		s.clearLocked(ctx)
		return err
	}
	if out.AccessToken == "" {
		s.clearLocked(ctx)
		return errors.New("refresh returned no access token")
	}

	next := Tokens{AccessToken: out.AccessToken, RefreshToken: s.tokens.RefreshToken}
	if out.RefreshToken != "" {
		next.RefreshToken = out.RefreshToken
	}
	if err := s.store.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to persist tokens: %w", err)
	}
	s.tokens = next
	return nil
}

func (s *Session) clearLocked(ctx context.Context) {
	s.tokens = Tokens{}
	if err := s.store.Clear(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to clear persisted tokens")
	}
}

func (s *Session) Login(ctx context.Context, username, password string) (*httpdto.LoginResponse, error) {
	var out httpdto.LoginResponse
	err := s.send(ctx, http.MethodPost, "/login", "", httpdto.LoginRequest{Username: username, Password: password}, &out)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
	if err = s.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to persist tokens: %w", err)
	}
	s.tokens = next
	return &out, nil
}

// Logout asks the server to revoke both tokens and always forgets them locally.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.tokens
	s.clearLocked(ctx)
	if tokens.AccessToken == "" {
		return nil
	}
	return s.send(ctx, http.MethodPost, "/logout", tokens.AccessToken,
		httpdto.LogoutRequest{RefreshToken: tokens.RefreshToken}, nil)
}

// Do performs an authorized call. A 401 triggers one refresh and a retry.
func (s *Session) Do(ctx context.Context, method, path string, body, out any) error {
	access, _, err := s.EnsureValidAccessToken(ctx)
	if err != nil {
		return err
	}

	err = s.send(ctx, method, path, access, body, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return err
	}

	if refreshErr := s.RefreshAccessToken(ctx); refreshErr != nil {
		return ErrReauthenticationRequired
	}
	return s.send(ctx, method, path, s.Tokens().AccessToken, body, out)
}

func (s *Session) send(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp httpdto.ErrorResponse
		if json.Unmarshal(raw, &errResp) != nil || errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
