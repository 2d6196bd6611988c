package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	httpdto "github.com/breviobot/breviobot-service/app/dto/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("whatever"))
	require.NoError(t, err)
	return token
}

type fakeAPI struct {
	refreshToken string
	rotateTo     string
	nextAccess   string
	refreshCalls atomic.Int32
	refreshFails bool
	meAccepts    func(token string) bool
	logoutBody   httpdto.LogoutRequest
	logoutCalls  atomic.Int32
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		if f.refreshFails || r.Header.Get("Authorization") != "Bearer "+f.refreshToken {
			writeJSON(w, http.StatusUnauthorized, httpdto.ErrorResponse{Error: "Token has expired"})
			return
		}
		writeJSON(w, http.StatusOK, httpdto.RefreshResponse{
			AccessToken:  f.nextAccess,
			RefreshToken: f.rotateTo,
			TokenType:    "bearer",
			ExpiresIn:    900,
		})
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var req httpdto.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret1" {
			writeJSON(w, http.StatusUnauthorized, httpdto.ErrorResponse{Error: "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, httpdto.LoginResponse{
			AccessToken:  f.nextAccess,
			RefreshToken: f.refreshToken,
			TokenType:    "bearer",
			ExpiresIn:    900,
			User:         httpdto.UserSummary{ID: 1, Username: req.Username},
		})
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if len(token) < 7 || !f.meAccepts(token[7:]) {
			writeJSON(w, http.StatusUnauthorized, httpdto.ErrorResponse{Error: "Invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, httpdto.MeResponse{User: httpdto.IdentityResponse{UserID: 1, Username: "alice", Role: "user"}})
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logoutCalls.Add(1)
		_ = json.NewDecoder(r.Body).Decode(&f.logoutBody)
		writeJSON(w, http.StatusOK, httpdto.MessageResponse{Message: "Successfully logged out"})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{
		refreshToken: "refresh-1",
		nextAccess:   signedToken(t, testNow.Add(15*time.Minute)),
		meAccepts:    func(string) bool { return true },
	}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return api, srv
}

func newTestSession(t *testing.T, baseURL string, store TokenStore) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), baseURL, store, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return s
}

func TestNeedsRefresh(t *testing.T) {
	s := newTestSession(t, "http://unused", NewMemoryStore())

	assert.False(t, s.NeedsRefresh(signedToken(t, testNow.Add(10*time.Minute)), testNow))
	assert.True(t, s.NeedsRefresh(signedToken(t, testNow.Add(30*time.Second)), testNow))
	assert.True(t, s.NeedsRefresh(signedToken(t, testNow.Add(-time.Minute)), testNow))
	assert.False(t, s.NeedsRefresh("not-a-jwt", testNow))
}

func TestEnsureValidAccessTokenFreshIsUnchanged(t *testing.T) {
	api, srv := newFakeAPI(t)
	fresh := signedToken(t, testNow.Add(10*time.Minute))
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), Tokens{AccessToken: fresh, RefreshToken: "refresh-1"}))
	s := newTestSession(t, srv.URL, store)

	access, refresh, err := s.EnsureValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fresh, access)
	assert.Equal(t, "refresh-1", refresh)
	assert.Zero(t, api.refreshCalls.Load())
}

func TestEnsureValidAccessTokenRefreshesNearExpiry(t *testing.T) {
	api, srv := newFakeAPI(t)
	store := NewMemoryStore()
	stale := signedToken(t, testNow.Add(20*time.Second))
	require.NoError(t, store.Save(context.Background(), Tokens{AccessToken: stale, RefreshToken: "refresh-1"}))
	s := newTestSession(t, srv.URL, store)

	access, refresh, err := s.EnsureValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.nextAccess, access)
	assert.Equal(t, "refresh-1", refresh)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.nextAccess, persisted.AccessToken)
}

func TestEnsureValidAccessTokenAdoptsRotatedRefreshToken(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.rotateTo = "refresh-2"
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), Tokens{
		AccessToken:  signedToken(t, testNow.Add(-time.Minute)),
		RefreshToken: "refresh-1",
	}))
	s := newTestSession(t, srv.URL, store)

	access, refresh, err := s.EnsureValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.nextAccess, access)
	assert.Equal(t, "refresh-2", refresh)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", persisted.RefreshToken)
}

func TestEnsureValidAccessTokenConcurrentCallersRefreshOnce(t *testing.T) {
	api, srv := newFakeAPI(t)
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), Tokens{
		AccessToken:  signedToken(t, testNow.Add(-time.Minute)),
		RefreshToken: "refresh-1",
	}))
	s := newTestSession(t, srv.URL, store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.EnsureValidAccessToken(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), api.refreshCalls.Load())
}

func TestEnsureValidAccessTokenFailureClearsTokens(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.refreshFails = true
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), Tokens{
		AccessToken:  signedToken(t, testNow.Add(-time.Minute)),
		RefreshToken: "refresh-1",
	}))
	s := newTestSession(t, srv.URL, store)

	_, _, err := s.EnsureValidAccessToken(context.Background())
	require.ErrorIs(t, err, ErrReauthenticationRequired)
	assert.True(t, s.Tokens().Empty())

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, persisted.Empty())
}

func TestEnsureValidAccessTokenWithoutTokens(t *testing.T) {
	api, srv := newFakeAPI(t)
	s := newTestSession(t, srv.URL, NewMemoryStore())

	_, _, err := s.EnsureValidAccessToken(context.Background())
	require.ErrorIs(t, err, ErrReauthenticationRequired)
	assert.Zero(t, api.refreshCalls.Load())
}

func TestLoginPersistsTokens(t *testing.T) {
	api, srv := newFakeAPI(t)
	store := NewMemoryStore()
	s := newTestSession(t, srv.URL, store)

	_, err := s.Login(context.Background(), "alice", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid credentials", apiErr.Message)

	res, err := s.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.User.Username)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Tokens{AccessToken: api.nextAccess, RefreshToken: "refresh-1"}, persisted)
}

func TestDoRetriesOnceAfterUnauthorized(t *testing.T) {
	api, srv := newFakeAPI(t)
	revoked := signedToken(t, testNow.Add(10*time.Minute))
	api.meAccepts = func(token string) bool { return token != revoked }
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), Tokens{AccessToken: revoked, RefreshToken: "refresh-1"}))
	s := newTestSession(t, srv.URL, store)

	me, err := s.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", me.User.Username)
	assert.Equal(t, int32(1), api.refreshCalls.Load())
}

func TestLogoutClearsAndRevokes(t *testing.T) {
	api, srv := newFakeAPI(t)
	store := NewMemoryStore()
	s := newTestSession(t, srv.URL, store)
	_, err := s.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	require.NoError(t, s.Logout(context.Background()))
	assert.Equal(t, int32(1), api.logoutCalls.Load())
	assert.Equal(t, "refresh-1", api.logoutBody.RefreshToken)
	assert.True(t, s.Tokens().Empty())

	// Nothing held, nothing sent.
	require.NoError(t, s.Logout(context.Background()))
	assert.Equal(t, int32(1), api.logoutCalls.Load())
}

func TestBoltStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	store, err := OpenBoltStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, empty.Empty())

	want := Tokens{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, store.Save(ctx, want))
	require.NoError(t, store.Close())

	reopened, err := OpenBoltStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, reopened.Clear(ctx))
	got, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Empty())
}
