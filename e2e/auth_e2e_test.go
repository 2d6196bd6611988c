//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/breviobot/breviobot-service/app/database"
	authgrpc "github.com/breviobot/breviobot-service/app/grpc"
	"github.com/breviobot/breviobot-service/client"
	"github.com/breviobot/breviobot-service/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// The server must run with DB_DRIVER=sqlite and the same DSN as E2E_DB_DSN so
// the test can read the emailed verification token straight from the users table.
const (
	defaultHTTPBase = "http://localhost:8080"
	defaultGRPCAddr = "localhost:9090"
	defaultDBDSN    = "file:breviobot.db"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	httpClient := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("http service not ready at %s", baseURL)
}

func waitForGRPC(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("grpc service not ready at %s", addr)
}

func verificationToken(t *testing.T, db *sql.DB, username string) string {
	t.Helper()

	var token sql.NullString
	err := db.QueryRow("SELECT verification_token FROM users WHERE username = ?", username).Scan(&token)
	if err != nil {
		t.Fatalf("read verification token failed: %v", err)
	}
	if !token.Valid {
		t.Fatalf("user %s has no pending verification token", username)
	}
	return token.String
}

func newSession(t *testing.T, baseURL string) *client.Session {
	t.Helper()

	store, err := client.OpenBoltStore(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("open token store failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	s, err := client.NewSession(context.Background(), baseURL, store)
	if err != nil {
		t.Fatalf("new session failed: %v", err)
	}
	return s
}

func TestAuthE2E_Flow(t *testing.T) {
	httpBase := envOr("BREVIOBOT_HTTP_URL", defaultHTTPBase)
	grpcAddr := envOr("BREVIOBOT_GRPC_ADDR", defaultGRPCAddr)

	if err := waitForHTTP(httpBase, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}
	if err := waitForGRPC(grpcAddr, 30*time.Second); err != nil {
		t.Fatalf("grpc not ready: %v", err)
	}

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, DSN: envOr("E2E_DB_DSN", defaultDBDSN)})
	if err != nil {
		t.Fatalf("open database failed: %v", err)
	}
	defer db.Close()

	suffix := time.Now().UnixNano()
	username := fmt.Sprintf("e2e%d", suffix)
	email := fmt.Sprintf("e2e+%d@example.com", suffix)
	password := "secret1"

	session := newSession(t, httpBase)

	t.Run("signup", func(t *testing.T) {
		res, err := session.Signup(ctx, username, email, password)
		if err != nil {
			t.Fatalf("signup failed: %v", err)
		}
		if res.IsVerified {
			t.Fatalf("expected unverified account after signup")
		}
	})

	t.Run("login before verification", func(t *testing.T) {
		_, err := session.Login(ctx, username, password)
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 before verification, got %v", err)
		}
	})

	t.Run("verify", func(t *testing.T) {
		token := verificationToken(t, db, username)
		if _, err := session.Verify(ctx, token); err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		if _, err := session.Verify(ctx, token); err == nil {
			t.Fatalf("expected second redemption to fail")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := newSession(t, httpBase).Login(ctx, username, "wrong-password")
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "Invalid credentials" {
			t.Fatalf("expected generic invalid credentials, got %v", err)
		}
	})

	t.Run("login and me", func(t *testing.T) {
		if _, err := session.Login(ctx, username, password); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		me, err := session.Me(ctx)
		if err != nil {
			t.Fatalf("me failed: %v", err)
		}
		if me.User.Username != username {
			t.Fatalf("unexpected identity: %+v", me.User)
		}
	})

	t.Run("refresh", func(t *testing.T) {
		before := session.Tokens()
		if err := session.RefreshAccessToken(ctx); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		after := session.Tokens()
		if after.AccessToken == "" || after.RefreshToken != before.RefreshToken {
			t.Fatalf("unexpected tokens after refresh")
		}
	})

	t.Run("grpc", func(t *testing.T) {
		conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			t.Fatalf("grpc dial failed: %v", err)
		}
		defer conn.Close()

		grpcClient := authgrpc.NewAuthServiceClient(conn)
		access := session.Tokens().AccessToken

		res, err := grpcClient.ValidateToken(ctx, access)
		if err != nil {
			t.Fatalf("validate token failed: %v", err)
		}
		if !res.GetFields()["valid"].GetBoolValue() {
			t.Fatalf("expected valid token: %v", res)
		}

		whoami, err := grpcClient.WhoAmI(metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+access))
		if err != nil {
			t.Fatalf("whoami failed: %v", err)
		}
		if whoami.GetFields()["username"].GetStringValue() != username {
			t.Fatalf("unexpected whoami: %v", whoami)
		}
	})

	t.Run("logout", func(t *testing.T) {
		access := session.Tokens().AccessToken
		if err := session.Logout(ctx); err != nil {
			t.Fatalf("logout failed: %v", err)
		}

		replay := newSession(t, httpBase)
		if err := replay.Do(ctx, http.MethodGet, "/me", nil, nil); !errors.Is(err, client.ErrReauthenticationRequired) {
			t.Fatalf("expected re-authentication without tokens, got %v", err)
		}

		conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			t.Fatalf("grpc dial failed: %v", err)
		}
		defer conn.Close()
		res, err := authgrpc.NewAuthServiceClient(conn).ValidateToken(ctx, access)
		if err != nil {
			t.Fatalf("validate token failed: %v", err)
		}
		if res.GetFields()["valid"].GetBoolValue() {
			t.Fatalf("expected revoked access token to be invalid")
		}
	})
}

func TestAuthE2E_ConcurrentSignup(t *testing.T) {
	httpBase := envOr("BREVIOBOT_HTTP_URL", defaultHTTPBase)
	if err := waitForHTTP(httpBase, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}

	username := fmt.Sprintf("bob%d", time.Now().UnixNano())
	sessions := []*client.Session{newSession(t, httpBase), newSession(t, httpBase)}
	errs := make([]error, len(sessions))
	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = sessions[i].Signup(context.Background(), username, fmt.Sprintf("%s-%d@example.com", username, i), "secret1")
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		var apiErr *client.APIError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest:
			dup++
		default:
			t.Fatalf("unexpected signup error: %v", err)
		}
	}
	if ok != 1 || dup != 1 {
		t.Fatalf("expected one success and one duplicate, got %d/%d", ok, dup)
	}
}
