package devserver

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teachlink/client-core/internal/config"
	"github.com/teachlink/client-core/internal/domain"
	"github.com/teachlink/client-core/internal/entitlement"
	"github.com/teachlink/client-core/internal/security"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	cfg := &config.Config{DevServerJWTSecret: "test-jwt-secret", DevServerAccessTTL: time.Hour}
	srv := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeSession(t *testing.T, resp *http.Response) domain.Session {
	t.Helper()
	var session domain.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return session
}

func TestLoginIssuesVerifiableSession(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/auth/login", map[string]string{
		"email": "student@teachlink.dev", "password": "learn-to-code",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	session := decodeSession(t, resp)
	if session.User.Email != "student@teachlink.dev" || session.Tokens.RefreshToken == "" {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.Tokens.ExpiresAt <= time.Now().UnixMilli() {
		t.Fatal("expiry must be in the future")
	}

	jwtMgr := security.NewJWTManager("teachlink-devserver", "test-jwt-secret")
	claims, err := jwtMgr.ParseAccessToken(session.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("access token must verify: %v", err)
	}
	if claims.Email != "student@teachlink.dev" || claims.Role != "student" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/auth/login", map[string]string{
		"email": "student@teachlink.dev", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if apiErr.Code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %q", apiErr.Code)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	ts, _ := newTestServer(t)

	login := decodeSession(t, postJSON(t, ts.URL+"/auth/login", map[string]string{
		"email": "student@teachlink.dev", "password": "learn-to-code",
	}))

	resp := postJSON(t, ts.URL+"/auth/refresh", map[string]string{"refreshToken": login.Tokens.RefreshToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	refreshed := decodeSession(t, resp)
	if refreshed.Tokens.RefreshToken == login.Tokens.RefreshToken {
		t.Fatal("refresh must rotate the refresh token")
	}
	if refreshed.User.ID != login.User.ID {
		t.Fatal("refresh must keep the user identity")
	}

	// The consumed token is gone.
	replay := postJSON(t, ts.URL+"/auth/refresh", map[string]string{"refreshToken": login.Tokens.RefreshToken})
	if replay.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed refresh token: expected 401, got %d", replay.StatusCode)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/auth/refresh", map[string]string{"refreshToken": "never-issued"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSocialLoginProvisionsAccount(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/auth/social", map[string]string{"provider": "google", "idToken": "idt"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	first := decodeSession(t, resp)

	// Same provider token maps back to the same account.
	second := decodeSession(t, postJSON(t, ts.URL+"/auth/social", map[string]string{"provider": "google", "idToken": "idt2"}))
	if first.User.ID != second.User.ID {
		t.Fatal("social account must be stable across logins")
	}

	missing := postJSON(t, ts.URL+"/auth/social", map[string]string{"provider": "google"})
	if missing.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing idToken, got %d", missing.StatusCode)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	ts, _ := newTestServer(t)

	login := decodeSession(t, postJSON(t, ts.URL+"/auth/login", map[string]string{
		"email": "student@teachlink.dev", "password": "learn-to-code",
	}))

	resp := postJSON(t, ts.URL+"/auth/logout", map[string]string{"refreshToken": login.Tokens.RefreshToken})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	replay := postJSON(t, ts.URL+"/auth/refresh", map[string]string{"refreshToken": login.Tokens.RefreshToken})
	if replay.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked refresh token: expected 401, got %d", replay.StatusCode)
	}
}

func TestValidateReceipt(t *testing.T) {
	ts, _ := newTestServer(t)
	receipt := base64.StdEncoding.EncodeToString([]byte("receipt"))

	var result entitlement.ReceiptValidation
	resp := postJSON(t, ts.URL+"/payments/validate", map[string]string{
		"receipt": receipt, "platform": "ios", "productId": entitlement.ProductPremiumAnnual,
	})
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Valid || result.Tier != domain.TierPremium || result.Expiry == nil {
		t.Fatalf("unexpected result %+v", result)
	}

	resp = postJSON(t, ts.URL+"/payments/validate", map[string]string{
		"receipt": receipt, "platform": "ios", "productId": "bogus",
	})
	result = entitlement.ReceiptValidation{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Valid {
		t.Fatal("unknown product must not validate")
	}

	resp = postJSON(t, ts.URL+"/payments/validate", map[string]string{
		"receipt": "%%% not base64 %%%", "platform": "ios", "productId": entitlement.ProductProMonthly,
	})
	result = entitlement.ReceiptValidation{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Valid {
		t.Fatal("malformed receipt must not validate")
	}
}
