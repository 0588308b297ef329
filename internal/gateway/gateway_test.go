package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teachlink/client-core/internal/config"
	"github.com/teachlink/client-core/internal/domain"
	"github.com/teachlink/client-core/internal/keystore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClientForTest(t *testing.T, baseURL string) (*Client, *keystore.Credentials) {
	t.Helper()
	creds := keystore.NewCredentials(keystore.NewMemoryStore())
	cfg := &config.Config{APIBaseURL: baseURL, HTTPTimeout: 5 * time.Second}
	return New(cfg, creds, testLogger()), creds
}

func seedSession(t *testing.T, creds *keystore.Credentials, access, refresh string) {
	t.Helper()
	err := creds.SaveSession(context.Background(), domain.Session{
		User: domain.User{ID: "1", Name: "Ada", Email: "a@b.com"},
		Tokens: domain.Tokens{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
		},
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func writeSession(w http.ResponseWriter, access, refresh string) {
	_ = json.NewEncoder(w).Encode(domain.Session{
		User: domain.User{ID: "1", Name: "Ada", Email: "a@b.com"},
		Tokens: domain.Tokens{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
		},
	})
}

// refreshStub is a backend whose /protected endpoint accepts only the
// current access token and whose /auth/refresh rotates it after a delay,
// counting calls.
type refreshStub struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	refreshCalls int32
	refreshDelay time.Duration
	refreshFail  bool
	retryAuths   []string
}

func (s *refreshStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/protected", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		want := "Bearer " + s.accessToken
		s.mu.Unlock()
		got := r.Header.Get("Authorization")
		if got != want {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "token_expired"})
			return
		}
		s.mu.Lock()
		s.retryAuths = append(s.retryAuths, got)
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "true"})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.refreshCalls, 1)
		time.Sleep(s.refreshDelay)
		if s.refreshFail {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "invalid_refresh_token"})
			return
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		if body.RefreshToken != s.refreshToken {
			s.mu.Unlock()
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "invalid_refresh_token"})
			return
		}
		access := s.accessToken
		s.mu.Unlock()
		writeSession(w, access, "RT2")
	})
	return mux
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	stub := &refreshStub{accessToken: "AT2", refreshToken: "RT1", refreshDelay: 250 * time.Millisecond}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	client, creds := newClientForTest(t, srv.URL)
	seedSession(t, creds, "AT1", "RT1") // stale access token, valid refresh token

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			var out map[string]string
			errs[i] = client.Do(context.Background(), http.MethodGet, "/protected", nil, &out)
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&stub.refreshCalls); got != 1 {
		t.Fatalf("expected exactly 1 refresh call, got %d", got)
	}
	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.retryAuths) != n {
		t.Fatalf("expected %d retried requests, got %d", n, len(stub.retryAuths))
	}
	for _, auth := range stub.retryAuths {
		if auth != "Bearer AT2" {
			t.Fatalf("retried request carried %q, want the refreshed token", auth)
		}
	}
	if creds.AccessToken(context.Background()) != "AT2" {
		t.Fatal("refreshed token not persisted")
	}
}

func TestRefreshFailureFansOutToAllWaiters(t *testing.T) {
	stub := &refreshStub{accessToken: "AT2", refreshToken: "RT1", refreshDelay: 250 * time.Millisecond, refreshFail: true}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	client, creds := newClientForTest(t, srv.URL)
	seedSession(t, creds, "AT1", "RT1")

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = client.Do(context.Background(), http.MethodGet, "/protected", nil, nil)
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		apiErr, ok := AsAPIError(err)
		if !ok {
			t.Fatalf("request %d: expected APIError, got %v", i, err)
		}
		if apiErr.Code != "invalid_refresh_token" {
			t.Fatalf("request %d: unexpected code %q", i, apiErr.Code)
		}
	}
	if got := atomic.LoadInt32(&stub.refreshCalls); got != 1 {
		t.Fatalf("expected exactly 1 refresh call, got %d", got)
	}
}

func TestSecond401AfterRefreshIsSessionExpired(t *testing.T) {
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/protected", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		writeSession(w, "AT2", "RT2")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, creds := newClientForTest(t, srv.URL)
	seedSession(t, creds, "AT1", "RT1")

	err := client.Do(context.Background(), http.MethodGet, "/protected", nil, nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if got := atomic.LoadInt32(&refreshCalls); got != 1 {
		t.Fatalf("expected a single refresh attempt, got %d", got)
	}
}

func TestNoRefreshTokenFailsFast(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/protected", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, _ := newClientForTest(t, srv.URL)

	err := client.Do(context.Background(), http.MethodGet, "/protected", nil, nil)
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
}

func TestNon401ErrorsPassThrough(t *testing.T) {
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/courses", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "maintenance", "message": "try later"})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, creds := newClientForTest(t, srv.URL)
	seedSession(t, creds, "AT1", "RT1")

	err := client.Do(context.Background(), http.MethodGet, "/courses", nil, nil)
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable || apiErr.Code != "maintenance" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if atomic.LoadInt32(&refreshCalls) != 0 {
		t.Fatal("non-401 must not trigger a refresh")
	}
}

func TestTransportFailureWrapsErrNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listening anymore

	client, _ := newClientForTest(t, srv.URL)
	err := client.Do(context.Background(), http.MethodGet, "/anything", nil, nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestUnauthenticatedRequestCarriesNoBearer(t *testing.T) {
	var sawAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		writeSession(w, "AT1", "RT1")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, _ := newClientForTest(t, srv.URL)
	var out domain.Session
	if err := client.DoDirect(context.Background(), http.MethodPost, "/auth/login",
		map[string]string{"email": "a@b.com", "password": "x"}, &out); err != nil {
		t.Fatalf("login call: %v", err)
	}
	if sawAuth != "" {
		t.Fatalf("expected no Authorization header, got %q", sawAuth)
	}
	if out.Tokens.AccessToken != "AT1" {
		t.Fatalf("unexpected session %+v", out)
	}
}

func TestDoDirectDoesNotRefresh(t *testing.T) {
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "invalid_credentials", "message": "wrong password"})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, creds := newClientForTest(t, srv.URL)
	seedSession(t, creds, "AT1", "RT1")

	err := client.DoDirect(context.Background(), http.MethodPost, "/auth/login",
		map[string]string{"email": "a@b.com", "password": "wrong"}, nil)
	apiErr, ok := AsAPIError(err)
	if !ok || apiErr.Code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials APIError, got %v", err)
	}
	if atomic.LoadInt32(&refreshCalls) != 0 {
		t.Fatal("DoDirect must never trigger a refresh")
	}
}
