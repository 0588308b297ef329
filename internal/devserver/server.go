// Package devserver is a local stand-in for the remote Auth and Payments
// APIs, used by the CLI dev loop and the integration tests. It keeps all
// state in memory and speaks the same wire contract as production: bare JSON
// bodies, errors as {code, message}.
package devserver

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/teachlink/client-core/internal/config"
	"github.com/teachlink/client-core/internal/domain"
	"github.com/teachlink/client-core/internal/security"
)

type account struct {
	user     domain.User
	password string
}

// Server holds the in-memory user and refresh-token state.
type Server struct {
	jwt       *security.JWTManager
	accessTTL time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	accounts map[string]*account // keyed by email
	refresh  map[string]string   // refresh token -> user id
}

func New(cfg *config.Config, logger *slog.Logger) *Server {
	s := &Server{
		jwt:       security.NewJWTManager("teachlink-devserver", cfg.DevServerJWTSecret),
		accessTTL: cfg.DevServerAccessTTL,
		logger:    logger,
		accounts:  make(map[string]*account),
		refresh:   make(map[string]string),
	}
	s.seed()
	return s
}

// seed provisions the well-known dev account.
func (s *Server) seed() {
	s.accounts["student@teachlink.dev"] = &account{
		user: domain.User{
			ID:    uuid.NewString(),
			Name:  "Sam Student",
			Email: "student@teachlink.dev",
			Role:  "student",
		},
		password: "learn-to-code",
	}
}

// Handler builds the devserver router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/social", s.handleSocial)
		r.Post("/logout", s.handleLogout)
	})
	r.Post("/payments/validate", s.handleValidateReceipt)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// issueSession mints a fresh token pair for the user, rotating the refresh
// token.
func (s *Server) issueSession(user domain.User, oldRefresh string) (domain.Session, error) {
	access, err := s.jwt.SignAccessToken(user.ID, user.Name, user.Email, user.Role, s.accessTTL)
	if err != nil {
		return domain.Session{}, err
	}
	newRefresh := uuid.NewString()

	s.mu.Lock()
	if oldRefresh != "" {
		delete(s.refresh, oldRefresh)
	}
	s.refresh[newRefresh] = user.ID
	s.mu.Unlock()

	return domain.Session{
		User: user,
		Tokens: domain.Tokens{
			AccessToken:  access,
			RefreshToken: newRefresh,
			ExpiresAt:    time.Now().Add(s.accessTTL).UnixMilli(),
		},
	}, nil
}

func (s *Server) userByRefresh(token string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.refresh[token]
	if !ok {
		return domain.User{}, false
	}
	for _, acct := range s.accounts {
		if acct.user.ID == userID {
			return acct.user, true
		}
	}
	return domain.User{}, false
}
