package devserver

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teachlink/client-core/internal/domain"
	"github.com/teachlink/client-core/internal/entitlement"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if !ok || acct.password != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	session, err := s.issueSession(acct.user, "")
	if err != nil {
		s.logger.Error("token mint failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not issue session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	user, ok := s.userByRefresh(req.RefreshToken)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "refresh token is unknown or already rotated")
		return
	}

	session, err := s.issueSession(user, req.RefreshToken)
	if err != nil {
		s.logger.Error("token mint failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not issue session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleSocial accepts any non-empty provider token and provisions an
// account for it on first sight, the way a dev identity provider would.
func (s *Server) handleSocial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider    string `json:"provider"`
		IDToken     string `json:"idToken"`
		AccessToken string `json:"accessToken,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.Provider == "" || req.IDToken == "" {
		writeError(w, http.StatusUnauthorized, "invalid_social_token", "provider and idToken are required")
		return
	}

	email := req.Provider + "-user@teachlink.dev"
	s.mu.Lock()
	acct, ok := s.accounts[email]
	if !ok {
		acct = &account{
			user: domain.User{
				ID:    uuid.NewString(),
				Name:  "Social User",
				Email: email,
				Role:  "student",
			},
		}
		s.accounts[email] = acct
	}
	s.mu.Unlock()

	session, err := s.issueSession(acct.user, "")
	if err != nil {
		s.logger.Error("token mint failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not issue session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleLogout revokes the presented refresh token when one is supplied. The
// client treats this call as advisory, so it always succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken,omitempty"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.RefreshToken != "" {
		s.mu.Lock()
		delete(s.refresh, req.RefreshToken)
		s.mu.Unlock()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidateReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Receipt   string `json:"receipt"`
		Platform  string `json:"platform"`
		ProductID string `json:"productId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.Receipt == "" {
		writeJSON(w, http.StatusOK, entitlement.ReceiptValidation{Valid: false, Error: "missing receipt"})
		return
	}
	if _, err := base64.StdEncoding.DecodeString(req.Receipt); err != nil {
		writeJSON(w, http.StatusOK, entitlement.ReceiptValidation{Valid: false, Error: "malformed receipt"})
		return
	}

	if plan, ok := entitlement.FindPlan(req.ProductID); ok {
		expiry := time.Now().Add(plan.Duration()).UTC()
		writeJSON(w, http.StatusOK, entitlement.ReceiptValidation{
			Valid:     true,
			Expiry:    &expiry,
			ProductID: plan.ProductID,
			Tier:      plan.Tier,
		})
		return
	}
	if req.ProductID == entitlement.ProductCourseBundle {
		writeJSON(w, http.StatusOK, entitlement.ReceiptValidation{Valid: true, ProductID: req.ProductID})
		return
	}
	writeJSON(w, http.StatusOK, entitlement.ReceiptValidation{Valid: false, Error: "unknown product"})
}
