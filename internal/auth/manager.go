// Package auth owns the session lifecycle: credential login, social login,
// biometric re-authentication, silent refresh, restore-on-launch and logout.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/teachlink/client-core/internal/domain"
	"github.com/teachlink/client-core/internal/gateway"
	"github.com/teachlink/client-core/internal/keystore"
	"github.com/teachlink/client-core/internal/observability"
	"github.com/teachlink/client-core/internal/security"
)

type Manager struct {
	api       *gateway.Client
	creds     *keystore.Credentials
	biometric Authenticator
	logger    *slog.Logger
}

func NewManager(api *gateway.Client, creds *keystore.Credentials, biometric Authenticator, logger *slog.Logger) *Manager {
	return &Manager{api: api, creds: creds, biometric: biometric, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges raw credentials for a session and persists it. With
// rememberMe the email is stored separately so it survives logout.
func (m *Manager) Login(ctx context.Context, email, password string, rememberMe bool) (*domain.Session, error) {
	var session domain.Session
	err := m.api.DoDirect(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &session)
	if err != nil {
		observability.RecordAuthLogin("password", "failure")
		if apiErr, ok := gateway.AsAPIError(err); ok && apiErr.Status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
		}
		return nil, err
	}

	if err := m.persistSession(ctx, &session, rememberMe, email); err != nil {
		observability.RecordAuthLogin("password", "persist_failure")
		return nil, err
	}
	observability.RecordAuthLogin("password", "success")
	observability.Audit(ctx, "auth.login", "user_id", session.User.ID, "remember_me", rememberMe)
	return &session, nil
}

// LoginWithSocial signs in with a provider-issued identity token.
func (m *Manager) LoginWithSocial(ctx context.Context, cred domain.SocialCredential) (*domain.Session, error) {
	var session domain.Session
	err := m.api.DoDirect(ctx, http.MethodPost, "/auth/social", cred, &session)
	if err != nil {
		observability.RecordAuthLogin(cred.Provider, "failure")
		return nil, err
	}
	if err := m.persistSession(ctx, &session, false, ""); err != nil {
		observability.RecordAuthLogin(cred.Provider, "persist_failure")
		return nil, err
	}
	observability.RecordAuthLogin(cred.Provider, "success")
	observability.Audit(ctx, "auth.login", "user_id", session.User.ID, "provider", cred.Provider)
	return &session, nil
}

// LoginWithBiometrics re-authenticates via the device challenge. When the
// cached session is still valid it is returned without a network call;
// otherwise the stored refresh token is used for a silent refresh.
func (m *Manager) LoginWithBiometrics(ctx context.Context) (*domain.Session, error) {
	if !m.creds.BiometricEnabled(ctx) {
		return nil, ErrBiometricNotEnabled
	}

	outcome, err := m.biometric.Authenticate(ctx, "Authenticate to sign in")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBiometricFailed, err)
	}
	switch outcome {
	case OutcomeCancelled:
		return nil, ErrBiometricCancelled
	case OutcomeFailed:
		return nil, ErrBiometricFailed
	}

	if m.creds.SessionValid(ctx) {
		if session := m.creds.Session(ctx); session != nil {
			observability.RecordAuthLogin("biometric", "cached")
			return session, nil
		}
		// Token material present but the cached user is gone; the refresh
		// below rebuilds the full session.
	}
	session, err := m.RefreshSession(ctx)
	if err != nil {
		observability.RecordAuthLogin("biometric", "failure")
		return nil, err
	}
	observability.RecordAuthLogin("biometric", "refreshed")
	return session, nil
}

// RefreshSession silently replaces the session using the stored refresh
// token. This shares the gateway's single-flight refresh, so it can never
// race a 401-triggered refresh into a second network call.
func (m *Manager) RefreshSession(ctx context.Context) (*domain.Session, error) {
	return m.api.RefreshSession(ctx)
}

// RestoreSession recovers a session on app launch: the cached one when still
// valid, a silent refresh when possible, and (nil, nil) otherwise — a cold
// start without a session is expected, not exceptional.
func (m *Manager) RestoreSession(ctx context.Context) (*domain.Session, error) {
	if m.creds.SessionValid(ctx) {
		if session := m.creds.Session(ctx); session != nil {
			m.logger.Info("session restored from credential store")
			return session, nil
		}
	}
	if m.creds.RefreshToken(ctx) != "" {
		m.logger.Info("session expired, attempting silent refresh")
		session, err := m.api.RefreshSession(ctx)
		if err != nil {
			m.logger.Warn("session restore failed", "error", err)
			return nil, nil
		}
		return session, nil
	}
	return nil, nil
}

// EnableBiometrics turns on biometric login after a successful confirmation
// challenge. A failed or cancelled challenge never enables the flag.
func (m *Manager) EnableBiometrics(ctx context.Context) error {
	if !m.BiometricAvailable(ctx) {
		return ErrBiometricUnavailable
	}
	outcome, err := m.biometric.Authenticate(ctx, "Authenticate to enable biometric login")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBiometricFailed, err)
	}
	switch outcome {
	case OutcomeCancelled:
		return ErrBiometricCancelled
	case OutcomeFailed:
		return ErrBiometricFailed
	}
	if err := m.creds.SetBiometricEnabled(ctx, true); err != nil {
		return err
	}
	observability.Audit(ctx, "auth.biometrics_enabled")
	return nil
}

func (m *Manager) DisableBiometrics(ctx context.Context) error {
	if err := m.creds.SetBiometricEnabled(ctx, false); err != nil {
		return err
	}
	observability.Audit(ctx, "auth.biometrics_disabled")
	return nil
}

func (m *Manager) BiometricAvailable(ctx context.Context) bool {
	return m.biometric.HasHardware(ctx) && m.biometric.IsEnrolled(ctx)
}

// SupportedBiometricType reports the strongest modality the device offers.
func (m *Manager) SupportedBiometricType(ctx context.Context) domain.BiometricType {
	types := m.biometric.SupportedTypes(ctx)
	for _, want := range []domain.BiometricType{domain.BiometricFace, domain.BiometricFingerprint, domain.BiometricIris} {
		for _, have := range types {
			if have == want {
				return want
			}
		}
	}
	return domain.BiometricNone
}

// Logout notifies the server best-effort, clears all credential material and
// re-applies the preference flags that outlive a session.
func (m *Manager) Logout(ctx context.Context) error {
	biometricEnabled := m.creds.BiometricEnabled(ctx)
	rememberMe := m.creds.RememberMe(ctx)
	rememberedEmail := m.creds.RememberedEmail(ctx)

	if m.creds.AccessToken(ctx) != "" {
		if err := m.api.DoDirect(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
			// Server-side teardown is advisory; local cleanup proceeds.
			m.logger.Warn("logout notify failed", "error", err)
		}
	}

	if err := m.creds.ClearAll(ctx); err != nil {
		observability.RecordAuthLogout("failure")
		return err
	}
	if biometricEnabled {
		if err := m.creds.SetBiometricEnabled(ctx, true); err != nil {
			return err
		}
	}
	if rememberMe && rememberedEmail != "" {
		if err := m.creds.SetRememberMe(ctx, true); err != nil {
			return err
		}
		if err := m.creds.SaveRememberedEmail(ctx, rememberedEmail); err != nil {
			return err
		}
	}
	observability.RecordAuthLogout("success")
	observability.Audit(ctx, "auth.logout")
	return nil
}

// RememberedEmail returns the stored email for login form prefill, empty
// unless remember-me is on.
func (m *Manager) RememberedEmail(ctx context.Context) string {
	return m.creds.RememberedEmail(ctx)
}

func (m *Manager) persistSession(ctx context.Context, session *domain.Session, rememberMe bool, email string) error {
	if session.Tokens.ExpiresAt == 0 {
		if exp, ok := security.TokenExpiry(session.Tokens.AccessToken); ok {
			session.Tokens.ExpiresAt = exp.UnixMilli()
		}
	}
	if err := m.creds.SaveSession(ctx, *session); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if err := m.creds.SetRememberMe(ctx, rememberMe); err != nil {
		return err
	}
	if rememberMe && email != "" {
		if err := m.creds.SaveRememberedEmail(ctx, email); err != nil {
			return err
		}
	}
	return nil
}
