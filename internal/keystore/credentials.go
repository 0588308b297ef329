package keystore

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/teachlink/client-core/internal/domain"
)

const (
	keyAccessToken      = "access_token"
	keyRefreshToken     = "refresh_token"
	keySessionExpiresAt = "session_expires_at"
	keyUserData         = "user_data"
	keyBiometricEnabled = "biometric_enabled"
	keyRememberedEmail  = "remembered_email"
	keyRememberMe       = "remember_me"
)

// ExpiryMargin is how early a session is considered expired locally, leaving
// room for a refresh before the server starts rejecting the token.
const ExpiryMargin = 30 * time.Second

// Credentials layers the typed session fields over a raw Store.
type Credentials struct {
	store Store
	now   func() time.Time
}

func NewCredentials(store Store) *Credentials {
	return &Credentials{store: store, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (c *Credentials) WithNow(now func() time.Time) *Credentials {
	c.now = now
	return c
}

// SaveTokens writes the token triple sequentially. The first failed write
// aborts and reports which field failed via the wrapped error.
func (c *Credentials) SaveTokens(ctx context.Context, t domain.Tokens) error {
	if err := c.store.Set(ctx, keyAccessToken, t.AccessToken); err != nil {
		return err
	}
	if err := c.store.Set(ctx, keyRefreshToken, t.RefreshToken); err != nil {
		return err
	}
	return c.store.Set(ctx, keySessionExpiresAt, strconv.FormatInt(t.ExpiresAt, 10))
}

func (c *Credentials) AccessToken(ctx context.Context) string {
	return c.store.Get(ctx, keyAccessToken)
}

func (c *Credentials) RefreshToken(ctx context.Context) string {
	return c.store.Get(ctx, keyRefreshToken)
}

func (c *Credentials) SessionExpiresAt(ctx context.Context) (int64, bool) {
	raw := c.store.Get(ctx, keySessionExpiresAt)
	if raw == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

func (c *Credentials) SaveUser(ctx context.Context, user domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, keyUserData, string(raw))
}

func (c *Credentials) User(ctx context.Context) *domain.User {
	raw := c.store.Get(ctx, keyUserData)
	if raw == "" {
		return nil
	}
	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil
	}
	return &user
}

// SaveSession persists tokens and user as a unit. On any write failure the
// already-written session keys are removed best-effort so a half-written
// session is never observable afterwards.
func (c *Credentials) SaveSession(ctx context.Context, s domain.Session) error {
	if err := c.SaveTokens(ctx, s.Tokens); err != nil {
		c.removeSessionKeys(ctx)
		return err
	}
	if err := c.SaveUser(ctx, s.User); err != nil {
		c.removeSessionKeys(ctx)
		return err
	}
	return nil
}

// Session returns the fully-populated session, or nil when any field is
// missing.
func (c *Credentials) Session(ctx context.Context) *domain.Session {
	user := c.User(ctx)
	access := c.AccessToken(ctx)
	refresh := c.RefreshToken(ctx)
	expiresAt, ok := c.SessionExpiresAt(ctx)
	if user == nil || access == "" || refresh == "" || !ok {
		return nil
	}
	return &domain.Session{
		User:   *user,
		Tokens: domain.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt},
	}
}

// SessionValid reports whether a token is present and does not expire within
// the safety margin.
func (c *Credentials) SessionValid(ctx context.Context) bool {
	if c.AccessToken(ctx) == "" {
		return false
	}
	expiresAt, ok := c.SessionExpiresAt(ctx)
	if !ok {
		return false
	}
	return time.UnixMilli(expiresAt).After(c.now().Add(ExpiryMargin))
}

func (c *Credentials) SetBiometricEnabled(ctx context.Context, enabled bool) error {
	return c.store.Set(ctx, keyBiometricEnabled, boolFlag(enabled))
}

func (c *Credentials) BiometricEnabled(ctx context.Context) bool {
	return c.store.Get(ctx, keyBiometricEnabled) == "1"
}

func (c *Credentials) SetRememberMe(ctx context.Context, enabled bool) error {
	return c.store.Set(ctx, keyRememberMe, boolFlag(enabled))
}

func (c *Credentials) RememberMe(ctx context.Context) bool {
	return c.store.Get(ctx, keyRememberMe) == "1"
}

func (c *Credentials) SaveRememberedEmail(ctx context.Context, email string) error {
	return c.store.Set(ctx, keyRememberedEmail, email)
}

// RememberedEmail returns the stored email only while the remember-me flag
// is on.
func (c *Credentials) RememberedEmail(ctx context.Context) string {
	if !c.RememberMe(ctx) {
		return ""
	}
	return c.store.Get(ctx, keyRememberedEmail)
}

// ClearAll removes every credential key, preferences included. Callers that
// need preferences to survive must re-apply them afterwards.
func (c *Credentials) ClearAll(ctx context.Context) error {
	return c.store.ClearAll(ctx)
}

func (c *Credentials) removeSessionKeys(ctx context.Context) {
	for _, key := range []string{keyAccessToken, keyRefreshToken, keySessionExpiresAt, keyUserData} {
		_ = c.store.Remove(ctx, key)
	}
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
