package domain

import "time"

// User is the identity snapshot returned by the auth API. It is replaced
// wholesale on every successful login or refresh, never patched.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Tokens is the bearer material for an authenticated session. ExpiresAt is
// epoch milliseconds and governs local validity checks only; the server
// remains authoritative.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// ExpiresAtTime returns the token expiry as a time.Time.
func (t Tokens) ExpiresAtTime() time.Time {
	return time.UnixMilli(t.ExpiresAt)
}

// Session is the authenticated user plus token pair. A session is either
// fully present or fully absent; partial sessions are never persisted.
type Session struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

// SocialCredential carries a provider-issued identity token for the social
// login endpoint.
type SocialCredential struct {
	Provider    string `json:"provider"`
	IDToken     string `json:"idToken"`
	AccessToken string `json:"accessToken,omitempty"`
}

// BiometricType identifies the strongest biometric modality the device
// reports.
type BiometricType string

const (
	BiometricFace        BiometricType = "face"
	BiometricFingerprint BiometricType = "fingerprint"
	BiometricIris        BiometricType = "iris"
	BiometricNone        BiometricType = "none"
)
