package auth

import (
	"context"

	"github.com/teachlink/client-core/internal/domain"
)

// Outcome is the result of a biometric challenge. Cancellation is a distinct
// outcome, not an error class shared with hard failures.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Authenticator is the device biometric boundary. The challenge is driven by
// device UI: it can be cancelled by the user but not programmatically
// interrupted mid-flight.
type Authenticator interface {
	HasHardware(ctx context.Context) bool
	IsEnrolled(ctx context.Context) bool
	SupportedTypes(ctx context.Context) []domain.BiometricType
	Authenticate(ctx context.Context, prompt string) (Outcome, error)
}

// StaticAuthenticator is a fixed-response Authenticator for tests and for
// environments without biometric hardware (the CLI dev loop).
type StaticAuthenticator struct {
	Hardware bool
	Enrolled bool
	Types    []domain.BiometricType
	Result   Outcome
	Err      error
}

func (a *StaticAuthenticator) HasHardware(context.Context) bool { return a.Hardware }
func (a *StaticAuthenticator) IsEnrolled(context.Context) bool  { return a.Enrolled }

func (a *StaticAuthenticator) SupportedTypes(context.Context) []domain.BiometricType {
	return a.Types
}

func (a *StaticAuthenticator) Authenticate(context.Context, string) (Outcome, error) {
	return a.Result, a.Err
}
