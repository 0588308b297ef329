package auth

import "errors"

var (
	// ErrInvalidCredentials is the server rejecting an email/password pair.
	// Never auto-retried; the user re-enters their credentials.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrBiometricNotEnabled means biometric login was attempted before
	// EnableBiometrics ever succeeded on this device.
	ErrBiometricNotEnabled = errors.New("biometric login is not enabled")

	// ErrBiometricUnavailable means the device has no usable biometric
	// hardware or nothing enrolled.
	ErrBiometricUnavailable = errors.New("biometric authentication is not available on this device")

	// ErrBiometricFailed is a hard challenge failure; the UI offers the
	// password fallback.
	ErrBiometricFailed = errors.New("biometric authentication failed")

	// ErrBiometricCancelled is the user dismissing the prompt. Silent: not
	// an error banner, just an aborted sign-in.
	ErrBiometricCancelled = errors.New("biometric authentication cancelled")
)
