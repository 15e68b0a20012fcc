package studenthub

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes let callers branch on failure kind without matching messages.
const (
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeEmailTaken         = "EMAIL_TAKEN"
	textCodeTransportFailure   = "TRANSPORT_FAILURE"
	textCodeProfileUnavailable = "PROFILE_UNAVAILABLE"
	textCodeSessionExpired     = "SESSION_EXPIRED"
	textCodeIdleTimeout        = "IDLE_TIMEOUT"
	textCodeValidation         = "VALIDATION_FAILED"
	textCodeAccountPending     = "ACCOUNT_PENDING"
	textCodeAccountBlocked     = "ACCOUNT_BLOCKED"
)

// ErrInvalidCredentials is returned for any failed credential check. The
// message is identical for an unknown email and a wrong password so the login
// surface cannot be used to enumerate accounts.
var ErrInvalidCredentials = goerrors.New("Invalid credentials", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailTaken is returned when registering an email that already has an
// account. Registration may disclose existence; the caller supplied the email.
var ErrEmailTaken = goerrors.New("An account with this email already exists", goerrors.CategoryConflict).
	WithTextCode(textCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrTransportFailure covers network failures and malformed responses from the
// authentication backend.
var ErrTransportFailure = goerrors.New("Unable to reach the authentication service, please try again", goerrors.CategoryOperation).
	WithTextCode(textCodeTransportFailure).
	WithCode(goerrors.CodeInternal)

// ErrProfileUnavailable means the session is valid but the profile fetch
// failed. Recoverable; it never destroys the session.
var ErrProfileUnavailable = goerrors.New("Could not load your profile", goerrors.CategoryOperation).
	WithTextCode(textCodeProfileUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrSessionExpired is used when the backend no longer recognizes the session.
var ErrSessionExpired = goerrors.New("Your session has expired, please sign in again", goerrors.CategoryAuth).
	WithTextCode(textCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdleTimeout is the forced-logout reason raised by the inactivity monitor.
// Deliberately distinct from a manual sign-out.
var ErrIdleTimeout = goerrors.New("You were signed out after a period of inactivity", goerrors.CategoryAuth).
	WithTextCode(textCodeIdleTimeout).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingCredentials is a client-side validation failure; no network call
// is made when it fires.
var ErrMissingCredentials = goerrors.New("Email and password are required", goerrors.CategoryValidation).
	WithTextCode(textCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword signals a password comparison failure.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithTextCode(textCodeValidation).
	WithCode(goerrors.CodeBadRequest)

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

// IsCredentialError reports whether err is a failed credential check.
func IsCredentialError(err error) bool {
	return hasTextCode(err, textCodeInvalidCredentials)
}

// IsConflictError reports whether err is a duplicate-account conflict.
func IsConflictError(err error) bool {
	return hasTextCode(err, textCodeEmailTaken)
}

// IsTransportError reports whether err is a network or decoding failure.
func IsTransportError(err error) bool {
	return hasTextCode(err, textCodeTransportFailure)
}

// IsProfileError reports whether err is a recoverable hydration failure.
func IsProfileError(err error) bool {
	return hasTextCode(err, textCodeProfileUnavailable)
}

// IsSessionExpired reports whether err means the session is no longer valid.
func IsSessionExpired(err error) bool {
	return hasTextCode(err, textCodeSessionExpired)
}

// IsValidationError reports whether err was raised before any network call.
func IsValidationError(err error) bool {
	return hasTextCode(err, textCodeValidation)
}

// UserMessage extracts the human-readable message from a taxonomy error,
// falling back to a generic retry suggestion for anything else.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Message != "" {
		return rich.Message
	}
	return "Something went wrong, please try again"
}
