package authkit

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials covers both unknown identifier and wrong password.
	// The two causes are deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("auth.invalid_credentials")
	// ErrInvalidToken indicates a malformed, unsigned, or wrong-algorithm access token.
	ErrInvalidToken = errors.New("auth.invalid_token")
	// ErrUserNotFound indicates the subject of an operation does not exist.
	ErrUserNotFound = errors.New("auth.user_not_found")
	// ErrInactiveRefreshToken covers absent, expired, and revoked refresh tokens.
	ErrInactiveRefreshToken = errors.New("auth.inactive_refresh_token")
	// ErrInvalidGoogleToken indicates the Google ID token failed verification.
	ErrInvalidGoogleToken = errors.New("auth.invalid_google_token")
	// ErrEmailExists indicates the registration email is already taken.
	ErrEmailExists = errors.New("registration.email_exists")
	// ErrInvalidUser indicates a user record is missing mandatory claim fields.
	ErrInvalidUser = errors.New("token_issuer.invalid_user")
	// ErrTokenDecode indicates the transport-encoded token could not be decoded.
	ErrTokenDecode = errors.New("token_codec.decode_failure")
	// ErrRefreshTokenNotFound indicates no refresh token matched the provided value.
	ErrRefreshTokenNotFound = errors.New("refresh_store.not_found")
	// ErrPurposeTokenInvalid covers absent, expired, consumed, and mismatched purpose tokens.
	ErrPurposeTokenInvalid = errors.New("identity.invalid_purpose_token")
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError aggregates field-level input failures.
type ValidationError struct {
	Fields []FieldError
}

// Error renders the aggregated field failures as a single message.
func (validationErr *ValidationError) Error() string {
	if validationErr == nil || len(validationErr.Fields) == 0 {
		return "registration.validation_failure"
	}
	rendered := make([]string, 0, len(validationErr.Fields))
	for _, fieldErr := range validationErr.Fields {
		rendered = append(rendered, fieldErr.Field+": "+fieldErr.Reason)
	}
	return "registration.validation_failure: " + strings.Join(rendered, "; ")
}
