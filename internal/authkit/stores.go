package authkit

import (
	"context"
	"time"
)

// User is the identity-provider-owned record the token subsystem reads.
// It never owns user lifecycle; it only consumes id, email, and user name.
type User struct {
	ID             string
	Email          string
	UserName       string
	EmailConfirmed bool
}

// NewUser carries the attributes needed to create an account.
type NewUser struct {
	Email    string
	UserName string
	Password string
	Roles    []string
}

// TokenPurpose scopes a single-use token to one specific operation.
type TokenPurpose string

const (
	// PurposeEmailConfirmation scopes tokens to confirming an email address.
	PurposeEmailConfirmation TokenPurpose = "email_confirmation"
	// PurposePasswordReset scopes tokens to resetting a password.
	PurposePasswordReset TokenPurpose = "password_reset"
)

// IdentityProvider is the injected identity backend capability set.
type IdentityProvider interface {
	FindByID(ctx context.Context, userID string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, newUser NewUser) (User, error)
	CheckPassword(ctx context.Context, user User, password string) (bool, error)
	GetRoles(ctx context.Context, user User) ([]string, error)
	SetPassword(ctx context.Context, user User, newPassword string) error
	MarkEmailConfirmed(ctx context.Context, user User) error
	GeneratePurposeToken(ctx context.Context, purpose TokenPurpose, user User) (string, error)
	ConfirmPurposeToken(ctx context.Context, purpose TokenPurpose, user User, token string) error
}

// RefreshToken is a persisted long-lived credential owned by one user.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
}

// Active reports whether the token can still be exchanged at the given time.
func (token RefreshToken) Active(now time.Time) bool {
	return !token.Revoked && now.Before(token.ExpiresAt)
}

// RefreshTokenStore persists refresh tokens. Consume must flip the revoked
// flag with a single conditional write so that concurrent consumers of the
// same value observe exactly one success.
type RefreshTokenStore interface {
	Create(ctx context.Context, token RefreshToken) error
	FindByValue(ctx context.Context, value string) (RefreshToken, error)
	Consume(ctx context.Context, value string) (bool, error)
}

// Mailer delivers a single message. Implementations live outside the core.
type Mailer interface {
	Send(ctx context.Context, to string, subject string, body string) error
}
