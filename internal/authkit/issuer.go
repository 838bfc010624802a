package authkit

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"
)

const refreshTokenByteLength = 64

// refreshTokenRandomSource is swappable in tests.
var refreshTokenRandomSource io.Reader = rand.Reader

// TokenIssuer mints and validates every token type. It owns the signing key
// and issuer/audience configuration and refuses to construct without them.
type TokenIssuer struct {
	configuration ServerConfig
	identity      IdentityProvider
	refreshTokens RefreshTokenStore
	clock         Clock
}

// NewTokenIssuer constructs a TokenIssuer, validating configuration up front.
func NewTokenIssuer(configuration ServerConfig, identity IdentityProvider, refreshTokens RefreshTokenStore, clock Clock) (*TokenIssuer, error) {
	if validateErr := configuration.Validate(); validateErr != nil {
		return nil, validateErr
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	return &TokenIssuer{
		configuration: configuration,
		identity:      identity,
		refreshTokens: refreshTokens,
		clock:         clock,
	}, nil
}

// GenerateAccessToken fetches the user's roles and mints a signed access token.
func (issuer *TokenIssuer) GenerateAccessToken(ctx context.Context, user User) (string, time.Time, error) {
	userRoles, rolesErr := issuer.identity.GetRoles(ctx, user)
	if rolesErr != nil {
		return "", time.Time{}, fmt.Errorf("token_issuer.access.roles: %w", rolesErr)
	}
	return MintAccessToken(issuer.clock, user, userRoles, issuer.configuration)
}

// GenerateRefreshToken creates a fresh opaque refresh token and persists it.
// The returned value is the only copy handed to the caller.
func (issuer *TokenIssuer) GenerateRefreshToken(ctx context.Context, user User) (string, error) {
	randomBytes := make([]byte, refreshTokenByteLength)
	if _, randomErr := io.ReadFull(refreshTokenRandomSource, randomBytes); randomErr != nil {
		return "", fmt.Errorf("token_issuer.refresh.random: %w", randomErr)
	}
	tokenValue := base64.RawURLEncoding.EncodeToString(randomBytes)
	record := RefreshToken{
		Token:     tokenValue,
		UserID:    user.ID,
		ExpiresAt: issuer.clock.Now().UTC().Add(issuer.configuration.RefreshTokenTTL),
		Revoked:   false,
	}
	if createErr := issuer.refreshTokens.Create(ctx, record); createErr != nil {
		return "", fmt.Errorf("token_issuer.refresh.persist: %w", createErr)
	}
	return tokenValue, nil
}

// GenerateEmailConfirmationToken delegates to the identity provider's
// purpose-scoped token contract.
func (issuer *TokenIssuer) GenerateEmailConfirmationToken(ctx context.Context, user User) (string, error) {
	return issuer.identity.GeneratePurposeToken(ctx, PurposeEmailConfirmation, user)
}

// GeneratePasswordResetToken delegates to the identity provider's
// purpose-scoped token contract.
func (issuer *TokenIssuer) GeneratePasswordResetToken(ctx context.Context, user User) (string, error) {
	return issuer.identity.GeneratePurposeToken(ctx, PurposePasswordReset, user)
}

// ValidateExpiredAccessToken checks signature and algorithm only; see
// ParseExpiredAccessToken for the exact validation contract.
func (issuer *TokenIssuer) ValidateExpiredAccessToken(tokenString string) (*AccessTokenClaims, error) {
	return ParseExpiredAccessToken(tokenString, issuer.configuration.JWTSigningKey)
}

// GetActiveRefreshToken looks a refresh token up by exact value.
// Absence is reported as ErrRefreshTokenNotFound.
func (issuer *TokenIssuer) GetActiveRefreshToken(ctx context.Context, value string) (RefreshToken, error) {
	return issuer.refreshTokens.FindByValue(ctx, value)
}

// RevokeRefreshToken revokes by value. Revoking a nonexistent or
// already-revoked token is a no-op, not an error.
func (issuer *TokenIssuer) RevokeRefreshToken(ctx context.Context, value string) error {
	_, consumeErr := issuer.refreshTokens.Consume(ctx, value)
	return consumeErr
}

// IsActive reports whether the refresh token is neither revoked nor expired.
func (issuer *TokenIssuer) IsActive(token RefreshToken) bool {
	return token.Active(issuer.clock.Now().UTC())
}

// Clock exposes the issuer's time source to collaborating orchestrators.
func (issuer *TokenIssuer) Clock() Clock {
	return issuer.clock
}

// Config exposes the issuer's read-only configuration.
func (issuer *TokenIssuer) Config() ServerConfig {
	return issuer.configuration
}
