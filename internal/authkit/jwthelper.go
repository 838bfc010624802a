package authkit

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenClaims are embedded in every signed access token.
type AccessTokenClaims struct {
	UserID    string   `json:"uid"`
	UserEmail string   `json:"email"`
	UserRoles []string `json:"roles"`
	jwt.RegisteredClaims
}

// MintAccessToken creates a signed HS256 access token. The subject is the
// user name and the unique jti is a fresh random UUID; both subject and
// email are mandatory claims.
func MintAccessToken(clock Clock, user User, userRoles []string, configuration ServerConfig) (string, time.Time, error) {
	if strings.TrimSpace(user.UserName) == "" {
		return "", time.Time{}, fmt.Errorf("jwt.mint.failure: %w: user name must be non-empty", ErrInvalidUser)
	}
	if strings.TrimSpace(user.Email) == "" {
		return "", time.Time{}, fmt.Errorf("jwt.mint.failure: %w: email must be non-empty", ErrInvalidUser)
	}
	issuedAt := clock.Now().UTC()
	expiresAt := issuedAt.Add(configuration.AccessTokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		UserID:    user.ID,
		UserEmail: user.Email,
		UserRoles: userRoles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    configuration.JWTIssuer,
			Audience:  jwt.ClaimStrings{configuration.JWTAudience},
			Subject:   user.UserName,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, signErr := token.SignedString(configuration.JWTSigningKey)
	if signErr != nil {
		return "", time.Time{}, fmt.Errorf("jwt.mint.failure: %w", signErr)
	}
	return signed, expiresAt, nil
}

// ParseExpiredAccessToken verifies only the signature and the signing
// algorithm of an access token. Expiry, issuer, and audience are
// deliberately skipped: the sole purpose of this parse is to identify the
// subject of a refresh request, whose access token has usually expired.
// Tokens signed with any algorithm other than HS256 are rejected.
func ParseExpiredAccessToken(tokenString string, signingKey []byte) (*AccessTokenClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("jwt.parse_expired: %w: empty token", ErrInvalidToken)
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(parsed *jwt.Token) (interface{}, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if parseErr != nil {
		return nil, fmt.Errorf("jwt.parse_expired: %w: %v", ErrInvalidToken, parseErr)
	}
	claims, ok := parsedToken.Claims.(*AccessTokenClaims)
	if !ok || claims == nil {
		return nil, fmt.Errorf("jwt.parse_expired: %w: unexpected claims shape", ErrInvalidToken)
	}
	return claims, nil
}
