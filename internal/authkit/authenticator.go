package authkit

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
)

// TokenPair is the outcome of a successful login or refresh.
type TokenPair struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// GoogleTokenValidator verifies Google ID tokens against an audience.
type GoogleTokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

type googleTokenValidator struct {
	validator *idtoken.Validator
}

func (wrapper googleTokenValidator) Validate(ctx context.Context, googleIDToken string, audience string) (*idtoken.Payload, error) {
	return wrapper.validator.Validate(ctx, googleIDToken, audience)
}

// NewGoogleTokenValidator builds a validator backed by Google's certificates.
func NewGoogleTokenValidator(ctx context.Context) (GoogleTokenValidator, error) {
	validator, validatorErr := idtoken.NewValidator(ctx)
	if validatorErr != nil {
		return nil, validatorErr
	}
	return googleTokenValidator{validator: validator}, nil
}

// Authenticator coordinates login, refresh, and revoke as atomic business
// operations with defined failure outcomes.
type Authenticator struct {
	issuer          *TokenIssuer
	identity        IdentityProvider
	refreshTokens   RefreshTokenStore
	googleValidator GoogleTokenValidator
	logger          *zap.Logger
	metrics         MetricsRecorder
}

// NewAuthenticator wires the authentication orchestrator.
func NewAuthenticator(issuer *TokenIssuer, identity IdentityProvider, refreshTokens RefreshTokenStore, logger *zap.Logger, metrics MetricsRecorder) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Authenticator{
		issuer:        issuer,
		identity:      identity,
		refreshTokens: refreshTokens,
		logger:        logger,
		metrics:       metrics,
	}
}

// WithGoogleValidator enables the Google Sign-In login path.
func (authenticator *Authenticator) WithGoogleValidator(validator GoogleTokenValidator) *Authenticator {
	authenticator.googleValidator = validator
	return authenticator
}

// Login verifies credentials and mints an access/refresh pair. An unknown
// email and a wrong password both surface as ErrInvalidCredentials so the
// caller cannot enumerate accounts.
func (authenticator *Authenticator) Login(ctx context.Context, email string, password string) (TokenPair, error) {
	user, findErr := authenticator.identity.FindByEmail(ctx, email)
	if findErr != nil {
		authenticator.metrics.Increment(MetricLoginFailure)
		if errors.Is(findErr, ErrUserNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("auth.login.lookup: %w", findErr)
	}
	passwordOK, checkErr := authenticator.identity.CheckPassword(ctx, user, password)
	if checkErr != nil {
		authenticator.metrics.Increment(MetricLoginFailure)
		return TokenPair{}, fmt.Errorf("auth.login.check_password: %w", checkErr)
	}
	if !passwordOK {
		authenticator.metrics.Increment(MetricLoginFailure)
		return TokenPair{}, ErrInvalidCredentials
	}
	pair, mintErr := authenticator.mintPair(ctx, user)
	if mintErr != nil {
		authenticator.metrics.Increment(MetricLoginFailure)
		return TokenPair{}, mintErr
	}
	authenticator.metrics.Increment(MetricLoginSuccess)
	authenticator.logger.Info("login succeeded", zap.String("user_id", user.ID))
	return pair, nil
}

// Refresh exchanges an expired access token plus an active refresh token for
// a fresh pair, rotating the refresh token. Under concurrent refresh attempts
// with the same value, the conditional consume lets at most one succeed.
func (authenticator *Authenticator) Refresh(ctx context.Context, expiredAccessToken string, refreshValue string) (TokenPair, error) {
	claims, parseErr := authenticator.issuer.ValidateExpiredAccessToken(expiredAccessToken)
	if parseErr != nil {
		authenticator.metrics.Increment(MetricRefreshFailure)
		return TokenPair{}, fmt.Errorf("auth.refresh: %w", parseErr)
	}
	user, findErr := authenticator.identity.FindByID(ctx, claims.UserID)
	if findErr != nil {
		authenticator.metrics.Increment(MetricRefreshFailure)
		if errors.Is(findErr, ErrUserNotFound) {
			return TokenPair{}, ErrUserNotFound
		}
		return TokenPair{}, fmt.Errorf("auth.refresh.lookup: %w", findErr)
	}
	oldToken, tokenErr := authenticator.refreshTokens.FindByValue(ctx, refreshValue)
	if tokenErr != nil {
		authenticator.metrics.Increment(MetricRefreshFailure)
		if errors.Is(tokenErr, ErrRefreshTokenNotFound) {
			return TokenPair{}, ErrInactiveRefreshToken
		}
		return TokenPair{}, fmt.Errorf("auth.refresh.find_token: %w", tokenErr)
	}
	if oldToken.UserID != user.ID || !authenticator.issuer.IsActive(oldToken) {
		authenticator.metrics.Increment(MetricRefreshFailure)
		return TokenPair{}, ErrInactiveRefreshToken
	}

	// Mint the replacement pair before touching the old token so a minting
	// failure never destroys a still-usable refresh token.
	pair, mintErr := authenticator.mintPair(ctx, user)
	if mintErr != nil {
		authenticator.metrics.Increment(MetricRefreshFailure)
		return TokenPair{}, mintErr
	}
	flipped, consumeErr := authenticator.refreshTokens.Consume(ctx, refreshValue)
	if consumeErr != nil {
		authenticator.metrics.Increment(MetricRefreshFailure)
		return TokenPair{}, fmt.Errorf("auth.refresh.consume: %w", consumeErr)
	}
	if !flipped {
		// A concurrent refresh won the race. Retire the pair minted above so
		// the losing request leaves no usable token behind.
		if _, retireErr := authenticator.refreshTokens.Consume(ctx, pair.RefreshToken); retireErr != nil {
			authenticator.logger.Warn("failed to retire refresh token after lost rotation race",
				zap.Error(retireErr))
		}
		authenticator.metrics.Increment(MetricRefreshFailure)
		return TokenPair{}, ErrInactiveRefreshToken
	}
	authenticator.metrics.Increment(MetricRefreshSuccess)
	authenticator.logger.Info("refresh token rotated", zap.String("user_id", user.ID))
	return pair, nil
}

// Revoke invalidates a refresh token by value. Absent and inactive tokens
// fail with ErrInactiveRefreshToken; persistence failures are wrapped.
func (authenticator *Authenticator) Revoke(ctx context.Context, refreshValue string) error {
	record, findErr := authenticator.refreshTokens.FindByValue(ctx, refreshValue)
	if findErr != nil {
		authenticator.metrics.Increment(MetricRevokeFailure)
		if errors.Is(findErr, ErrRefreshTokenNotFound) {
			return ErrInactiveRefreshToken
		}
		return fmt.Errorf("auth.revoke.find: %w", findErr)
	}
	if !authenticator.issuer.IsActive(record) {
		authenticator.metrics.Increment(MetricRevokeFailure)
		return ErrInactiveRefreshToken
	}
	flipped, consumeErr := authenticator.refreshTokens.Consume(ctx, refreshValue)
	if consumeErr != nil {
		authenticator.metrics.Increment(MetricRevokeFailure)
		return fmt.Errorf("auth.revoke.consume: %w", consumeErr)
	}
	if !flipped {
		authenticator.metrics.Increment(MetricRevokeFailure)
		return ErrInactiveRefreshToken
	}
	authenticator.metrics.Increment(MetricRevokeSuccess)
	authenticator.logger.Info("refresh token revoked", zap.String("user_id", record.UserID))
	return nil
}

// LoginWithGoogle verifies a Google ID token, upserts the account, and mints
// the same access/refresh pair as a password login.
func (authenticator *Authenticator) LoginWithGoogle(ctx context.Context, googleIDToken string) (TokenPair, error) {
	if authenticator.googleValidator == nil {
		return TokenPair{}, fmt.Errorf("auth.google.not_configured: %w", ErrInvalidGoogleToken)
	}
	payload, validateErr := authenticator.googleValidator.Validate(ctx, googleIDToken, authenticator.issuer.Config().GoogleWebClientID)
	if validateErr != nil {
		authenticator.metrics.Increment(MetricLoginFailure)
		return TokenPair{}, fmt.Errorf("auth.google.validate: %w", ErrInvalidGoogleToken)
	}
	issuerValue, okIssuer := payload.Claims["iss"].(string)
	if !okIssuer || (issuerValue != "https://accounts.google.com" && issuerValue != "accounts.google.com") {
		authenticator.metrics.Increment(MetricLoginFailure)
		return TokenPair{}, fmt.Errorf("auth.google.issuer: %w", ErrInvalidGoogleToken)
	}
	googleSub, _ := payload.Claims["sub"].(string)
	userEmail, _ := payload.Claims["email"].(string)
	emailVerified, _ := payload.Claims["email_verified"].(bool)
	userDisplayName, _ := payload.Claims["name"].(string)
	if googleSub == "" || userEmail == "" || !emailVerified {
		authenticator.metrics.Increment(MetricLoginFailure)
		return TokenPair{}, fmt.Errorf("auth.google.unverified_identity: %w", ErrInvalidGoogleToken)
	}

	user, findErr := authenticator.identity.FindByEmail(ctx, userEmail)
	if errors.Is(findErr, ErrUserNotFound) {
		user, findErr = authenticator.createGoogleUser(ctx, userEmail, userDisplayName)
	}
	if findErr != nil {
		authenticator.metrics.Increment(MetricLoginFailure)
		return TokenPair{}, fmt.Errorf("auth.google.upsert: %w", findErr)
	}
	pair, mintErr := authenticator.mintPair(ctx, user)
	if mintErr != nil {
		authenticator.metrics.Increment(MetricLoginFailure)
		return TokenPair{}, mintErr
	}
	authenticator.metrics.Increment(MetricLoginSuccess)
	authenticator.logger.Info("google login succeeded", zap.String("user_id", user.ID))
	return pair, nil
}

func (authenticator *Authenticator) createGoogleUser(ctx context.Context, userEmail string, userDisplayName string) (User, error) {
	userName := strings.TrimSpace(userDisplayName)
	if userName == "" {
		userName = userEmail
	}
	randomPassword, randomErr := randomGeneratedPassword()
	if randomErr != nil {
		return User{}, randomErr
	}
	user, createErr := authenticator.identity.CreateUser(ctx, NewUser{
		Email:    userEmail,
		UserName: userName,
		Password: randomPassword,
		Roles:    []string{"customer"},
	})
	if createErr != nil {
		return User{}, createErr
	}
	// Google has already verified the address.
	if confirmErr := authenticator.identity.MarkEmailConfirmed(ctx, user); confirmErr != nil {
		return User{}, confirmErr
	}
	user.EmailConfirmed = true
	return user, nil
}

func (authenticator *Authenticator) mintPair(ctx context.Context, user User) (TokenPair, error) {
	accessToken, accessExpiresAt, accessErr := authenticator.issuer.GenerateAccessToken(ctx, user)
	if accessErr != nil {
		return TokenPair{}, fmt.Errorf("auth.mint.access: %w", accessErr)
	}
	refreshToken, refreshErr := authenticator.issuer.GenerateRefreshToken(ctx, user)
	if refreshErr != nil {
		return TokenPair{}, fmt.Errorf("auth.mint.refresh: %w", refreshErr)
	}
	return TokenPair{
		AccessToken:     accessToken,
		AccessExpiresAt: accessExpiresAt,
		RefreshToken:    refreshToken,
	}, nil
}

func randomGeneratedPassword() (string, error) {
	buffer := make([]byte, 32)
	if _, randomErr := rand.Read(buffer); randomErr != nil {
		return "", fmt.Errorf("auth.google.random_password: %w", randomErr)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
