package authkit

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

const (
	// RoleCustomer is assigned to self-registered shoppers.
	RoleCustomer = "customer"
	// RoleEmployee is assigned to back-office accounts.
	RoleEmployee = "employee"

	minPasswordLength = 8
)

// RegistrationInput is the payload both registration operations validate.
type RegistrationInput struct {
	Email    string
	UserName string
	Password string
}

// Registrar coordinates account creation with confirmation-link issuance and
// delivery, plus the compensating confirmation and password-reset operations.
type Registrar struct {
	identity IdentityProvider
	issuer   *TokenIssuer
	mailer   Mailer
	baseURL  string
	logger   *zap.Logger
	metrics  MetricsRecorder
}

// NewRegistrar wires the registration orchestrator.
func NewRegistrar(identity IdentityProvider, issuer *TokenIssuer, mailer Mailer, baseURL string, logger *zap.Logger, metrics MetricsRecorder) *Registrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Registrar{
		identity: identity,
		issuer:   issuer,
		mailer:   mailer,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		metrics:  metrics,
	}
}

// RegisterCustomer creates a shopper account and sends a confirmation link.
func (registrar *Registrar) RegisterCustomer(ctx context.Context, input RegistrationInput) (User, error) {
	return registrar.register(ctx, input, RoleCustomer)
}

// RegisterEmployee creates a back-office account and sends a confirmation link.
func (registrar *Registrar) RegisterEmployee(ctx context.Context, input RegistrationInput) (User, error) {
	return registrar.register(ctx, input, RoleEmployee)
}

func (registrar *Registrar) register(ctx context.Context, input RegistrationInput, role string) (User, error) {
	if validationErr := validateRegistrationInput(input); validationErr != nil {
		registrar.metrics.Increment(MetricRegistrationFailure)
		return User{}, validationErr
	}
	_, findErr := registrar.identity.FindByEmail(ctx, input.Email)
	switch {
	case findErr == nil:
		registrar.metrics.Increment(MetricRegistrationFailure)
		return User{}, ErrEmailExists
	case !errors.Is(findErr, ErrUserNotFound):
		registrar.metrics.Increment(MetricRegistrationFailure)
		return User{}, fmt.Errorf("registration.lookup: %w", findErr)
	}
	user, createErr := registrar.identity.CreateUser(ctx, NewUser{
		Email:    input.Email,
		UserName: input.UserName,
		Password: input.Password,
		Roles:    []string{role},
	})
	if createErr != nil {
		registrar.metrics.Increment(MetricRegistrationFailure)
		return User{}, fmt.Errorf("registration.create: %w", createErr)
	}

	// The account is durably created at this point. Confirmation delivery is
	// best-effort: a failed send is logged and compensated by the resend
	// operation, never rolled back.
	registrar.sendConfirmationLink(ctx, user)

	registrar.metrics.Increment(MetricRegistrationSuccess)
	registrar.logger.Info("account registered",
		zap.String("user_id", user.ID),
		zap.String("role", role))
	return user, nil
}

// ConfirmEmail decodes the transport-encoded token and marks the address
// confirmed when the identity provider accepts it.
func (registrar *Registrar) ConfirmEmail(ctx context.Context, userID string, encodedToken string) error {
	token, decodeErr := DecodeToken(encodedToken)
	if decodeErr != nil {
		return decodeErr
	}
	user, findErr := registrar.identity.FindByID(ctx, userID)
	if findErr != nil {
		return findErr
	}
	if confirmErr := registrar.identity.ConfirmPurposeToken(ctx, PurposeEmailConfirmation, user, token); confirmErr != nil {
		return confirmErr
	}
	return registrar.identity.MarkEmailConfirmed(ctx, user)
}

// ResendConfirmation issues a fresh confirmation link. Unknown and already
// confirmed addresses are silently accepted to avoid account enumeration.
func (registrar *Registrar) ResendConfirmation(ctx context.Context, email string) error {
	user, findErr := registrar.identity.FindByEmail(ctx, email)
	if findErr != nil {
		if errors.Is(findErr, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("registration.resend.lookup: %w", findErr)
	}
	if user.EmailConfirmed {
		return nil
	}
	registrar.sendConfirmationLink(ctx, user)
	return nil
}

// RequestPasswordReset issues a reset link. Unknown addresses are silently
// accepted to avoid account enumeration.
func (registrar *Registrar) RequestPasswordReset(ctx context.Context, email string) error {
	user, findErr := registrar.identity.FindByEmail(ctx, email)
	if findErr != nil {
		if errors.Is(findErr, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("registration.reset_request.lookup: %w", findErr)
	}
	token, tokenErr := registrar.issuer.GeneratePasswordResetToken(ctx, user)
	if tokenErr != nil {
		return fmt.Errorf("registration.reset_request.token: %w", tokenErr)
	}
	resetLink := registrar.buildLink("/api/passwordreset/confirm", user.ID, token)
	registrar.deliver(ctx, user.Email, "Reset your password",
		"Reset your password by following this link: "+resetLink)
	return nil
}

// ConfirmPasswordReset validates the reset token and stores a new password.
func (registrar *Registrar) ConfirmPasswordReset(ctx context.Context, userID string, encodedToken string, newPassword string) error {
	if reasons := passwordPolicyFailures(newPassword); len(reasons) > 0 {
		fields := make([]FieldError, 0, len(reasons))
		for _, reason := range reasons {
			fields = append(fields, FieldError{Field: "password", Reason: reason})
		}
		return &ValidationError{Fields: fields}
	}
	token, decodeErr := DecodeToken(encodedToken)
	if decodeErr != nil {
		return decodeErr
	}
	user, findErr := registrar.identity.FindByID(ctx, userID)
	if findErr != nil {
		return findErr
	}
	if confirmErr := registrar.identity.ConfirmPurposeToken(ctx, PurposePasswordReset, user, token); confirmErr != nil {
		return confirmErr
	}
	return registrar.identity.SetPassword(ctx, user, newPassword)
}

func (registrar *Registrar) sendConfirmationLink(ctx context.Context, user User) {
	token, tokenErr := registrar.issuer.GenerateEmailConfirmationToken(ctx, user)
	if tokenErr != nil {
		registrar.metrics.Increment(MetricMailSendFailure)
		registrar.logger.Error("failed to mint confirmation token",
			zap.String("user_id", user.ID),
			zap.Error(tokenErr))
		return
	}
	confirmationLink := registrar.buildLink("/api/emailconfirmation/confirm-email", user.ID, token)
	registrar.deliver(ctx, user.Email, "Confirm your email",
		"Confirm your email address by following this link: "+confirmationLink)
}

func (registrar *Registrar) deliver(ctx context.Context, to string, subject string, body string) {
	if sendErr := registrar.mailer.Send(ctx, to, subject, body); sendErr != nil {
		registrar.metrics.Increment(MetricMailSendFailure)
		registrar.logger.Error("mail delivery failed",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(sendErr))
	}
}

func (registrar *Registrar) buildLink(path string, userID string, token string) string {
	query := url.Values{}
	query.Set("userId", userID)
	query.Set("token", EncodeToken(token))
	return registrar.baseURL + path + "?" + query.Encode()
}

func validateRegistrationInput(input RegistrationInput) error {
	var fields []FieldError
	if strings.TrimSpace(input.Email) == "" {
		fields = append(fields, FieldError{Field: "email", Reason: "required"})
	} else if _, parseErr := mail.ParseAddress(input.Email); parseErr != nil {
		fields = append(fields, FieldError{Field: "email", Reason: "malformed"})
	}
	if strings.TrimSpace(input.UserName) == "" {
		fields = append(fields, FieldError{Field: "userName", Reason: "required"})
	}
	for _, reason := range passwordPolicyFailures(input.Password) {
		fields = append(fields, FieldError{Field: "password", Reason: reason})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func passwordPolicyFailures(password string) []string {
	var reasons []string
	if len([]rune(password)) < minPasswordLength {
		reasons = append(reasons, "too_short")
	}
	var hasLetter, hasDigit bool
	for _, character := range password {
		switch {
		case unicode.IsLetter(character):
			hasLetter = true
		case unicode.IsDigit(character):
			hasDigit = true
		}
	}
	if !hasLetter {
		reasons = append(reasons, "missing_letter")
	}
	if !hasDigit {
		reasons = append(reasons, "missing_digit")
	}
	return reasons
}
