package authkit

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const refreshTokenCookieName = "refreshToken"

// MountAuthRoutes registers the authentication, registration, email
// confirmation, and password reset endpoints.
func MountAuthRoutes(router gin.IRouter, authenticator *Authenticator, registrar *Registrar, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	router.POST("/api/authentication/login", func(contextGin *gin.Context) {
		var inbound struct {
			UserName string `json:"userName"`
			Password string `json:"password"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil || strings.TrimSpace(inbound.UserName) == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		pair, loginErr := authenticator.Login(contextGin.Request.Context(), inbound.UserName, inbound.Password)
		if loginErr != nil {
			if errors.Is(loginErr, ErrInvalidCredentials) {
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
				return
			}
			logger.Error("login failed", zap.Error(loginErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{
			"token":        pair.AccessToken,
			"refreshToken": pair.RefreshToken,
			"expiresAt":    pair.AccessExpiresAt,
		})
	})

	router.POST("/api/authentication/refresh-token", func(contextGin *gin.Context) {
		var inbound struct {
			Token        string `json:"token"`
			RefreshToken string `json:"refreshToken"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		pair, refreshErr := authenticator.Refresh(contextGin.Request.Context(), inbound.Token, inbound.RefreshToken)
		if refreshErr != nil {
			if errors.Is(refreshErr, ErrInvalidToken) || errors.Is(refreshErr, ErrUserNotFound) || errors.Is(refreshErr, ErrInactiveRefreshToken) {
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			logger.Error("refresh failed", zap.Error(refreshErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{
			"newToken":        pair.AccessToken,
			"newRefreshToken": pair.RefreshToken,
			"expiresAt":       pair.AccessExpiresAt,
		})
	})

	router.POST("/api/authentication/revoke-token", func(contextGin *gin.Context) {
		var inbound struct {
			Token string `json:"token"`
		}
		// ShouldBindJSON, not BindJSON: a missing or non-JSON body must not
		// commit a 400 before the cookie fallback gets a chance.
		_ = contextGin.ShouldBindJSON(&inbound)
		tokenValue := strings.TrimSpace(inbound.Token)
		if tokenValue == "" {
			if cookie, cookieErr := contextGin.Request.Cookie(refreshTokenCookieName); cookieErr == nil && cookie != nil {
				tokenValue = strings.TrimSpace(cookie.Value)
			}
		}
		if tokenValue == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
			return
		}
		if revokeErr := authenticator.Revoke(contextGin.Request.Context(), tokenValue); revokeErr != nil {
			if errors.Is(revokeErr, ErrInactiveRefreshToken) {
				contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
				return
			}
			logger.Error("revoke failed", zap.Error(revokeErr))
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": revokeErr.Error()})
			return
		}
		contextGin.Status(http.StatusOK)
	})

	if authenticator.googleValidator != nil {
		router.POST("/api/authentication/google", func(contextGin *gin.Context) {
			var inbound struct {
				GoogleIDToken string `json:"googleIdToken"`
			}
			if bindErr := contextGin.BindJSON(&inbound); bindErr != nil || strings.TrimSpace(inbound.GoogleIDToken) == "" {
				contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
				return
			}
			pair, loginErr := authenticator.LoginWithGoogle(contextGin.Request.Context(), inbound.GoogleIDToken)
			if loginErr != nil {
				if errors.Is(loginErr, ErrInvalidGoogleToken) {
					contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid google token"})
					return
				}
				logger.Error("google login failed", zap.Error(loginErr))
				contextGin.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			contextGin.JSON(http.StatusOK, gin.H{
				"token":        pair.AccessToken,
				"refreshToken": pair.RefreshToken,
				"expiresAt":    pair.AccessExpiresAt,
			})
		})
	}

	router.POST("/api/registration/customer", registrationHandler(registrar.RegisterCustomer, logger))
	router.POST("/api/registration/employee", registrationHandler(registrar.RegisterEmployee, logger))

	router.POST("/api/emailconfirmation/confirm-email", func(contextGin *gin.Context) {
		var inbound struct {
			UserID string `json:"userId"`
			Token  string `json:"token"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		confirmErr := registrar.ConfirmEmail(contextGin.Request.Context(), inbound.UserID, inbound.Token)
		switch {
		case confirmErr == nil:
			contextGin.Status(http.StatusOK)
		case errors.Is(confirmErr, ErrUserNotFound):
			contextGin.AbortWithStatus(http.StatusNotFound)
		case errors.Is(confirmErr, ErrTokenDecode) || errors.Is(confirmErr, ErrPurposeTokenInvalid):
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
		default:
			logger.Error("email confirmation failed", zap.Error(confirmErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
		}
	})

	router.POST("/api/emailconfirmation/resend", func(contextGin *gin.Context) {
		var inbound struct {
			Email string `json:"email"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil || strings.TrimSpace(inbound.Email) == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		if resendErr := registrar.ResendConfirmation(contextGin.Request.Context(), inbound.Email); resendErr != nil {
			logger.Error("confirmation resend failed", zap.Error(resendErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.Status(http.StatusOK)
	})

	router.POST("/api/passwordreset/request", func(contextGin *gin.Context) {
		var inbound struct {
			Email string `json:"email"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil || strings.TrimSpace(inbound.Email) == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		if requestErr := registrar.RequestPasswordReset(contextGin.Request.Context(), inbound.Email); requestErr != nil {
			logger.Error("password reset request failed", zap.Error(requestErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.Status(http.StatusOK)
	})

	router.POST("/api/passwordreset/confirm", func(contextGin *gin.Context) {
		var inbound struct {
			UserID      string `json:"userId"`
			Token       string `json:"token"`
			NewPassword string `json:"newPassword"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		resetErr := registrar.ConfirmPasswordReset(contextGin.Request.Context(), inbound.UserID, inbound.Token, inbound.NewPassword)
		var validationErr *ValidationError
		switch {
		case resetErr == nil:
			contextGin.Status(http.StatusOK)
		case errors.As(resetErr, &validationErr):
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errors": validationFields(validationErr)})
		case errors.Is(resetErr, ErrUserNotFound):
			contextGin.AbortWithStatus(http.StatusNotFound)
		case errors.Is(resetErr, ErrTokenDecode) || errors.Is(resetErr, ErrPurposeTokenInvalid):
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
		default:
			logger.Error("password reset failed", zap.Error(resetErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
		}
	})
}

func registrationHandler(register func(ctx context.Context, input RegistrationInput) (User, error), logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		var inbound struct {
			Email    string `json:"email"`
			UserName string `json:"userName"`
			Password string `json:"password"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		user, registerErr := register(contextGin.Request.Context(), RegistrationInput{
			Email:    inbound.Email,
			UserName: inbound.UserName,
			Password: inbound.Password,
		})
		var validationErr *ValidationError
		switch {
		case registerErr == nil:
			contextGin.JSON(http.StatusOK, gin.H{
				"id":       user.ID,
				"email":    user.Email,
				"userName": user.UserName,
			})
		case errors.As(registerErr, &validationErr):
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errors": validationFields(validationErr)})
		case errors.Is(registerErr, ErrEmailExists):
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		default:
			logger.Error("registration failed", zap.Error(registerErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
		}
	}
}

func validationFields(validationErr *ValidationError) []gin.H {
	fields := make([]gin.H, 0, len(validationErr.Fields))
	for _, fieldErr := range validationErr.Fields {
		fields = append(fields, gin.H{"field": fieldErr.Field, "reason": fieldErr.Reason})
	}
	return fields
}
