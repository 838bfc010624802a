package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aturganbay/shoply/internal/authkit"
)

// HandleProfile resolves the authenticated user's profile payload. It expects
// authkit.RequireAuth to have injected claims upstream.
func HandleProfile(identity authkit.IdentityProvider, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if identity == nil {
		panic("identity provider is required")
	}
	return func(contextGin *gin.Context) {
		claimsValue, found := contextGin.Get(authkit.ClaimsContextKey)
		if !found {
			logger.Warn("missing auth claims on context",
				zap.String("code", "api.me.missing_claims"))
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, ok := claimsValue.(*authkit.AccessTokenClaims)
		if !ok || claims == nil || claims.UserID == "" {
			logger.Warn("invalid auth claims on context",
				zap.String("code", "api.me.invalid_claims"))
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		user, findErr := identity.FindByID(contextGin.Request.Context(), claims.UserID)
		if findErr != nil {
			logger.Warn("profile lookup failed",
				zap.String("code", "api.me.lookup_failed"),
				zap.Error(findErr))
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{
			"id":             user.ID,
			"email":          user.Email,
			"userName":       user.UserName,
			"emailConfirmed": user.EmailConfirmed,
			"roles":          claims.UserRoles,
		})
	}
}
