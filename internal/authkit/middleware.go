package authkit

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ClaimsContextKey is where RequireAuth stores the parsed claims.
const ClaimsContextKey = "auth_claims"

// RequireAuth validates the bearer access token fully, including expiry,
// issuer, and audience, and injects claims into the request context.
func RequireAuth(configuration ServerConfig, clock Clock) gin.HandlerFunc {
	if clock == nil {
		clock = NewSystemClock()
	}
	return func(contextGin *gin.Context) {
		tokenString := bearerToken(contextGin.Request)
		if tokenString == "" {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(parsed *jwt.Token) (interface{}, error) {
			return configuration.JWTSigningKey, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(configuration.JWTIssuer),
			jwt.WithAudience(configuration.JWTAudience),
			jwt.WithTimeFunc(func() time.Time { return clock.Now() }),
		)
		if parseErr != nil || parsedToken == nil || !parsedToken.Valid {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, ok := parsedToken.Claims.(*AccessTokenClaims)
		if !ok || claims.UserID == "" {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.Set(ClaimsContextKey, claims)
		contextGin.Next()
	}
}

func bearerToken(request *http.Request) string {
	header := request.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
