// Package web carries the HTTP-edge helpers that sit outside the token core:
// CORS configuration and the authenticated profile endpoint.
package web

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	errEmptyAllowedOrigins = errors.New("cors.empty_allowed_origins")
	errWildcardOrigin      = errors.New("cors.wildcard_origin_forbidden")
	errInvalidOrigin       = errors.New("cors.invalid_origin")
)

// PermissiveCORS builds a credential-allowing CORS middleware for an explicit
// origin list. Wildcards are rejected because the API sets credentials.
func PermissiveCORS(allowedOrigins []string) (gin.HandlerFunc, error) {
	sanitized, sanitizeErr := sanitizeOrigins(allowedOrigins)
	if sanitizeErr != nil {
		return nil, sanitizeErr
	}
	configuration := cors.Config{
		AllowOrigins:     sanitized,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	return cors.New(configuration), nil
}

func sanitizeOrigins(allowed []string) ([]string, error) {
	if len(allowed) == 0 {
		return nil, errEmptyAllowedOrigins
	}
	cloned := make([]string, len(allowed))
	copy(cloned, allowed)
	sort.Strings(cloned)

	seen := make(map[string]struct{})
	sanitized := make([]string, 0, len(cloned))
	for _, origin := range cloned {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			return nil, errWildcardOrigin
		}
		parsed, parseErr := url.Parse(trimmed)
		if parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("%w: %s", errInvalidOrigin, trimmed)
		}
		if parsed.Path != "" && parsed.Path != "/" {
			return nil, fmt.Errorf("%w: %s contains path segment", errInvalidOrigin, trimmed)
		}
		normalized := parsed.Scheme + "://" + parsed.Host
		if _, duplicate := seen[normalized]; duplicate {
			continue
		}
		seen[normalized] = struct{}{}
		sanitized = append(sanitized, normalized)
	}
	if len(sanitized) == 0 {
		return nil, errEmptyAllowedOrigins
	}
	return sanitized, nil
}
