package authkit

import (
	"fmt"
	"strings"
	"time"
)

const (
	configCodeMissingSigningKey = "config.missing_jwt_signing_key"
	configCodeMissingIssuer     = "config.missing_jwt_issuer"
	configCodeMissingAudience   = "config.missing_jwt_audience"
	configCodeInvalidAccessTTL  = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL = "config.invalid_refresh_ttl"
)

// ServerConfig configures token signing, validity windows, and link building.
type ServerConfig struct {
	JWTSigningKey     []byte
	JWTIssuer         string
	JWTAudience       string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	BaseURL           string
	GoogleWebClientID string
}

// Validate fails fast on configuration the token subsystem cannot run without.
func (configuration ServerConfig) Validate() error {
	if len(configuration.JWTSigningKey) == 0 {
		return fmt.Errorf("%s: jwt_signing_key must be provided", configCodeMissingSigningKey)
	}
	if strings.TrimSpace(configuration.JWTIssuer) == "" {
		return fmt.Errorf("%s: jwt_issuer must be provided", configCodeMissingIssuer)
	}
	if strings.TrimSpace(configuration.JWTAudience) == "" {
		return fmt.Errorf("%s: jwt_audience must be provided", configCodeMissingAudience)
	}
	if configuration.AccessTokenTTL <= 0 {
		return fmt.Errorf("%s: access_ttl must be greater than zero", configCodeInvalidAccessTTL)
	}
	if configuration.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%s: refresh_ttl must be greater than zero", configCodeInvalidRefreshTTL)
	}
	return nil
}
