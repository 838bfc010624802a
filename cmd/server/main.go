package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aturganbay/shoply/internal/authkit"
	"github.com/aturganbay/shoply/internal/authkitpg"
	"github.com/aturganbay/shoply/internal/identity"
	"github.com/aturganbay/shoply/internal/mail"
	"github.com/aturganbay/shoply/internal/web"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

var buildPostgresRefreshStore = func(ctx context.Context, databaseURL string) (authkit.RefreshTokenStore, error) {
	pool, poolErr := authkitpg.BuildPool(ctx, databaseURL)
	if poolErr != nil {
		return nil, poolErr
	}
	if schemaErr := authkitpg.EnsureSchema(ctx, pool); schemaErr != nil {
		return nil, schemaErr
	}
	return authkitpg.NewPostgresRefreshTokenStore(pool), nil
}

// newRefreshTokenStore selects the refresh-token backend: pgx directly on
// PostgreSQL, the GORM store otherwise.
func newRefreshTokenStore(ctx context.Context, gormDB *gorm.DB, driverLabel string, databaseURL string) (authkit.RefreshTokenStore, error) {
	if driverLabel == "postgres" {
		return buildPostgresRefreshStore(ctx, databaseURL)
	}
	return authkit.NewDatabaseRefreshTokenStore(ctx, gormDB, driverLabel)
}

var buildGoogleTokenValidator = func(ctx context.Context) (authkit.GoogleTokenValidator, error) {
	return authkit.NewGoogleTokenValidator(ctx)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "shoply-server",
		Short:   "Shop backend with credential login, JWT access tokens, and rotating refresh tokens",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for access tokens")
	rootCmd.Flags().String("jwt_issuer", "", "Issuer claim stamped into access tokens")
	rootCmd.Flags().String("jwt_audience", "", "Audience claim stamped into access tokens")
	rootCmd.Flags().Duration("access_ttl", time.Hour, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", 7*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().String("database_url", "sqlite://shoply.db", "Database URL (postgres:// or sqlite://)")
	rootCmd.Flags().String("base_url", "http://localhost:8080", "Base URL used when building confirmation and reset links")
	rootCmd.Flags().String("google_web_client_id", "", "Google Web OAuth Client ID; empty disables Google Sign-In")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled")
	rootCmd.Flags().String("smtp_host", "", "SMTP relay host; empty selects the logging mail sender")
	rootCmd.Flags().Int("smtp_port", 587, "SMTP relay port")
	rootCmd.Flags().String("smtp_from", "", "From address for transactional mail")
	rootCmd.Flags().String("smtp_username", "", "SMTP relay user")
	rootCmd.Flags().String("smtp_password", "", "SMTP relay password")

	for _, flagName := range []string{
		"listen_addr", "jwt_signing_key", "jwt_issuer", "jwt_audience",
		"access_ttl", "refresh_ttl", "database_url", "base_url",
		"google_web_client_id", "enable_cors", "cors_allowed_origins",
		"smtp_host", "smtp_port", "smtp_from", "smtp_username", "smtp_password",
	} {
		_ = viper.BindPFlag(flagName, rootCmd.Flags().Lookup(flagName))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const configCodeUninitializedServerConf = "config.uninitialized_server_config"

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

// LoadServerConfig reads and validates the token configuration. Missing
// signing key, issuer, or audience fail here, before the server starts.
func LoadServerConfig() (authkit.ServerConfig, error) {
	serverConfig := authkit.ServerConfig{
		JWTSigningKey:     []byte(viper.GetString("jwt_signing_key")),
		JWTIssuer:         viper.GetString("jwt_issuer"),
		JWTAudience:       viper.GetString("jwt_audience"),
		AccessTokenTTL:    viper.GetDuration("access_ttl"),
		RefreshTokenTTL:   viper.GetDuration("refresh_ttl"),
		BaseURL:           viper.GetString("base_url"),
		GoogleWebClientID: viper.GetString("google_web_client_id"),
	}
	if validateErr := serverConfig.Validate(); validateErr != nil {
		return authkit.ServerConfig{}, validateErr
	}
	return serverConfig, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(authkit.ServerConfig)
	if !ok {
		return fmt.Errorf("%s: server configuration not prepared; PreRunE must execute before RunE", configCodeUninitializedServerConf)
	}

	listenAddr := viper.GetString("listen_addr")
	databaseURL := viper.GetString("database_url")
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	gormDB, driverLabel, openErr := authkit.OpenDatabase(databaseURL)
	if openErr != nil {
		return openErr
	}
	logger.Info("database opened", zap.String("driver", driverLabel))

	bootCtx := context.Background()
	refreshStore, storeErr := newRefreshTokenStore(bootCtx, gormDB, driverLabel, databaseURL)
	if storeErr != nil {
		return storeErr
	}
	identityProvider, identityErr := identity.NewGormProvider(bootCtx, gormDB, identity.Options{})
	if identityErr != nil {
		return identityErr
	}

	clock := authkit.NewSystemClock()
	issuer, issuerErr := authkit.NewTokenIssuer(serverConfig, identityProvider, refreshStore, clock)
	if issuerErr != nil {
		return issuerErr
	}

	var mailer authkit.Mailer
	if smtpHost := viper.GetString("smtp_host"); smtpHost != "" {
		mailer = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     smtpHost,
			Port:     viper.GetInt("smtp_port"),
			From:     viper.GetString("smtp_from"),
			Username: viper.GetString("smtp_username"),
			Password: viper.GetString("smtp_password"),
		})
		logger.Info("using SMTP mail sender", zap.String("host", smtpHost))
	} else {
		mailer = mail.NewLogSender(logger)
		logger.Info("using logging mail sender")
	}

	metricsRecorder := authkit.NewCounterMetrics()
	authenticator := authkit.NewAuthenticator(issuer, identityProvider, refreshStore, logger, metricsRecorder)
	if serverConfig.GoogleWebClientID != "" {
		validator, validatorErr := buildGoogleTokenValidator(command.Context())
		if validatorErr != nil {
			return fmt.Errorf("config.google_validator_init: %w", validatorErr)
		}
		authenticator.WithGoogleValidator(validator)
	}
	registrar := authkit.NewRegistrar(identityProvider, issuer, mailer, serverConfig.BaseURL, logger, metricsRecorder)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := web.PermissiveCORS(corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	authkit.MountAuthRoutes(router, authenticator, registrar, logger)

	protected := router.Group("/api")
	protected.Use(authkit.RequireAuth(serverConfig, clock))
	protected.GET("/me", web.HandleProfile(identityProvider, logger))

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
