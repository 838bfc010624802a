package authkit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("database.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("database.empty_database_url")
	errSQLiteEmptyPath     = errors.New("database.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("database.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("database.unsupported_no_scheme")
)

// OpenDatabase opens a GORM connection for a postgres:// or sqlite:// URL.
// The returned driver label identifies the selected dialect.
func OpenDatabase(databaseURL string) (*gorm.DB, string, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, "", fmt.Errorf("database.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, dialectErr := resolveDialector(databaseURL)
	if dialectErr != nil {
		return nil, "", dialectErr
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, "", fmt.Errorf("database.open.%s: %w", driverLabel, openErr)
	}
	return gormDB, driverLabel, nil
}

// DatabaseRefreshTokenStore persists refresh tokens using GORM.
type DatabaseRefreshTokenStore struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *DatabaseRefreshTokenStore) Driver() string {
	return store.driverLabel
}

type refreshTokenRecord struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Token     string    `gorm:"column:token;uniqueIndex;not null"`
	UserID    string    `gorm:"column:user_id;index;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	Revoked   bool      `gorm:"column:revoked;not null;default:false"`
	IssuedAt  time.Time `gorm:"column:issued_at;not null"`
}

func (refreshTokenRecord) TableName() string {
	return "refresh_tokens"
}

// NewDatabaseRefreshTokenStore migrates the refresh-token table on the
// provided connection and returns the store.
func NewDatabaseRefreshTokenStore(ctx context.Context, gormDB *gorm.DB, driverLabel string) (*DatabaseRefreshTokenStore, error) {
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&refreshTokenRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("refresh_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseRefreshTokenStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// Create inserts a new refresh token row.
func (store *DatabaseRefreshTokenStore) Create(ctx context.Context, token RefreshToken) error {
	record := refreshTokenRecord{
		ID:        newRowID(),
		Token:     token.Token,
		UserID:    token.UserID,
		ExpiresAt: token.ExpiresAt.UTC(),
		Revoked:   token.Revoked,
		IssuedAt:  time.Now().UTC(),
	}
	if createErr := store.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		return fmt.Errorf("refresh_store.create.%s: %w", store.driverLabel, createErr)
	}
	return nil
}

// FindByValue locates a refresh token row by its exact token value.
func (store *DatabaseRefreshTokenStore) FindByValue(ctx context.Context, value string) (RefreshToken, error) {
	var record refreshTokenRecord
	findErr := store.db.WithContext(ctx).Where("token = ?", value).Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return RefreshToken{}, fmt.Errorf("refresh_store.find.%s: %w", store.driverLabel, ErrRefreshTokenNotFound)
		}
		return RefreshToken{}, fmt.Errorf("refresh_store.find.%s: %w", store.driverLabel, findErr)
	}
	return RefreshToken{
		Token:     record.Token,
		UserID:    record.UserID,
		ExpiresAt: record.ExpiresAt,
		Revoked:   record.Revoked,
	}, nil
}

// Consume flips revoked from false to true with one conditional UPDATE so
// concurrent consumers of the same value observe exactly one flip.
func (store *DatabaseRefreshTokenStore) Consume(ctx context.Context, value string) (bool, error) {
	result := store.db.WithContext(ctx).Model(&refreshTokenRecord{}).
		Where("token = ? AND revoked = ?", value, false).
		Update("revoked", true)
	if result.Error != nil {
		return false, fmt.Errorf("refresh_store.consume.%s: %w", store.driverLabel, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, parseErr := url.Parse(databaseURL)
	if parseErr != nil {
		return nil, "", fmt.Errorf("database.parse_url: %w", parseErr)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("database.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("database.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("database.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
