// Package identity implements the injected identity-provider capability set
// on a GORM-backed user table with argon2id password hashing and persisted
// single-use purpose tokens.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aturganbay/shoply/internal/authkit"
)

const (
	defaultConfirmTokenTTL = 48 * time.Hour
	defaultResetTokenTTL   = 1 * time.Hour
)

type userRecord struct {
	ID             string    `gorm:"column:id;primaryKey"`
	Email          string    `gorm:"column:email;uniqueIndex;not null"`
	UserName       string    `gorm:"column:user_name;not null"`
	PasswordHash   string    `gorm:"column:password_hash;not null"`
	Roles          string    `gorm:"column:roles;not null;default:'[]'"`
	EmailConfirmed bool      `gorm:"column:email_confirmed;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (userRecord) TableName() string {
	return "users"
}

// Options tune the provider; zero values select the defaults.
type Options struct {
	Clock           authkit.Clock
	ConfirmTokenTTL time.Duration
	ResetTokenTTL   time.Duration
}

// GormProvider implements authkit.IdentityProvider on a GORM connection.
type GormProvider struct {
	db              *gorm.DB
	clock           authkit.Clock
	argon           argonParams
	confirmTokenTTL time.Duration
	resetTokenTTL   time.Duration
}

// NewGormProvider migrates the identity tables and returns the provider.
func NewGormProvider(ctx context.Context, gormDB *gorm.DB, options Options) (*GormProvider, error) {
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&userRecord{}, &purposeTokenRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("identity.migrate: %w", migrateErr)
	}
	clock := options.Clock
	if clock == nil {
		clock = authkit.NewSystemClock()
	}
	confirmTokenTTL := options.ConfirmTokenTTL
	if confirmTokenTTL <= 0 {
		confirmTokenTTL = defaultConfirmTokenTTL
	}
	resetTokenTTL := options.ResetTokenTTL
	if resetTokenTTL <= 0 {
		resetTokenTTL = defaultResetTokenTTL
	}
	return &GormProvider{
		db:              gormDB,
		clock:           clock,
		argon:           defaultArgonParams,
		confirmTokenTTL: confirmTokenTTL,
		resetTokenTTL:   resetTokenTTL,
	}, nil
}

// FindByID returns the user with the given id.
func (provider *GormProvider) FindByID(ctx context.Context, userID string) (authkit.User, error) {
	var record userRecord
	findErr := provider.db.WithContext(ctx).Where("id = ?", userID).Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return authkit.User{}, fmt.Errorf("identity.find_by_id: %w", authkit.ErrUserNotFound)
		}
		return authkit.User{}, fmt.Errorf("identity.find_by_id: %w", findErr)
	}
	return toUser(record), nil
}

// FindByEmail returns the user with the given email, matched case-insensitively.
func (provider *GormProvider) FindByEmail(ctx context.Context, email string) (authkit.User, error) {
	var record userRecord
	findErr := provider.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return authkit.User{}, fmt.Errorf("identity.find_by_email: %w", authkit.ErrUserNotFound)
		}
		return authkit.User{}, fmt.Errorf("identity.find_by_email: %w", findErr)
	}
	return toUser(record), nil
}

// CreateUser hashes the password and inserts the account row.
func (provider *GormProvider) CreateUser(ctx context.Context, newUser authkit.NewUser) (authkit.User, error) {
	passwordHash, hashErr := hashPassword(provider.argon, newUser.Password)
	if hashErr != nil {
		return authkit.User{}, hashErr
	}
	rolesJSON, marshalErr := json.Marshal(newUser.Roles)
	if marshalErr != nil {
		return authkit.User{}, fmt.Errorf("identity.create_user.roles: %w", marshalErr)
	}
	now := provider.clock.Now().UTC()
	record := userRecord{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(newUser.Email),
		UserName:     strings.TrimSpace(newUser.UserName),
		PasswordHash: passwordHash,
		Roles:        string(rolesJSON),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if createErr := provider.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		return authkit.User{}, fmt.Errorf("identity.create_user: %w", createErr)
	}
	return toUser(record), nil
}

// CheckPassword verifies the password against the stored argon2id hash.
// A verification mismatch is a result, not an error.
func (provider *GormProvider) CheckPassword(ctx context.Context, user authkit.User, password string) (bool, error) {
	var record userRecord
	findErr := provider.db.WithContext(ctx).Where("id = ?", user.ID).Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("identity.check_password: %w", authkit.ErrUserNotFound)
		}
		return false, fmt.Errorf("identity.check_password: %w", findErr)
	}
	return verifyPassword(password, record.PasswordHash), nil
}

// GetRoles returns the roles assigned to the user.
func (provider *GormProvider) GetRoles(ctx context.Context, user authkit.User) ([]string, error) {
	var record userRecord
	findErr := provider.db.WithContext(ctx).Where("id = ?", user.ID).Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("identity.get_roles: %w", authkit.ErrUserNotFound)
		}
		return nil, fmt.Errorf("identity.get_roles: %w", findErr)
	}
	var userRoles []string
	if unmarshalErr := json.Unmarshal([]byte(record.Roles), &userRoles); unmarshalErr != nil {
		return nil, fmt.Errorf("identity.get_roles.decode: %w", unmarshalErr)
	}
	return userRoles, nil
}

// SetPassword re-hashes and stores a new password.
func (provider *GormProvider) SetPassword(ctx context.Context, user authkit.User, newPassword string) error {
	passwordHash, hashErr := hashPassword(provider.argon, newPassword)
	if hashErr != nil {
		return hashErr
	}
	result := provider.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    provider.clock.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("identity.set_password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("identity.set_password: %w", authkit.ErrUserNotFound)
	}
	return nil
}

// MarkEmailConfirmed records that the address has been verified.
func (provider *GormProvider) MarkEmailConfirmed(ctx context.Context, user authkit.User) error {
	result := provider.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"email_confirmed": true,
			"updated_at":      provider.clock.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("identity.mark_confirmed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("identity.mark_confirmed: %w", authkit.ErrUserNotFound)
	}
	return nil
}

func toUser(record userRecord) authkit.User {
	return authkit.User{
		ID:             record.ID,
		Email:          record.Email,
		UserName:       record.UserName,
		EmailConfirmed: record.EmailConfirmed,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
