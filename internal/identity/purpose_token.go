package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aturganbay/shoply/internal/authkit"
)

const purposeTokenByteLength = 32

// purposeTokenRandomSource is swappable in tests.
var purposeTokenRandomSource io.Reader = rand.Reader

type purposeTokenRecord struct {
	ID           string    `gorm:"column:id;primaryKey"`
	UserID       string    `gorm:"column:user_id;index;not null"`
	Purpose      string    `gorm:"column:purpose;not null"`
	TokenHash    string    `gorm:"column:token_hash;uniqueIndex;not null"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null"`
	ConsumedUnix int64     `gorm:"column:consumed_unix;not null;default:0"`
	IssuedAt     time.Time `gorm:"column:issued_at;not null"`
}

func (purposeTokenRecord) TableName() string {
	return "purpose_tokens"
}

// GeneratePurposeToken mints an opaque single-use token bound to one user and
// one purpose. Only the sha256 of the token is stored.
func (provider *GormProvider) GeneratePurposeToken(ctx context.Context, purpose authkit.TokenPurpose, user authkit.User) (string, error) {
	randomBytes := make([]byte, purposeTokenByteLength)
	if _, randomErr := io.ReadFull(purposeTokenRandomSource, randomBytes); randomErr != nil {
		return "", fmt.Errorf("identity.purpose_token.random: %w", randomErr)
	}
	token := base64.RawURLEncoding.EncodeToString(randomBytes)
	record := purposeTokenRecord{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Purpose:   string(purpose),
		TokenHash: hashPurposeToken(token),
		ExpiresAt: provider.clock.Now().UTC().Add(provider.purposeTTL(purpose)),
		IssuedAt:  provider.clock.Now().UTC(),
	}
	if createErr := provider.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		return "", fmt.Errorf("identity.purpose_token.persist: %w", createErr)
	}
	return token, nil
}

// ConfirmPurposeToken validates and consumes a purpose token. The consuming
// update is conditional on the token being unconsumed, so a token can be
// spent at most once regardless of concurrent confirmation attempts.
func (provider *GormProvider) ConfirmPurposeToken(ctx context.Context, purpose authkit.TokenPurpose, user authkit.User, token string) error {
	var record purposeTokenRecord
	findErr := provider.db.WithContext(ctx).
		Where("token_hash = ? AND user_id = ? AND purpose = ?", hashPurposeToken(token), user.ID, string(purpose)).
		Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("identity.purpose_token.confirm: %w", authkit.ErrPurposeTokenInvalid)
		}
		return fmt.Errorf("identity.purpose_token.confirm: %w", findErr)
	}
	now := provider.clock.Now().UTC()
	if record.ConsumedUnix != 0 || now.After(record.ExpiresAt) {
		return fmt.Errorf("identity.purpose_token.confirm: %w", authkit.ErrPurposeTokenInvalid)
	}
	result := provider.db.WithContext(ctx).Model(&purposeTokenRecord{}).
		Where("id = ? AND consumed_unix = 0", record.ID).
		Update("consumed_unix", now.Unix())
	if result.Error != nil {
		return fmt.Errorf("identity.purpose_token.consume: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("identity.purpose_token.consume: %w", authkit.ErrPurposeTokenInvalid)
	}
	return nil
}

func (provider *GormProvider) purposeTTL(purpose authkit.TokenPurpose) time.Duration {
	if purpose == authkit.PurposePasswordReset {
		return provider.resetTokenTTL
	}
	return provider.confirmTokenTTL
}

func hashPurposeToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
