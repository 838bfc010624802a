package authkitpg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aturganbay/shoply/internal/authkit"
)

// PostgresRefreshTokenStore persists refresh tokens in PostgreSQL via pgx.
type PostgresRefreshTokenStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRefreshTokenStore constructs a Postgres store.
func NewPostgresRefreshTokenStore(pool *pgxpool.Pool) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{pool: pool}
}

// Create inserts a new refresh token row.
func (store *PostgresRefreshTokenStore) Create(ctx context.Context, token authkit.RefreshToken) error {
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO refresh_tokens (id, token, user_id, expires_at, revoked, issued_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, uuid.NewString(), token.Token, token.UserID, token.ExpiresAt.UTC(), token.Revoked, time.Now().UTC())
	if execErr != nil {
		return fmt.Errorf("refresh_store.create.pgx: %w", execErr)
	}
	return nil
}

// FindByValue locates a refresh token row by its exact token value.
func (store *PostgresRefreshTokenStore) FindByValue(ctx context.Context, value string) (authkit.RefreshToken, error) {
	var record authkit.RefreshToken
	row := store.pool.QueryRow(ctx, `
SELECT token, user_id, expires_at, revoked
FROM refresh_tokens
WHERE token = $1
`, value)
	scanErr := row.Scan(&record.Token, &record.UserID, &record.ExpiresAt, &record.Revoked)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return authkit.RefreshToken{}, fmt.Errorf("refresh_store.find.pgx: %w", authkit.ErrRefreshTokenNotFound)
		}
		return authkit.RefreshToken{}, fmt.Errorf("refresh_store.find.pgx: %w", scanErr)
	}
	return record, nil
}

// Consume flips revoked from false to true with one conditional UPDATE.
func (store *PostgresRefreshTokenStore) Consume(ctx context.Context, value string) (bool, error) {
	tag, execErr := store.pool.Exec(ctx, `
UPDATE refresh_tokens SET revoked = TRUE
WHERE token = $1 AND revoked = FALSE
`, value)
	if execErr != nil {
		return false, fmt.Errorf("refresh_store.consume.pgx: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}
