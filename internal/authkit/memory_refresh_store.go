package authkit

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRefreshTokenStore is an in-memory store intended for tests and dev.
type MemoryRefreshTokenStore struct {
	mutex   sync.Mutex
	byValue map[string]*RefreshToken
}

// NewMemoryRefreshTokenStore creates an empty in-memory token store.
func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{byValue: make(map[string]*RefreshToken)}
}

// Create inserts a new refresh token record.
func (store *MemoryRefreshTokenStore) Create(ctx context.Context, token RefreshToken) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, exists := store.byValue[token.Token]; exists {
		return fmt.Errorf("refresh_store.memory.create: duplicate token value")
	}
	stored := token
	store.byValue[token.Token] = &stored
	return nil
}

// FindByValue returns the record for the exact token value.
func (store *MemoryRefreshTokenStore) FindByValue(ctx context.Context, value string) (RefreshToken, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, ok := store.byValue[value]
	if !ok {
		return RefreshToken{}, fmt.Errorf("refresh_store.memory.find: %w", ErrRefreshTokenNotFound)
	}
	return *record, nil
}

// Consume flips the revoked flag exactly once per token value. It reports
// whether this call performed the flip; the revoked flag never reverts.
func (store *MemoryRefreshTokenStore) Consume(ctx context.Context, value string) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, ok := store.byValue[value]
	if !ok || record.Revoked {
		return false, nil
	}
	record.Revoked = true
	return true, nil
}
