package authkit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryRefreshTokenStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewMemoryRefreshTokenStore()
	ctx := context.Background()
	record := RefreshToken{
		Token:     "opaque-value",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	if createErr := store.Create(ctx, record); createErr != nil {
		t.Fatalf("unexpected create error: %v", createErr)
	}
	found, findErr := store.FindByValue(ctx, record.Token)
	if findErr != nil {
		t.Fatalf("unexpected find error: %v", findErr)
	}
	if found.UserID != record.UserID || found.Revoked {
		t.Fatalf("unexpected record: %+v", found)
	}

	flipped, consumeErr := store.Consume(ctx, record.Token)
	if consumeErr != nil {
		t.Fatalf("unexpected consume error: %v", consumeErr)
	}
	if !flipped {
		t.Fatalf("first consume must flip")
	}
	flippedAgain, _ := store.Consume(ctx, record.Token)
	if flippedAgain {
		t.Fatalf("second consume must not flip")
	}

	found, findErr = store.FindByValue(ctx, record.Token)
	if findErr != nil {
		t.Fatalf("consumed record must remain readable: %v", findErr)
	}
	if !found.Revoked {
		t.Fatalf("record must stay revoked")
	}
}

func TestMemoryRefreshTokenStoreMissingValue(t *testing.T) {
	t.Parallel()

	store := NewMemoryRefreshTokenStore()
	ctx := context.Background()

	_, findErr := store.FindByValue(ctx, "no-such-token")
	if !errors.Is(findErr, ErrRefreshTokenNotFound) {
		t.Fatalf("expected ErrRefreshTokenNotFound, got %v", findErr)
	}
	flipped, consumeErr := store.Consume(ctx, "no-such-token")
	if consumeErr != nil {
		t.Fatalf("unexpected consume error: %v", consumeErr)
	}
	if flipped {
		t.Fatalf("consuming a missing token must not report a flip")
	}
}

func TestMemoryRefreshTokenStoreRejectsDuplicateValue(t *testing.T) {
	t.Parallel()

	store := NewMemoryRefreshTokenStore()
	ctx := context.Background()
	record := RefreshToken{Token: "dup", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}

	if createErr := store.Create(ctx, record); createErr != nil {
		t.Fatalf("unexpected create error: %v", createErr)
	}
	if createErr := store.Create(ctx, record); createErr == nil {
		t.Fatalf("expected duplicate create to fail")
	}
}

func TestMemoryRefreshTokenStoreConcurrentConsume(t *testing.T) {
	t.Parallel()

	store := NewMemoryRefreshTokenStore()
	ctx := context.Background()
	record := RefreshToken{Token: "contested", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	if createErr := store.Create(ctx, record); createErr != nil {
		t.Fatalf("unexpected create error: %v", createErr)
	}

	const attempts = 16
	var waitGroup sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			flipped, consumeErr := store.Consume(ctx, record.Token)
			if consumeErr != nil {
				t.Errorf("unexpected consume error: %v", consumeErr)
				return
			}
			results <- flipped
		}()
	}
	waitGroup.Wait()
	close(results)

	flips := 0
	for flipped := range results {
		if flipped {
			flips++
		}
	}
	if flips != 1 {
		t.Fatalf("expected exactly one successful flip, got %d", flips)
	}
}
