package friendships

import (
	"context"
	"testing"
	"time"

	"github.com/koinonia/backend/internal/models"
)

type countingStore struct {
	Store
	suggestCalls int
}

func (c *countingStore) SuggestCandidates(ctx context.Context, userID string, limit int) ([]models.PublicProfile, error) {
	c.suggestCalls++
	return c.Store.SuggestCandidates(ctx, userID, limit)
}

func TestCachingStoreServesCachedSuggestions(t *testing.T) {
	base := newFakeStore(
		activeUserFixture("user-a", time.Now()),
		activeUserFixture("user-b", time.Now()),
	)

	counting := &countingStore{Store: base}
	cached := NewCachingStore(counting, time.Minute)

	ctx := context.Background()

	first, err := cached.SuggestCandidates(ctx, "user-a", SuggestionLimit)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(first) != 1 || first[0].ID != "user-b" {
		t.Fatalf("unexpected suggestions: %+v", first)
	}
	if counting.suggestCalls != 1 {
		t.Fatalf("expected base called once, got %d", counting.suggestCalls)
	}

	if _, err := cached.SuggestCandidates(ctx, "user-a", SuggestionLimit); err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if counting.suggestCalls != 1 {
		t.Fatalf("expected cached result, got %d calls", counting.suggestCalls)
	}
}

func TestCachingStoreExpiry(t *testing.T) {
	base := newFakeStore(
		activeUserFixture("user-a", time.Now()),
		activeUserFixture("user-b", time.Now()),
	)

	counting := &countingStore{Store: base}
	cached := NewCachingStore(counting, time.Millisecond)

	ctx := context.Background()

	if _, err := cached.SuggestCandidates(ctx, "user-a", SuggestionLimit); err != nil {
		t.Fatalf("suggest: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := cached.SuggestCandidates(ctx, "user-a", SuggestionLimit); err != nil {
		t.Fatalf("suggest: %v", err)
	}

	if counting.suggestCalls != 2 {
		t.Fatalf("expected cache miss after expiry, got %d calls", counting.suggestCalls)
	}
}

func TestCachingStoreInvalidatesOnMutation(t *testing.T) {
	base := newFakeStore(
		activeUserFixture("user-a", time.Now()),
		activeUserFixture("user-b", time.Now()),
	)

	counting := &countingStore{Store: base}
	cached := NewCachingStore(counting, time.Minute)
	service := NewService(cached)
	service.sleep = func(context.Context, time.Duration) error { return nil }

	ctx := context.Background()

	if _, err := cached.SuggestCandidates(ctx, "user-a", SuggestionLimit); err != nil {
		t.Fatalf("suggest: %v", err)
	}

	if _, err := service.SendRequest(ctx, "user-a", "user-b"); err != nil {
		t.Fatalf("send request: %v", err)
	}

	after, err := cached.SuggestCandidates(ctx, "user-a", SuggestionLimit)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("pending target must not be suggested, got %+v", after)
	}
	if counting.suggestCalls != 2 {
		t.Fatalf("expected mutation to drop the cache, got %d calls", counting.suggestCalls)
	}
}

func TestCachingStoreDefaultTTL(t *testing.T) {
	cached := NewCachingStore(newFakeStore(), 0)
	if cached.ttl <= 0 {
		t.Fatalf("expected ttl to default positive, got %v", cached.ttl)
	}
}
