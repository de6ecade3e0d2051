package history

import (
	"context"
	"testing"

	"chatrelay/internal/models"
)

func TestMemoryStoreGetMissingIsEmpty(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.Get(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("get missing session: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(got))
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	messages := []models.Message{
		models.UserMessage("My name is John"),
		models.AssistantMessage("Nice to meet you, John."),
	}
	if err := store.Set(ctx, "s1", messages); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Content != "My name is John" || got[1].Role != models.RoleAssistant {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}

func TestMemoryStoreLastWriteWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := []models.Message{models.UserMessage("first")}
	second := []models.Message{models.UserMessage("second"), models.AssistantMessage("reply")}
	if err := store.Set(ctx, "s1", first); err != nil {
		t.Fatalf("set first: %v", err)
	}
	if err := store.Set(ctx, "s1", second); err != nil {
		t.Fatalf("set second: %v", err)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 || got[0].Content != "second" {
		t.Fatalf("later set should replace wholesale: %#v", got)
	}
}

func TestMemoryStoreCopiesOnAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	original := []models.Message{models.UserMessage("immutable")}
	if err := store.Set(ctx, "s1", original); err != nil {
		t.Fatalf("set: %v", err)
	}
	original[0].Content = "mutated after set"

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got[0].Content != "immutable" {
		t.Fatalf("store shared caller slice on Set")
	}

	got[0].Content = "mutated after get"
	again, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again[0].Content != "immutable" {
		t.Fatalf("store shared internal slice on Get")
	}
}
