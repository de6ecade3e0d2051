package history

import (
	"context"
	"database/sql"
	"testing"

	"chatrelay/internal/config"
	"chatrelay/internal/models"
	"chatrelay/internal/storage"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func TestSQLStoreGetMissingIsEmpty(t *testing.T) {
	store, err := NewSQLStore(newTestDB(t), "sqlite3")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get missing session: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(got))
	}
}

func TestSQLStoreRoundTrip(t *testing.T) {
	store, err := NewSQLStore(newTestDB(t), "sqlite3")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	messages := []models.Message{
		models.UserMessage("where is my order?"),
		models.AssistantMessage("It ships tomorrow."),
	}
	if err := store.Set(ctx, "s1", messages); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 || got[0].Content != "where is my order?" || got[1].Role != models.RoleAssistant {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}

func TestSQLStoreUpsertReplaces(t *testing.T) {
	store, err := NewSQLStore(newTestDB(t), "sqlite3")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, "s1", []models.Message{models.UserMessage("one")}); err != nil {
		t.Fatalf("set first: %v", err)
	}
	replacement := []models.Message{
		models.UserMessage("one"),
		models.AssistantMessage("two"),
		models.UserMessage("three"),
	}
	if err := store.Set(ctx, "s1", replacement); err != nil {
		t.Fatalf("set second: %v", err)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 3 || got[2].Content != "three" {
		t.Fatalf("upsert should replace the stored sequence: %#v", got)
	}
}

func TestSQLStoreSessionsAreIndependent(t *testing.T) {
	store, err := NewSQLStore(newTestDB(t), "sqlite3")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, "a", []models.Message{models.UserMessage("for a")}); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if err := store.Set(ctx, "b", []models.Message{models.UserMessage("for b")}); err != nil {
		t.Fatalf("set b: %v", err)
	}
	gotA, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	if len(gotA) != 1 || gotA[0].Content != "for a" {
		t.Fatalf("session a polluted: %#v", gotA)
	}
}
