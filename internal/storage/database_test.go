package storage

import (
	"database/sql"
	"testing"

	"chatrelay/internal/config"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{}}
	if _, err := Open("oracle", cfg); err == nil {
		t.Fatalf("expected error for unconfigured database")
	}
}

func TestSeedProductsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	seed := []Product{
		{Name: "Glacier Bottle", Category: "accessories", Description: "Insulated bottle.", PriceCents: 3499, InStock: true},
	}
	if err := SeedProducts(db, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// A second seed with different rows must not touch a populated table.
	if err := SeedProducts(db, []Product{{Name: "Other", Category: "x", Description: "y", PriceCents: 1}}); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 product, got %d", count)
	}
}

func TestSearchProducts(t *testing.T) {
	db := openTestDB(t)
	seed := []Product{
		{Name: "Trailblazer Hiking Boots", Category: "footwear", Description: "Waterproof leather boots.", PriceCents: 14999, InStock: true},
		{Name: "Summit Tent", Category: "camping", Description: "Two person tent.", PriceCents: 22900, InStock: false},
	}
	if err := SeedProducts(db, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := SearchProducts(db, "camping", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Summit Tent" {
		t.Fatalf("unexpected results: %v", got)
	}
	if got[0].InStock {
		t.Fatalf("stock flag not decoded")
	}

	got, err = SearchProducts(db, "boots", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || !got[0].InStock {
		t.Fatalf("unexpected results: %v", got)
	}
}
