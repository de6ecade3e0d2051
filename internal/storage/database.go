package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"chatrelay/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured SQL database.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS histories (
				session_id TEXT PRIMARY KEY,
				messages TEXT NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS products (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				category TEXT NOT NULL,
				description TEXT NOT NULL,
				price_cents INTEGER NOT NULL,
				in_stock INTEGER NOT NULL DEFAULT 1
			)`,
			`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS histories (
				session_id VARCHAR(255) NOT NULL,
				messages MEDIUMTEXT NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (session_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS products (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				name VARCHAR(255) NOT NULL,
				category VARCHAR(100) NOT NULL,
				description TEXT NOT NULL,
				price_cents BIGINT NOT NULL,
				in_stock TINYINT NOT NULL DEFAULT 1,
				PRIMARY KEY (id),
				INDEX idx_products_category (category)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}

// Product is one row of the local catalog table the catalog_search tool
// falls back to when no remote catalog endpoint is configured.
type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	InStock     bool   `json:"in_stock"`
}

// SeedProducts inserts catalog rows when the table is empty. Deployments
// with a real catalog service leave the table alone.
func SeedProducts(db *sql.DB, products []Product) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, p := range products {
		inStock := 0
		if p.InStock {
			inStock = 1
		}
		_, err := db.Exec(
			`INSERT INTO products (name, category, description, price_cents, in_stock) VALUES (?, ?, ?, ?, ?)`,
			p.Name, p.Category, p.Description, p.PriceCents, inStock,
		)
		if err != nil {
			return fmt.Errorf("seed product %q: %w", p.Name, err)
		}
	}
	return nil
}

// SearchProducts runs a LIKE query over name, category and description.
func SearchProducts(db *sql.DB, query string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 5
	}
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := db.Query(
		`SELECT id, name, category, description, price_cents, in_stock
		 FROM products
		 WHERE name LIKE ? OR category LIKE ? OR description LIKE ?
		 LIMIT ?`,
		pattern, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		var inStock int
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.PriceCents, &inStock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.InStock = inStock != 0
		out = append(out, p)
	}
	return out, rows.Err()
}
