package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the relay service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// HistoryStore selects the canonical history backend: "memory",
	// "redis", "sqlite3" or "mysql".
	HistoryStore string `json:"history_store"`
	// HistoryMax caps the per-session history length. Zero means the
	// default of 10.
	HistoryMax int `json:"history_max"`
	// DocsDir is the directory the FAQ search tool loads documents from.
	DocsDir string `json:"docs_dir"`
	// CatalogURL points at the remote product-catalog service. Empty
	// disables the remote path and the tool falls back to the local table.
	CatalogURL string `json:"catalog_url"`
}

// DefaultHistoryMax bounds a session history unless configured otherwise.
const DefaultHistoryMax = 10

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.BasicConfig.HistoryMax <= 0 {
		cfg.BasicConfig.HistoryMax = DefaultHistoryMax
	}
	if cfg.BasicConfig.HistoryStore == "" {
		cfg.BasicConfig.HistoryStore = "memory"
	}
	if cfg.BasicConfig.DocsDir != "" && !filepath.IsAbs(cfg.BasicConfig.DocsDir) {
		cfg.BasicConfig.DocsDir = filepath.Join(filepath.Dir(absPath), cfg.BasicConfig.DocsDir)
	}

	return &cfg, nil
}
