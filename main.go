package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"chatrelay/internal/agent"
	"chatrelay/internal/api"
	"chatrelay/internal/config"
	"chatrelay/internal/history"
	"chatrelay/internal/redis"
	"chatrelay/internal/storage"
	"chatrelay/web"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("CHATRELAY_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	provider := os.Getenv("CHATRELAY_PROVIDER")
	if provider == "" {
		provider = "openai"
	}

	// The catalog tool and the sql history backend share one database
	// handle; neither is mandatory.
	var db *sql.DB
	dbType := os.Getenv("CHATRELAY_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	if _, ok := cfg.Databases[dbType]; ok {
		db, err = storage.Open(dbType, cfg)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
		if err := storage.Migrate(db, dbType); err != nil {
			log.Fatalf("migrate database: %v", err)
		}
		if err := storage.SeedProducts(db, sampleCatalog); err != nil {
			log.Fatalf("seed catalog: %v", err)
		}
	}

	store, closeStore, err := buildHistoryStore(cfg, db, dbType)
	if err != nil {
		log.Fatalf("init history store: %v", err)
	}
	defer closeStore()

	tools := agent.InitToolsChain(cfg, db)
	engine, err := agent.NewService(context.Background(), provider, cfg, tools)
	if err != nil {
		log.Fatalf("init agent service: %v", err)
	}
	log.Printf("agent ready: provider=%s tools=%d history_store=%s",
		provider, engine.ToolCount(), cfg.BasicConfig.HistoryStore)

	handlers := api.NewHandler(engine, store, cfg.BasicConfig.HistoryMax)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Printf("panic recovered: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": "unexpected failure",
		})
	}))
	handlers.RegisterRoutes(router)
	router.NoRoute(gin.WrapH(web.Handler()))

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func buildHistoryStore(cfg *config.Config, db *sql.DB, dbType string) (history.Store, func(), error) {
	noop := func() {}
	switch cfg.BasicConfig.HistoryStore {
	case "memory":
		return history.NewMemoryStore(), noop, nil
	case "redis":
		client, err := redis.NewRedisClient(cfg)
		if err != nil {
			return nil, noop, err
		}
		store, err := history.NewRedisStore(client)
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		return store, func() { client.Close() }, nil
	case "sqlite3", "sqlite", "mysql":
		store, err := history.NewSQLStore(db, dbType)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown history_store: %s", cfg.BasicConfig.HistoryStore)
	}
}

var sampleCatalog = []storage.Product{
	{Name: "Trailblazer Hiking Boots", Category: "footwear", Description: "Waterproof leather hiking boots with ankle support.", PriceCents: 14999, InStock: true},
	{Name: "Summit 2-Person Tent", Category: "camping", Description: "Lightweight backpacking tent with aluminum poles.", PriceCents: 22900, InStock: true},
	{Name: "Glacier Insulated Bottle", Category: "accessories", Description: "1L vacuum-insulated stainless steel bottle.", PriceCents: 3499, InStock: true},
	{Name: "Ridgeline Rain Jacket", Category: "apparel", Description: "Breathable 3-layer shell jacket with taped seams.", PriceCents: 18900, InStock: false},
	{Name: "Basecamp Sleeping Bag", Category: "camping", Description: "Down sleeping bag rated to -10C.", PriceCents: 25900, InStock: true},
}
