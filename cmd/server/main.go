package main // Entry point package

import (
	"log" // Logging library

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/slotforge/slot-engine/internal/config"     // Environment config loaders
	"github.com/slotforge/slot-engine/internal/database"   // MySQL connector
	"github.com/slotforge/slot-engine/internal/engine"     // Slot lifecycle engine
	"github.com/slotforge/slot-engine/internal/handler"    // HTTP handlers
	"github.com/slotforge/slot-engine/internal/middleware" // Rate limit / cache middleware
	"github.com/slotforge/slot-engine/internal/queue"      // RabbitMQ consumer
	"github.com/slotforge/slot-engine/internal/ranking"    // Redis ranking history
	"github.com/slotforge/slot-engine/internal/repository" // SQL repositories
	"github.com/slotforge/slot-engine/internal/router"     // Route registration
	queuepub "github.com/slotforge/slot-engine/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: a nil client disables rate limiting, response
	// caching and ranking history, but the core API keeps working.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting, caching and ranking disabled")
	}

	store := repository.NewStore(db)
	rankStore := ranking.NewStore(rdb)
	sink := queuepub.NewSink()

	mode := func() engine.Mode { return engine.Mode(cfg.OperatingMode) }
	lifecycle := engine.NewLifecycle(store, sink, rankStore, mode)
	allocations := engine.NewAllocationManager(store)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	fieldConfigs := repository.NewFieldConfigRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	slotH := handler.NewSlotHandler(lifecycle, allocations, rankStore)
	adminH := handler.NewAdminSlotHandler(lifecycle, allocations)
	fieldH := handler.NewFieldConfigHandler(fieldConfigs)

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	e.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterSlots(e, slotH, adminH, fieldH, cfg.JWTSecret)

	// The consumer runs its own reconnect loop; a broker outage never
	// takes the API down with it.
	go func() {
		if err := queue.StartSlotEventConsumer(); err != nil {
			log.Printf("slot-consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s mode=%s)", addr, cfg.Env, cfg.OperatingMode)

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err)
	}
}
