package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/config"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/database"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/handlers"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/models"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/services/amazon"
	syncengine "github.com/judyjanx-jpg/inventory-advisor-sub003/internal/sync"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in the shutdown handler below

	// 3. Synchronize schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.Product{},
		&models.SyncRunLog{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Sync engine over the provider's reports API
	if err := cfg.Amazon.Validate(); err != nil {
		log.Printf("⚠️ Sync: provider credentials incomplete, runs will fail until configured: %v", err)
	}

	store := syncengine.NewGormStore(db)
	engine := syncengine.NewEngine(amazon.NewClient(cfg.Amazon), store, syncengine.DefaultTimings())
	engine.RunLogger = store

	// 5. Websocket hub pushing progress snapshots to dashboard clients
	hub := websocket.NewHub()
	go hub.Run()
	go pushProgress(hub, syncengine.NewPublisher(engine.State()))

	// 6. HTTP router
	router := handlers.NewRouter(db, cfg, engine, hub)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Server starting on port %s\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop any in-flight sync run
	engine.Stop()

	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}

// pushProgress forwards engine snapshots to the websocket hub whenever a
// run is active. Each finished run ends the subscription, so it re-arms.
func pushProgress(hub *websocket.Hub, publisher *syncengine.Publisher) {
	for {
		for snap := range publisher.Subscribe(context.Background()) {
			if hub.ClientCount() > 0 {
				hub.Broadcast(snap)
			}
		}
		time.Sleep(time.Second)
	}
}
