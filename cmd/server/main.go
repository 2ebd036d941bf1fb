/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the bankroll server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize SQLite store
  3. Wire notifications (log + Redis, or log + in-memory inbox)
  4. Create engine, auth and API handler
  5. Start the pool reconciler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides BANKROLL_PORT)
  -db      SQLite database path (overrides BANKROLL_DB)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reconciler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close Redis and database connections
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/bankroll.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Publish notifications to Redis
  REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/warp/bankroll/api"
	"github.com/warp/bankroll/bankroll"
	"github.com/warp/bankroll/config"
	"github.com/warp/bankroll/notify"
	"github.com/warp/bankroll/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the environment
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Port, cfg.DBPath = *port, *dbPath

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Notifications
	var (
		notifier bankroll.Notifier
		inbox    notify.Inbox
	)
	if cfg.RedisEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
		}
		cancel()

		r := notify.NewRedis(client, int64(cfg.InboxLimit))
		notifier, inbox = notify.Multi(notify.Log{}, r), r
		log.Printf("📣 Notifications published to Redis at %s", cfg.RedisAddr)
	} else {
		m := notify.NewMemory(cfg.InboxLimit)
		notifier, inbox = notify.Multi(notify.Log{}, m), m
	}

	engine := bankroll.NewEngine(store, notifier)
	auth := api.NewAuth(cfg.JWTSecret, cfg.JWTTTL)
	handler := api.NewHandler(engine, auth, inbox, cfg.BaseURL)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Repair pool drift left by interrupted confirmations
	reconciler := api.NewPoolReconciler(engine)
	reconciler.CheckInterval = cfg.ReconcileInterval
	reconciler.Enabled = cfg.ReconcileEnabled
	reconciler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", cfg.Port)
		log.Printf("📊 API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	reconciler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
