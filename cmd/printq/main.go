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

	"github.com/gin-gonic/gin"

	"github.com/walkup/printq/internal/api/handlers"
	"github.com/walkup/printq/internal/api/middleware"
	"github.com/walkup/printq/internal/archive"
	"github.com/walkup/printq/internal/config"
	"github.com/walkup/printq/internal/core"
	"github.com/walkup/printq/internal/db"
	"github.com/walkup/printq/internal/notify"
	"github.com/walkup/printq/internal/storage"
	"github.com/walkup/printq/internal/webhook"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := db.Init(db.Config{Path: cfg.Database.Path}); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	store, err := storage.NewArtifactStore(cfg.Uploads.Dir)
	if err != nil {
		log.Fatalf("Failed to initialize artifact store: %v", err)
	}

	hub := notify.NewHub(cfg.Server.AllowedOrigin)

	// hooks stays a nil interface unless webhooks are enabled; a typed nil
	// *webhook.Sender would defeat the manager's nil check.
	var hooks core.EventPublisher
	if cfg.Webhooks.Enabled {
		sender := webhook.NewSender(webhook.Config{
			RetryCount:  cfg.Webhooks.RetryCount,
			RetryDelay:  cfg.Webhooks.RetryDelay,
			Timeout:     cfg.Webhooks.Timeout,
			WorkerCount: cfg.Webhooks.WorkerCount,
		})
		sender.Start()
		defer sender.Stop()
		hooks = sender
	}

	manager := core.NewManager(db.Jobs, db.Shops, store, hub, hooks)

	sweeper := core.NewSweeper(manager, cfg.Retention.SweepInterval, cfg.Retention.MaxAge)
	sweeper.Start()
	defer sweeper.Stop()

	auth, err := middleware.NewAuthMiddleware()
	if err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}

	builder := archive.NewBuilder(db.Jobs, store)

	router := gin.Default()

	router.GET("/health", handlers.HealthHandler)
	router.GET("/ws", handlers.WSHandler(hub))

	api := router.Group("/api")
	auth.RegisterRoutes(api)

	requireAuth := auth.RequireAuth()
	handlers.NewJobHandler(manager, builder).RegisterRoutes(api, requireAuth)
	handlers.NewShopHandler(manager).RegisterRoutes(api, requireAuth)
	handlers.NewWebhookHandler().RegisterRoutes(api, requireAuth)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
