package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"supportdesk/backend/internal/api/handler"
	"supportdesk/backend/internal/auth"
	"supportdesk/backend/internal/chathub"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/limiter"
	"supportdesk/backend/internal/notify"
	"supportdesk/backend/internal/presence"
	"supportdesk/backend/internal/session"
	"supportdesk/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupStorage(cfg config.AppConfig) storage.Storage {
	if cfg.StorageDriver == "memory" {
		log.Println("WARNING: Using in-memory storage; sessions are lost on restart")
		return storage.NewMemoryStore()
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}
	s := storage.NewStorageService(db)
	if err := s.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database connection established, migrations complete.")
	return s
}

func setupRedis(ctx context.Context, cfg config.AppConfig) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}
	return rdb
}

func main() {
	log.Println("Starting support desk backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Dependencies
	rdb := setupRedis(ctx, cfg)
	store := setupStorage(cfg)

	var registry *presence.Registry[chathub.Client]
	var rateLimiter handler.RateLimiter
	if rdb != nil {
		mirror := storage.NewPresenceMirror(rdb)
		if err := mirror.Reset(ctx); err != nil {
			log.Printf("WARNING: Failed to clear stale presence: %v", err)
		}
		go mirror.Run(ctx)
		registry = presence.NewRegistry[chathub.Client](mirror)

		rateLimiter = limiter.NewManager(rdb, limiter.StrategyByName(cfg.LimitStrategy), "send_message", cfg.MessageLimit, cfg.MessageWindow)
	} else {
		log.Println("WARNING: REDIS_ADDR not set; presence mirror and rate limiting disabled")
		registry = presence.NewRegistry[chathub.Client](nil)
	}

	var sinks []notify.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("Failed to connect Kafka: %v", err)
		}
		defer kafka.Close()
		sinks = append(sinks, kafka)
	}

	// 2. Session manager, realtime hub and the dispatcher between them
	sessions := session.NewService(store, nil)
	hub := chathub.NewManagerService(registry, sessions)
	dispatcher := notify.NewDispatcher(hub, sinks...)
	sessions.Notifier = dispatcher
	go dispatcher.Run(ctx)

	go hub.Run(ctx)

	// 3. Gin and routes
	r := gin.Default()
	h := handler.NewHandler(hub, sessions, auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer), rateLimiter, cfg)
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()
	log.Printf("Listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Graceful shutdown failed: %v", err)
	}
	if rdb != nil {
		rdb.Close()
	}
}
