package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/auth"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/config"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/httpapi"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/messaging"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/metrics"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/ratelimit"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/session"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/store"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/ws"
)

func main() {
	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL is required")
	}

	// --- Postgres ---
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	if err := store.Migrate(db, cfg.MigrationsURL); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	st := store.NewPostgres(db)

	// --- Redis (optional: sessions + rate limiting) ---
	var sessions *session.Store
	var limiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		sessions, err = session.NewStore(cfg.RedisAddr, cfg.TokenTTL)
		if err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		limiter = ratelimit.NewLimiter(sessions.Client())
	}

	// --- NATS (optional: outbound event tap) ---
	var events *messaging.Publisher
	if cfg.NatsURL != "" {
		natsConfig := messaging.DefaultConfig()
		natsConfig.URL = cfg.NatsURL
		events, err = messaging.NewPublisher(natsConfig)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
	}

	authSvc := auth.NewService(cfg.JWTSecret, cfg.TokenTTL, sessions)

	registry := ws.NewRegistry()
	broadcaster := ws.NewBroadcaster(registry, st)
	presence := ws.NewPresence(registry, st, broadcaster, events)
	router := ws.NewRouter(st, broadcaster, limiter, events)
	server := ws.NewServer(ws.Config{
		WriteTimeout:   cfg.WriteTimeout,
		MaxConnections: cfg.MaxConnections,
	}, authSvc, registry, presence, router, limiter)

	engine := gin.New()
	engine.Use(gin.Recovery())
	httpapi.New(st, authSvc, registry).Register(engine)
	engine.GET("/ws", gin.WrapF(server.HandleUpgrade))
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Printf("chat server starting")
	log.Printf("  listen_addr:     %s", cfg.ListenAddr)
	log.Printf("  max_connections: %d", cfg.MaxConnections)
	log.Printf("  write_timeout:   %s", cfg.WriteTimeout)
	log.Printf("  redis_addr:      %s", orDisabled(cfg.RedisAddr))
	log.Printf("  nats_url:        %s", orDisabled(cfg.NatsURL))

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine,
	}

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("http shutdown error: %v", err)
		}
		server.Shutdown()
		events.Close()
		if sessions != nil {
			if err := sessions.Close(); err != nil {
				log.Printf("session store close error: %v", err)
			}
		}
		if err := db.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func orDisabled(v string) string {
	if v == "" {
		return "(disabled)"
	}
	return v
}
