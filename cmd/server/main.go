package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ammar1510/alumni-chat/internal/api"
	"github.com/ammar1510/alumni-chat/internal/auth"
	"github.com/ammar1510/alumni-chat/internal/cache"
	"github.com/ammar1510/alumni-chat/internal/chat"
	"github.com/ammar1510/alumni-chat/internal/config"
	"github.com/ammar1510/alumni-chat/internal/database"
	"github.com/ammar1510/alumni-chat/internal/logger"
	"github.com/ammar1510/alumni-chat/internal/realtime"
)

var logr = logger.New("server")

func main() {
	// Set up logging to file
	logFile, err := os.OpenFile("server.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	// Configure log to write to both file and console
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	auth.InitJWTKey([]byte(cfg.JWTSecret))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connStr := cfg.DatabaseURL
	if cfg.DBType == string(database.Mongo) {
		connStr = cfg.MongoURI
	}
	db, err := database.NewDatabase(ctx, database.DatabaseType(cfg.DBType), connStr, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logr.Info("connected to %s database", cfg.DBType)

	redisClient := connectRedis(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	unread := unreadCache(cfg, redisClient)
	broker := realtimeBroker(ctx, cfg, redisClient)
	defer broker.Close()

	hub := realtime.NewHub(realtime.NewRegistry(), broker)
	hubDone := make(chan struct{})
	hubCtx, stopHub := context.WithCancel(context.Background())
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	svc := chat.NewService(db, unread, hub, chat.WithRateLimiter(messageLimiter(cfg, redisClient)))
	gateway := realtime.NewGateway(svc, hub, realtime.Options{
		TypingTTL:      cfg.TypingTTL,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		WebSocket:      gateway,
		Presence:       hub,
		Health:         db,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logr.Info("server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	// Give the server 5 seconds to finish processing remaining requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown: %v", err)
	}
	stopHub()
	<-hubDone

	logr.Info("server exited properly")
}

// connectRedis returns nil when redis is not configured or not reachable;
// callers fall back to in-process implementations.
func connectRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logr.Warn("redis unavailable, falling back to in-process cache and broker: %v", err)
		return nil
	}
	return client
}

func unreadCache(cfg *config.Config, client *redis.Client) cache.UnreadCounter {
	switch {
	case cfg.UnreadCache == "off":
		return cache.Disabled{}
	case cfg.UnreadCache == "redis" && client != nil:
		return cache.NewRedisUnread(client)
	default:
		return cache.NewMemoryUnread()
	}
}

// messageLimiter meters sends per user, across instances when redis is up.
func messageLimiter(cfg *config.Config, client *redis.Client) cache.RateLimiter {
	if client != nil {
		return cache.NewRedisRateLimiter(client, cfg.MessageRateLimit, time.Minute)
	}
	return cache.NewMemoryRateLimiter(cfg.MessageRateLimit, time.Minute)
}

func realtimeBroker(ctx context.Context, cfg *config.Config, client *redis.Client) realtime.Broker {
	if cfg.RealtimeBroker == "redis" && client != nil {
		broker, err := realtime.NewRedisBroker(ctx, client, realtime.DefaultChannel)
		if err == nil {
			logr.Info("realtime events shared over redis channel %s", realtime.DefaultChannel)
			return broker
		}
		logr.Warn("redis broker unavailable, using local fan-out: %v", err)
	}
	return realtime.NewLocalBroker(0)
}
