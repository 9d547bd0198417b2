package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slotlink/api/internal/http/handlers"
	apimw "github.com/slotlink/api/internal/http/middleware"
	"github.com/slotlink/api/internal/repo/postgres"
	"github.com/slotlink/api/internal/service"
	"github.com/slotlink/api/internal/telegram"
	"github.com/slotlink/api/pkg/config"
	"github.com/slotlink/api/pkg/database"
	"github.com/slotlink/api/pkg/events"
	"github.com/slotlink/api/pkg/logger"
	"github.com/slotlink/api/pkg/session"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	bot, err := telegram.NewBot(cfg.Telegram)
	if err != nil {
		logger.Error("Failed to create bot client", "error", err)
		os.Exit(1)
	}
	messenger := telegram.NewMessenger(bot)

	// Repositories
	userRepo := postgres.NewUserRepository(pool)
	handshakeRepo := postgres.NewHandshakeRepository(pool)
	bookingRepo := postgres.NewBookingRepository(pool)

	// Services
	sessions := session.NewManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	userService := service.NewUserService(userRepo)
	loginService := service.NewLoginService(handshakeRepo, userService, messenger, sessions, eventBus, cfg)
	bookingService := service.NewBookingService(bookingRepo, handshakeRepo, userRepo, userService, messenger, eventBus, cfg)

	// HTTP surface
	webhook := telegram.NewWebhook(loginService, bookingService, messenger, cfg.Telegram.WebhookSecret)
	limiter := apimw.NewRateLimiter(redisClient, apimw.RateLimitConfig{
		Requests: 20,
		Window:   time.Minute,
	})
	h := handlers.New(loginService, bookingService, userService, sessions, cfg)
	router := handlers.Routes(h, sessions, limiter, webhook, cfg.App.CORSOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting API", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
