package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"notify-service/internal/api/routes"
	"notify-service/internal/auth"
	"notify-service/internal/config"
	"notify-service/internal/dispatch"
	"notify-service/internal/events"
	"notify-service/internal/presence"
	"notify-service/internal/registry"
	"notify-service/internal/ws"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting notification server")

	// Presence mirror is optional; without Redis the registry alone
	// answers who is connected to this process.
	var tracker presence.Tracker = presence.Noop{}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, presence mirror degraded", "error", err)
		}
		cancel()

		tracker = presence.NewRedisTracker(client)
	}

	reg := registry.New()
	verifier := auth.NewJWTVerifier(cfg.JWT.Secret)
	dispatcher := dispatch.New(reg, logger)
	wsHandler := ws.NewHandler(verifier, reg, tracker, cfg.Handshake.Timeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Business events arrive on Kafka and fan out to connected clients.
	consumerDone := make(chan struct{})
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.GroupID != "" {
		reader := events.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
		consumer := events.NewConsumer(reader, dispatcher, logger)

		go func() {
			defer close(consumerDone)
			defer consumer.Close()

			if err := consumer.Run(ctx); err != nil {
				logger.Error("notification consumer stopped", "error", err)
			}
		}()
	} else {
		close(consumerDone)
		logger.Info("kafka consumer disabled")
	}

	router := routes.NewRouter(wsHandler, dispatcher, reg, verifier, cfg.Server.AllowedOrigins, logger)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shut down", "error", err)
	}

	reg.CloseAll()
	<-consumerDone

	logger.Info("server stopped")
}
