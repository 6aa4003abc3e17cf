package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fiduciaire/internal/database"
	"fiduciaire/internal/mailer"
	"fiduciaire/pkg/config"
	"fiduciaire/pkg/logger"
)

// Drains the redis mail outbox filled by the server.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	appLogger := logger.Component("mailer")

	q := database.GetRedisQueue()
	if q == nil {
		appLogger.Fatal("REDIS_ENABLED is false: there is no outbox to drain")
	}
	defer database.CloseRedisQueue()
	if err := database.PingRedis(3 * time.Second); err != nil {
		appLogger.Fatalf("Redis unreachable: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := mailer.LogSender{From: cfg.Mail.From, Log: appLogger}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		appLogger.Info("Shutting down mailer...")
		cancel()
	}()

	mailer.New(q, sender, cfg.Mail.PollTimeout, appLogger).Run(ctx)
}
