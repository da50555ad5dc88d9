package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/assignment-engine/internal/api/http"
	"github.com/spec-kit/assignment-engine/internal/api/http/handlers"
	"github.com/spec-kit/assignment-engine/internal/app"
	"github.com/spec-kit/assignment-engine/internal/config"
	"github.com/spec-kit/assignment-engine/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build assignment engine", zap.Error(err))
	}
	defer rt.Close()

	server := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(server, logger, rt.Metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(handlers.HealthDependencies{
			ServiceName:    cfg.App.Name,
			Version:        cfg.App.Version,
			Postgres:       rt.Postgres,
			Redis:          rt.Redis,
			AgentDirectory: rt.AgentDirectory,
			Metrics:        rt.Metrics,
		}),
		Assignment: handlers.NewAssignmentHandler(rt.Assignments),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := server.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
