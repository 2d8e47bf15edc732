package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"AppStatus/internal/agent/domain"
	"AppStatus/internal/config"
	"AppStatus/internal/shared/constants"
	"AppStatus/pkg/logger"
)

var wg = sync.WaitGroup{}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Загрузка конфигурации
	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("failed to load config %s", err)
	}

	// Настройка логирования
	log := logger.Setup(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	log.Info("Starting application status reporter",
		slog.String("name", cfg.App.Name),
		slog.String("version", cfg.App.Version),
	)

	initCtx, cancelInit := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	container, err := NewContainer(initCtx, cfg, log)
	cancelInit()
	if err != nil {
		log.Error("Failed to create dependency container", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, container, loader); err != nil {
		log.Error("Failed to start", "error", err)
		cancel()
	}

	<-ctx.Done()
	stop(container)
}

func run(ctx context.Context, c *Container, loader *config.Loader) error {
	if err := c.Manager.Start(); err != nil {
		return err
	}

	events := make(chan domain.Event, 64)

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Manager.Consume(ctx, events)
	}()

	if c.Feed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Feed.Run(ctx, events); err != nil {
				c.Logger.Error("Event feed stopped", "error", err)
			}
		}()
	}

	if c.Server != nil {
		go func() {
			if err := c.Server.Start(); err != nil {
				c.Logger.Error("Server failed to start", "error", err)
			}
		}()
	}

	if loader.Watch(c.ApplyConfig) {
		c.Logger.Info("Watching config file for changes")
	}

	c.Logger.Info("Application status reporter initialized")
	return nil
}

func stop(c *Container) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if c.Server != nil {
		if err := c.Server.Shutdown(ctx); err != nil {
			c.Logger.Error("Server shutdown failed", "error", err)
		}
	}

	if err := c.Close(); err != nil {
		c.Logger.Error("Failed to close dependencies", "error", err)
	}

	wg.Wait()
	c.Logger.Info("Application status reporter stopped")
}
