package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Yunichie/Play-This-Next/internal/app"
	"github.com/Yunichie/Play-This-Next/internal/config"
	"github.com/Yunichie/Play-This-Next/internal/logger"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", map[string]any{
			"error": err.Error(),
		})
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", map[string]any{
			"error": err.Error(),
		})
	}

	go func() {
		if err := application.Run(); err != nil {
			logger.Error("http server stopped", map[string]any{
				"error": err.Error(),
			})
			stop()
		}
	}()

	logger.Info("play-this-next started", map[string]any{
		"port": cfg.AppPort,
	})

	<-ctx.Done()

	logger.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("graceful shutdown failed", map[string]any{
			"error": err.Error(),
		})
	}

	logger.Info("play-this-next stopped cleanly", nil)
}
