// Package main содержит точку входа CLI stockpicks.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/entitlement-session/internal/app/stockpicks"
	"github.com/magabrotheeeer/entitlement-session/internal/config"
	"github.com/magabrotheeeer/entitlement-session/internal/lib/logger"
	"github.com/magabrotheeeer/entitlement-session/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := logger.Setup(cfg.Env, os.Stderr)

	log.Debug("starting stockpicks", slog.String("env", cfg.Env), slog.String("api", cfg.BaseURL))
	log.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := stockpicks.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize stockpicks", sl.Err(err))
		os.Exit(1)
	}

	runErr := app.Run(ctx, os.Args[1:])
	if err := app.Close(); err != nil {
		log.Error("failed to close stockpicks", sl.Err(err))
	}

	switch {
	case runErr == nil:
	case errors.Is(runErr, stockpicks.ErrSessionExpired):
		os.Exit(3)
	case errors.Is(runErr, stockpicks.ErrUsage):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "error:", runErr)
		os.Exit(1)
	}
}
