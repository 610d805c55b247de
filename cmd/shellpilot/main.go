package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/user/shellpilot/internal/api"
	"github.com/user/shellpilot/internal/config"
	"github.com/user/shellpilot/internal/hub"
	"github.com/user/shellpilot/internal/planner"
	"github.com/user/shellpilot/internal/pty"
	"github.com/user/shellpilot/internal/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	h := hub.New(cfg.Token, cfg.Shell)
	registry := pty.NewRegistry(h)
	h.SetControl(registry)

	var loop *planner.Loop
	if cfg.Planner.APIKey != "" {
		pl := planner.New(planner.Options{
			APIKey:  cfg.Planner.APIKey,
			Model:   cfg.Planner.Model,
			BaseURL: cfg.Planner.BaseURL,
		})
		loop = planner.NewLoop(pl, registry, nil)
		slog.Info("planning service configured", "model", cfg.Planner.Model)
	} else {
		slog.Info("planning service not configured, /api/plan disabled")
	}

	srv := server.New(cfg, h, api.NewRouter(registry, loop, cfg.Token))

	if cfg.PrintToken {
		fmt.Printf("\nshellpilot running at http://%s:%d?token=%s\n\n", cfg.Host, cfg.Port, cfg.Token)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = srv.Start(ctx)

	// Best-effort teardown of every child shell before exiting.
	registry.CleanupAll()

	if err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
