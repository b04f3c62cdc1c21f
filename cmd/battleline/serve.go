package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/battlelinehq/battleline/internal/game"
	"github.com/battlelinehq/battleline/internal/server"
	"github.com/battlelinehq/battleline/internal/session"
	"github.com/battlelinehq/battleline/internal/store"
	"github.com/battlelinehq/battleline/internal/view"
)

// ServeCmd runs the game server until interrupted.
type ServeCmd struct {
	Config string `kong:"default='battleline.hcl',help='Path to the HCL configuration file'"`
	Memory bool   `kong:"help='Keep the session archive in memory instead of SQLite'"`
	Seed   *int64 `kong:"help='Deterministic RNG seed for dealing (optional)'"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := log.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info("using deterministic seed", "seed", seed)
	}
	rng := rand.New(rand.NewSource(seed))
	var rngMu sync.Mutex

	var archive store.Store
	if c.Memory || cfg.Store.Path == "" {
		logger.Info("using in-memory session archive")
		archive = store.NewMemory()
	} else {
		sq, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open session archive: %w", err)
		}
		logger.Info("opened session archive", "path", cfg.Store.Path)
		archive = sq
	}
	defer func() { _ = archive.Close() }()

	renderer, err := view.New()
	if err != nil {
		return fmt.Errorf("failed to build renderer: %w", err)
	}

	registry, err := session.NewRegistry(session.Config{
		Store:    archive,
		Document: renderer.Document,
		NewState: func() *game.State {
			rngMu.Lock()
			defer rngMu.Unlock()
			return game.New(rng)
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build session registry: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := server.NewOrchestrator(server.OrchestratorConfig{
		Registry:  registry,
		BaseCtx:   ctx,
		Delay:     cfg.BotThinkDelay(),
		QueueSize: cfg.Game.EventQueueSize,
		Logger:    logger,
	})

	srv := server.NewServer(ctx, cfg, registry, orch, renderer, logger)
	logger.Info("starting battleline server",
		"addr", cfg.ListenAddress(),
		"bot_think_delay", cfg.BotThinkDelay(),
		"event_queue_size", cfg.Game.EventQueueSize,
	)
	return srv.Run(ctx)
}
