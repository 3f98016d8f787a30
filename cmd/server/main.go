package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/heartlands/internal/catalog"
	"github.com/playperu/heartlands/internal/config"
	"github.com/playperu/heartlands/internal/database"
	"github.com/playperu/heartlands/internal/engine"
	"github.com/playperu/heartlands/internal/handler/health"
	"github.com/playperu/heartlands/internal/heading"
	"github.com/playperu/heartlands/internal/migrations"
	"github.com/playperu/heartlands/internal/progress"
	"github.com/playperu/heartlands/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	scale, err := cfg.Scale()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	store := progress.NewSQLiteStore(db)
	playerID, created, err := progress.EnsureIdentity(ctx, store)
	if err != nil {
		return err
	}
	logger.Info("player identity", "player_id", playerID, "created", created)

	// --- Catalogue ---
	holder, err := catalog.NewHolder(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading catalogue: %w", err)
	}
	source := cfg.CatalogPath
	if source == "" {
		source = "embedded"
	}
	logger.Info("catalogue loaded", "source", source, "quests", len(holder.Current().Quests()))

	// --- HTTP Server ---
	app := &server.App{
		Engine:  engine.New(progress.NewLedger(store), playerID, engine.WithScale(scale)),
		Catalog: holder,
		Tracker: engine.NewTracker(cfg.MaxSpeedMPS),
		Heading: heading.NewFilter(heading.Options{
			MinInterval:        cfg.HeadingMinInterval,
			RequireCalibration: cfg.HeadingRequireCalibration,
		}),
		Checks: map[string]health.Checker{
			"sqlite": health.CheckFunc(store.Ping),
			"catalog": health.CheckFunc(func(context.Context) error {
				if len(holder.Current().Quests()) == 0 {
					return errors.New("catalogue has no quests")
				}
				return nil
			}),
		},
		Admin: server.AdminCredentials{
			User:         cfg.AdminUser,
			PasswordHash: cfg.AdminPasswordHash,
		},
		ClientDir: cfg.ClientDir,
	}
	if !app.Admin.Enabled() {
		logger.Info("admin routes disabled", "reason", "ADMIN_PASSWORD_HASH not set")
	}
	srv := server.New(cfg.HTTPAddr, logger, app)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr, "spawn_scale", cfg.SpawnScale)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
