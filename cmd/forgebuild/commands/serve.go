package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/forgebuild/internal/config"
	"git.home.luguber.info/inful/forgebuild/internal/scheduler"
	"git.home.luguber.info/inful/forgebuild/internal/server"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr      string `help:"Listen address (overrides server.addr)"`
	NoWatch   bool   `name:"no-watch" help:"Do not reload error signatures when the config file changes"`
	NoRebuild bool   `name:"no-rebuild" help:"Disable the periodic rebuild schedule"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if s.Addr != "" {
		cfg.Server.Addr = s.Addr
	}
	if s.NoRebuild {
		cfg.Schedule.RebuildInterval = 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunServe(ctx, cfg, root.Config, !s.NoWatch)
}

// RunServe serves the API until ctx is cancelled, then shuts down gracefully.
func RunServe(ctx context.Context, cfg *config.Config, configPath string, watch bool) error {
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			slog.Warn("Failed to close database", "error", cerr)
		}
	}()

	if watch {
		classifier := a.orchestrator.Classifier()
		watcher, werr := config.NewWatcher(configPath, func(next *config.Config) {
			classifier.SetSignatures(next.Build.Signatures)
			slog.Info("Error signatures reloaded", "count", len(classifier.Signatures()))
		})
		if werr != nil {
			slog.Warn("Config watcher unavailable", "error", werr)
		} else if werr = watcher.Start(ctx); werr != nil {
			slog.Warn("Config watcher failed to start", "error", werr)
			_ = watcher.Stop()
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	if cfg.Schedule.RebuildInterval > 0 {
		sched, serr := scheduler.NewScheduler(a.orchestrator)
		if serr != nil {
			return serr
		}
		if _, serr = sched.SchedulePeriodicRebuild(ctx, cfg.Schedule.RebuildInterval); serr != nil {
			return serr
		}
		sched.Start()
		defer func() {
			if stopErr := sched.Stop(); stopErr != nil {
				slog.Warn("Scheduler shutdown error", "error", stopErr)
			}
		}()
	}

	srv := server.New(cfg.Server.Addr, server.Deps{
		Projects: a.db.Projects(),
		History:  a.db.Records(),
		Builds:   a.orchestrator,
		DB:       a.db,
		Registry: a.registry,
		Recorder: a.recorder,
	})
	if err := srv.Start(ctx); err != nil {
		return err
	}
	slog.Info("forgebuild serving", "addr", srv.Addr(), "workspace", cfg.WorkspaceDir())

	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping server...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
