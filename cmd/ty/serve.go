package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/testyard/internal/alias"
	"github.com/zulandar/testyard/internal/auth"
	"github.com/zulandar/testyard/internal/bug"
	"github.com/zulandar/testyard/internal/config"
	"github.com/zulandar/testyard/internal/dashboard"
	"github.com/zulandar/testyard/internal/kv"
	"github.com/zulandar/testyard/internal/notify"
	"github.com/zulandar/testyard/internal/notify/discord"
	"github.com/zulandar/testyard/internal/notify/slack"
	"github.com/zulandar/testyard/internal/scheduler"
	"github.com/zulandar/testyard/internal/status"
	"github.com/zulandar/testyard/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Testyard HTTP server",
		Long: `Migrates the database, then serves the JSON API, the status event
stream and /metrics until interrupted. Imports run on a background worker pool
and maintenance jobs run on their cron schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to Testyard config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides listen_addr)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath, addr string) error {
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), nil))

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}
	if err := migrate(cmd, cfg, gormDB); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.StaticDir, 0o755); err != nil {
		return fmt.Errorf("create static dir %s: %w", cfg.StaticDir, err)
	}

	reg := alias.NewRegistry()
	if err := reg.Load(gormDB); err != nil {
		return err
	}
	logger.Info("projects loaded", "count", reg.Len())

	store, err := kv.Open(cfg.KV, logger)
	if err != nil {
		return fmt.Errorf("open kv store: %w", err)
	}
	defer store.Close()

	keys, err := auth.NewKeyMaterial()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	senders, err := buildSenders(cfg.Notify)
	if err != nil {
		return err
	}
	for _, s := range senders {
		logger.Info("notifications enabled", "sender", s.Name())
	}

	bugs := &bug.Store{DB: gormDB, Logger: logger}
	if cfg.GitHub.Enabled() {
		bugs.Tracker = bug.NewGitHubTracker(ctx, cfg.GitHub.Token, cfg.GitHub.Owner, cfg.GitHub.Repo)
		logger.Info("bug issues enabled", "repo", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo)
	}

	sched, err := scheduler.New(logger, scheduler.MaintenanceJobs(cfg.Schedule, gormDB, store, logger)...)
	if err != nil {
		return err
	}
	sched.Start()

	pool := worker.New(cfg.Workers.Size, cfg.Workers.Queue, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	serveErr := dashboard.Start(ctx, dashboard.StartOpts{
		Server: &dashboard.Server{
			DB:       gormDB,
			Projects: reg,
			Auth:     auth.NewService(gormDB, store, keys, cfg.TokenTTL()),
			Board:    status.NewBoard(store, cfg.TokenTTL()),
			Pool:     pool,
			Notifier: notify.New(logger, senders...),
			Bugs:     bugs,
			Logger:   logger,
		},
		Addr: cfg.ListenAddr,
		Out:  cmd.OutOrStdout(),
	})

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Warn("imports still running at shutdown", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("maintenance jobs still running at shutdown", "error", err)
	}
	return serveErr
}

// buildSenders returns a sender per configured chat target.
func buildSenders(cfg config.NotifyConfig) ([]notify.Sender, error) {
	var senders []notify.Sender
	if cfg.SlackToken != "" {
		s, err := slack.New(slack.Opts{BotToken: cfg.SlackToken, ChannelID: cfg.SlackChannel})
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	if cfg.DiscordToken != "" {
		s, err := discord.New(discord.Opts{BotToken: cfg.DiscordToken, ChannelID: cfg.DiscordChannel})
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	return senders, nil
}
