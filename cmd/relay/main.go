package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"heartline/internal/clock"
	"heartline/internal/config"
	"heartline/internal/directory"
	"heartline/internal/domain"
	"heartline/internal/logging"
	"heartline/internal/mailbox"
	"heartline/internal/relay"
)

// mailboxRetention bounds how long undelivered envelopes wait in Redis.
const mailboxRetention = 7 * 24 * time.Hour

func main() {
	var (
		configPath     string
		codesPerMinute int
	)
	root := &cobra.Command{
		Use:          "relay",
		Short:        "Run the heartline pairing directory and mailbox relay",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logging.New(cfg.LogLevel)
			if err := run(cfg, codesPerMinute, logger); err != nil {
				logger.Error("relay failed", "error", err)
				return err
			}
			logger.Info("relay exited cleanly")
			return nil
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "config file (.toml, .yaml or .json)")
	root.Flags().IntVar(&codesPerMinute, "code-rate", 30, "code requests per minute per client IP (0 disables)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config, codesPerMinute int, logger *slog.Logger) error {
	ctx := context.Background()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		client, err := directory.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		rdb = client
	}

	var dir domain.Directory = directory.NewMemory(clock.Real())
	dirKind := "memory"
	if rdb != nil {
		dir = directory.NewRedis(rdb)
		dirKind = "redis"
	}

	var mbox domain.Channel
	switch cfg.MailboxBackend {
	case config.MailboxRedis:
		mbox = mailbox.NewRedis(rdb, mailboxRetention)
	case config.MailboxPostgres:
		pool, err := mailbox.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		pg, err := mailbox.NewPostgres(ctx, pool)
		if err != nil {
			return fmt.Errorf("prepare postgres mailbox: %w", err)
		}
		mbox = pg
	default:
		mbox = mailbox.NewMemory()
	}

	srv := relay.NewServer(relay.ServerConfig{
		Addr:                  cfg.ListenAddr,
		CodeRequestsPerMinute: codesPerMinute,
	}, dir, mbox, logger)

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()
	logger.Info("relay listening",
		"addr", cfg.ListenAddr,
		"directory", dirKind,
		"mailbox", cfg.MailboxBackend,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return errors.New("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
