// The notifier binary runs the weekly availability request emails as a
// standalone worker, for deployments that keep it off the API instances.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/nextvisit/practice-availability/cmd/mainconfig"
	appconfig "github.com/nextvisit/practice-availability/internal/config"
	"github.com/nextvisit/practice-availability/internal/directory"
	"github.com/nextvisit/practice-availability/internal/scheduler"
	"github.com/nextvisit/practice-availability/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting weekly notifier worker", "env", cfg.Env)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required for the notifier worker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("creating postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := directory.NewPostgresRepository(pool)
	sender := mainconfig.NewEmailSender(ctx, cfg, logger)

	notifier := scheduler.NewWeeklyNotifier(repo, sender, nil, logger).
		WithInterval(cfg.NotifyInterval).
		WithCooldown(cfg.NotifyCooldown).
		WithReplyTo(cfg.ReplyToEmail)

	done := make(chan struct{})
	go func() {
		notifier.Start(ctx)
		close(done)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down notifier worker...")
	cancel()
	<-done
	logger.Info("notifier worker stopped")
}
