package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nextvisit/practice-availability/cmd/mainconfig"
	"github.com/nextvisit/practice-availability/internal/api/router"
	appconfig "github.com/nextvisit/practice-availability/internal/config"
	"github.com/nextvisit/practice-availability/internal/directory"
	"github.com/nextvisit/practice-availability/internal/geo"
	"github.com/nextvisit/practice-availability/internal/inbound"
	"github.com/nextvisit/practice-availability/internal/observability/metrics"
	"github.com/nextvisit/practice-availability/internal/scheduler"
	"github.com/nextvisit/practice-availability/internal/search"
	"github.com/nextvisit/practice-availability/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting practice availability API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	repo := setupRepository(pool, logger)
	if pool != nil {
		defer pool.Close()
	}

	geocoder := setupGeocoder(cfg, logger)
	sender := mainconfig.NewEmailSender(ctx, cfg, logger)

	metricsHandler, m := setupMetrics()

	weights := search.Weights{Availability: cfg.AvailabilityWeight, Distance: cfg.DistanceWeight}
	searchSvc := search.NewService(repo, geocoder, search.NewPipeline(cfg.MaxRadiusMiles), weights, logger)

	notifier := scheduler.NewWeeklyNotifier(repo, sender, m, logger).
		WithInterval(cfg.NotifyInterval).
		WithCooldown(cfg.NotifyCooldown).
		WithReplyTo(cfg.ReplyToEmail)
	go notifier.Start(ctx)

	r := router.New(&router.Config{
		Logger:             logger,
		DirectoryHandler:   directory.NewHandler(repo, geocoder, logger),
		SearchHandler:      search.NewHandler(searchSvc, m, logger),
		InboundHandler:     inbound.NewHandler(repo, nil, m, logger),
		Notifier:           notifier,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AdminAuthSecret:    cfg.AdminAuthSecret,
		WebhookRatePerSec:  cfg.WebhookRatePerSec,
		WebhookBurst:       cfg.WebhookBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func setupMetrics() (http.Handler, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

// connectPostgresPool returns nil when no DATABASE_URL is configured so the
// service can run against the in-memory store in development.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("creating postgres pool", "error", err)
		os.Exit(1)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("pinging postgres", "error", err)
		os.Exit(1)
	}
	return pool
}

func setupRepository(pool *pgxpool.Pool, logger *logging.Logger) directory.Repository {
	if pool != nil {
		return directory.NewPostgresRepository(pool)
	}
	repo := directory.NewInMemoryRepository()
	seedDefaultSpecialties(repo)
	logger.Info("seeded in-memory store with default specialties")
	return repo
}

// seedDefaultSpecialties mirrors the seed migration for database-less runs.
func seedDefaultSpecialties(repo *directory.InMemoryRepository) {
	repo.SeedSpecialties(
		directory.Specialty{Code: "family-medicine", Name: "Family Medicine"},
		directory.Specialty{Code: "internal-medicine", Name: "Internal Medicine"},
		directory.Specialty{Code: "pediatrics", Name: "Pediatrics"},
		directory.Specialty{Code: "cardiology", Name: "Cardiology"},
		directory.Specialty{Code: "dermatology", Name: "Dermatology"},
		directory.Specialty{Code: "orthopedics", Name: "Orthopedics"},
		directory.Specialty{Code: "neurology", Name: "Neurology"},
		directory.Specialty{Code: "ob-gyn", Name: "Obstetrics and Gynecology"},
		directory.Specialty{Code: "psychiatry", Name: "Psychiatry"},
		directory.Specialty{Code: "ophthalmology", Name: "Ophthalmology"},
	)
}

func setupGeocoder(cfg *appconfig.Config, logger *logging.Logger) geo.Geocoder {
	base := geo.NewHTTPGeocoder(cfg.GeocoderBaseURL, cfg.GeocoderAPIKey, nil, logger)
	if cfg.RedisAddr == "" {
		return base
	}

	opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	logger.Info("geocode caching enabled", "redis_addr", cfg.RedisAddr, "ttl", cfg.GeocodeCacheTTL.String())
	return geo.NewCachedGeocoder(base, client, cfg.GeocodeCacheTTL, logger)
}

