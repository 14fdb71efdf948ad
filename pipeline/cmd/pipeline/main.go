package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	natsio "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pixelbridge/pixelbridge/common/config"
	"github.com/pixelbridge/pixelbridge/common/logging"
	"github.com/pixelbridge/pixelbridge/common/messaging"
	"github.com/pixelbridge/pixelbridge/common/messaging/nats"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/dedup"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/platform"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/receipt"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)
	log.Info("Starting pipeline service", logging.Service("pipeline"))

	connString := cfg.Database.Postgres.ConnString()

	// Run database migrations
	log.Info("Running database migrations")
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Error("Failed to initialize migrations", logging.Error(err))
		os.Exit(1)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error("Failed to run migrations", logging.Error(err))
		os.Exit(1)
	}
	log.Info("Database migrations completed")

	// Receipt repository doubles as the durable dedup fallback.
	repo, err := receipt.NewPostgresRepository(context.Background(), connString)
	if err != nil {
		log.Error("Failed to connect to PostgreSQL", logging.Error(err))
		os.Exit(1)
	}
	defer repo.Close()

	// Redis is the fast dedup store and the live notification channel.
	var fast *dedup.RedisStore
	if cfg.Redis.Enabled {
		fast, err = dedup.NewRedisStoreFromURL(cfg.Redis.URL)
		if err != nil {
			log.Error("Failed to connect to Redis", logging.Error(err))
			os.Exit(1)
		}
		defer fast.Close()
	} else {
		log.Warn("Redis disabled, dedup runs on the durable store only")
	}

	guard := dedup.NewGuard(storeOrNil(fast), repo, dedup.Options{
		TTL:            cfg.Pipeline.Dedup.TTL,
		TTLByEventType: cfg.Pipeline.Dedup.TTLByEventType,
		ClaimTimeout:   cfg.Pipeline.Dedup.ClaimTimeout,
		Policy:         dedup.Policy{OnStoreError: cfg.Pipeline.Dedup.OnStoreError},
	}, log)

	var bus messaging.Publisher
	var natsClient *nats.Client
	if cfg.NATS.Enabled {
		natsClient, err = nats.NewClient(nats.Config{
			URL:           cfg.NATS.URL,
			Name:          "pixelbridge-pipeline",
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
			Timeout:       5 * time.Second,
		})
		if err != nil {
			log.Error("Failed to connect to NATS", logging.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()
		bus = natsClient
	} else {
		log.Warn("NATS disabled, delivery dispatch is a no-op")
	}

	mapper := platform.NewMapper(log)
	if path := cfg.Pipeline.Platforms.CatalogPath; path != "" {
		if err := mapper.LoadOverrides(path); err != nil {
			log.Error("Failed to load platform catalog overrides", logging.Error(err))
			os.Exit(1)
		}
		log.Info("Loaded platform catalog overrides", slog.String("path", path))
	}

	svc := service.New(service.Options{
		Config:   cfg.Pipeline,
		Guard:    guard,
		Store:    repo,
		Mapper:   mapper,
		Bus:      bus,
		Notifier: notifierOrNil(fast),
		Logger:   log,
	})

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Consume raw events from the ingestion edge.
	var sub *natsio.Subscription
	if natsClient != nil {
		sub, err = natsClient.QueueSubscribe(messaging.SubjectEventsRaw, messaging.QueuePipelineWorkers, func(data []byte) {
			if _, err := svc.HandleMessage(rootCtx, data); err != nil {
				log.Warn("Dropped raw event", logging.Error(err))
			}
		})
		if err != nil {
			log.Error("Failed to subscribe to raw events", logging.Error(err))
			os.Exit(1)
		}
		log.Info("Consuming raw events", slog.String("subject", messaging.SubjectEventsRaw))
	}

	// Periodically sweep expired dedup claims out of PostgreSQL.
	go sweepClaims(rootCtx, repo, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Pipeline service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logging.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	rootCancel()

	if sub != nil {
		if err := sub.Drain(); err != nil {
			log.Warn("Failed to drain subscription", logging.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logging.Error(err))
		os.Exit(1)
	}

	log.Info("Stopped gracefully")
}

// storeOrNil keeps a typed nil from masquerading as a live FastStore.
func storeOrNil(s *dedup.RedisStore) dedup.FastStore {
	if s == nil {
		return nil
	}
	return s
}

// notifierOrNil does the same for the Notifier interface.
func notifierOrNil(s *dedup.RedisStore) service.Notifier {
	if s == nil {
		return nil
	}
	return s
}

// sweepClaims deletes expired dedup claims every hour so the claims
// table stays bounded.
func sweepClaims(ctx context.Context, repo *receipt.PostgresRepository, log *logging.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			deleted, err := repo.DeleteExpiredClaims(sweepCtx)
			cancel()
			if err != nil {
				log.Warn("Claim sweep failed", logging.Error(err))
				continue
			}
			if deleted > 0 {
				log.Info("Swept expired dedup claims", slog.Int64("deleted", deleted))
			}
		}
	}
}
