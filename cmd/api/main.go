package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"myplaces/internal/api"
	"myplaces/internal/buildinfo"
	"myplaces/internal/config"
	"myplaces/internal/logging"
	"myplaces/internal/metrics"
	"myplaces/internal/provider"
	"myplaces/internal/session"
	"myplaces/internal/store"
	"myplaces/internal/webhooks"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting", zap.String("version", buildinfo.Version), zap.String("commit", buildinfo.Commit))
	metrics.RegisterDefault()

	base, err := store.Open(ctx, cfg.Store.DSN, cfg.Store.MongoDB)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = base.Close() }()
	st := store.WithEvents(base)
	startWebhooks(ctx, cfg.Webhooks, st, log)

	providers, err := provider.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("providers: %w", err)
	}
	defer func() { _ = providers.Close() }()

	var broker api.EventBroker = api.NewBroker()
	if cfg.Redis.URL != "" {
		rb, err := api.NewRedisBroker(ctx, cfg.Redis.URL, log)
		if err != nil {
			log.Warn("redis broker unavailable, using in-memory broker", zap.Error(err))
		} else {
			defer func() { _ = rb.Close() }()
			broker = rb
		}
	}

	sessions := session.NewRegistry(session.Options{
		Geocoder:          providers.Geocoder,
		Router:            providers.Router,
		Publisher:         broker,
		Logger:            log,
		RegionMeters:      cfg.Map.RegionMeters,
		RecenterThreshold: cfg.Map.RecenterThreshold,
		AlertDelay:        cfg.Map.AlertDelay,
		RecenterDelay:     cfg.Map.RecenterDelay,
	})
	defer sessions.CloseAll()
	go reap(ctx, sessions, cfg.Map.SessionIdle, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(st, sessions, broker, cfg, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("API listening", zap.String("addr", cfg.Server.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// streams end when their sessions close
	sessions.CloseAll()
	return srv.Shutdown(shutdownCtx)
}

// reap closes idle sessions until ctx ends.
func reap(ctx context.Context, sessions *session.Registry, idle time.Duration, log *zap.Logger) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Reap(idle); n > 0 {
				log.Info("reaped idle map sessions", zap.Int("count", n))
			}
		}
	}
}

// startWebhooks delivers place changes to the configured targets until ctx
// ends. It does nothing without targets.
func startWebhooks(ctx context.Context, cfg config.WebhookConfig, st *store.Notifying, log *zap.Logger) {
	if len(cfg.Targets) == 0 {
		return
	}
	targets := make([]webhooks.Target, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		targets = append(targets, webhooks.Target{URL: t.URL, Secret: t.Secret})
	}
	w := webhooks.NewWorker(cfg.MaxAttempts, log.Named("webhooks"))
	go w.Run(ctx)
	go webhooks.NewPublisher(targets, w, log).Watch(ctx, st)
	log.Info("webhooks enabled", zap.Int("targets", len(targets)))
}
