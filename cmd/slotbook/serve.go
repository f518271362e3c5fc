package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/events"
	"slotbook/internal/notify"
	"slotbook/internal/sweep"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run background jobs, event delivery and the health and metrics endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(parent context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(cfg, logger, reg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := config.WatchCatalog(ctx, cfg.Catalog.Path, cfg.CatalogReloadInterval(), a.metrics, &logger, a.directory.Reload); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	bus := events.NewBus(cfg.Notifications.Telegram.Queue(), a.metrics, &logger)

	tg := cfg.Notifications.Telegram
	if tg.Enabled {
		bot, err := tgbotapi.NewBotAPI(tg.BotToken)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
		notifier := notify.NewNotifier(bot, a.directory, tg.Rate(), notify.DefaultRetryConfig(), a.metrics, &logger)
		bus.SubscribeAll(notifier.Handle)
	}
	a.booking.SetPublisher(bus)
	go bus.Run(ctx)

	if cfg.Sweep.Enabled {
		completer := sweep.NewCompleter(a.booking, cfg.Sweep.Interval(), cfg.Sweep.Limit(), a.metrics, &logger)
		go completer.Start(ctx)
		defer completer.Stop()
	}

	if cfg.Backup.Enabled {
		backups := database.NewBackupService(a.db, cfg.Backup, &logger)
		go backups.Start(ctx)
	}

	healthPort := cfg.Monitoring.HealthCheckPort
	if healthPort == 0 {
		healthPort = 8090
	}
	go startHealthServer(ctx, healthPort, a, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		port := cfg.Monitoring.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go startMetricsServer(ctx, port, reg, &logger)
	}

	logger.Info().Int("health_port", healthPort).Msg("slotbook started")
	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return nil
}

func startHealthServer(ctx context.Context, port int, a *app, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := a.db.HealthCheck(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if err := a.cache.Ping(ctxPing); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	runServer(ctx, &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, reg *prometheus.Registry, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	runServer(ctx, &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}, "metrics", logger)
}

func runServer(ctx context.Context, srv *http.Server, name string, logger *zerolog.Logger) {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
