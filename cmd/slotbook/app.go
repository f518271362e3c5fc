package main

import (
	"fmt"

	"slotbook/internal/booking"
	"slotbook/internal/cache"
	"slotbook/internal/capacity"
	"slotbook/internal/catalog"
	"slotbook/internal/clock"
	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/hours"
	"slotbook/internal/metrics"
	"slotbook/internal/schedule"
	"slotbook/internal/slots"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	db        *database.DB
	redis     *redis.Client
	directory *catalog.Directory
	metrics   *metrics.Metrics
	cache     *cache.SlotCache
	schedule  *schedule.Service
	booking   *booking.Service
}

func newApp(cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer) (*app, error) {
	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		directory: catalog.NewDirectory(cfg.Location(), &logger),
		metrics:   metrics.NewMetrics("slotbook", reg),
	}

	if cfg.Redis.Address != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	a.cache = cache.NewSlotCache(a.redis, cfg.CacheTTL(), a.metrics, &logger)

	clk := clock.Real{}
	calendar := hours.NewCalendar(db, clk, &logger)
	validator := slots.NewValidator(slots.Limits{
		MaxBatchSize:    cfg.Booking.BatchLimit(),
		MaxDateSpanDays: cfg.Booking.DateSpanLimit(),
	}, clk)
	generator := slots.NewGenerator(calendar, db, validator, &logger)

	a.schedule = schedule.NewService(db, calendar, generator, a.directory, a.cache, cfg.Booking.Capacity(), &logger)
	a.schedule.SetObserver(a.metrics)

	tracker := capacity.NewTracker(cfg.Booking.ClaimMaxRetries, a.metrics, &logger)
	a.booking = booking.NewService(db, a.directory, tracker, booking.Policy{
		CancellationLead:         cfg.Booking.CancellationLead(),
		ModificationLead:         cfg.Booking.ModificationLead(),
		AllowCompleteFromPending: cfg.Booking.CompleteFromPending(),
	}, clk, &logger)
	a.booking.SetObserver(a.metrics)
	a.booking.SetInvalidator(a.cache)

	return a, nil
}

// loadCatalog reads catalog.yaml once into the directory.
func (a *app) loadCatalog() error {
	cat, err := config.LoadCatalog(a.cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	a.directory.Reload(cat)
	return nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error().Err(err).Msg("close db")
	}
}
