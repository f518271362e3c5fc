// Package catalog serves businesses and menus loaded from catalog.yaml.
package catalog

import (
	"sync"
	"time"

	"slotbook/internal/apperr"
	"slotbook/internal/config"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
)

// Directory is an in-memory view of the catalog that can be swapped at runtime.
type Directory struct {
	mu         sync.RWMutex
	businesses map[int64]*models.Business
	menus      map[int64]*models.Menu
	fallback   *time.Location
	logger     zerolog.Logger
}

// NewDirectory creates an empty directory. Businesses without a timezone use fallback.
func NewDirectory(fallback *time.Location, logger *zerolog.Logger) *Directory {
	if fallback == nil {
		fallback = time.UTC
	}
	return &Directory{
		businesses: make(map[int64]*models.Business),
		menus:      make(map[int64]*models.Menu),
		fallback:   fallback,
		logger:     logger.With().Str("component", "catalog").Logger(),
	}
}

// Reload replaces the whole directory with cfg.
func (d *Directory) Reload(cfg *config.CatalogConfig) {
	businesses := make(map[int64]*models.Business, len(cfg.Businesses))
	menus := make(map[int64]*models.Menu)

	for _, bc := range cfg.Businesses {
		loc := d.fallback
		if bc.Timezone != "" {
			l, err := time.LoadLocation(bc.Timezone)
			if err != nil {
				d.logger.Warn().Err(err).Int64("business_id", bc.ID).Msg("unknown timezone, using default")
			} else {
				loc = l
			}
		}
		businesses[bc.ID] = &models.Business{
			ID:           bc.ID,
			Name:         bc.Name,
			Location:     loc,
			NotifyChatID: bc.NotifyChatID,
			Members:      append([]int64(nil), bc.Members...),
		}
		for _, mc := range bc.Menus {
			menus[mc.ID] = &models.Menu{
				ID:              mc.ID,
				BusinessID:      bc.ID,
				Name:            mc.Name,
				DurationMinutes: mc.DurationMinutes,
				OrderType:       mc.OrderType,
				PriceCents:      mc.PriceCents,
				DefaultCapacity: mc.DefaultCapacity,
			}
		}
	}

	d.mu.Lock()
	d.businesses = businesses
	d.menus = menus
	d.mu.Unlock()

	d.logger.Info().Int("businesses", len(businesses)).Int("menus", len(menus)).Msg("catalog loaded")
}

// Business returns a copy of the business with id.
func (d *Directory) Business(id int64) (*models.Business, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.businesses[id]
	if !ok {
		return nil, apperr.New(apperr.CodeBusinessNotFound, "business %d does not exist", id)
	}
	cp := *b
	return &cp, nil
}

// Menu returns a copy of the menu with id.
func (d *Directory) Menu(id int64) (*models.Menu, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.menus[id]
	if !ok {
		return nil, apperr.New(apperr.CodeMenuNotFound, "menu %d does not exist", id)
	}
	cp := *m
	return &cp, nil
}
