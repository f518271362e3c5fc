package config

import (
	"context"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// Catalog reload results.
const (
	ReloadApplied   = "applied"
	ReloadUnchanged = "unchanged"
	ReloadRejected  = "rejected"
)

// ReloadObserver records the result of each catalog reload.
type ReloadObserver interface {
	ObserveCatalogReload(result string)
}

// CatalogChange lists the business and menu ids a reload added, removed or modified.
type CatalogChange struct {
	AddedBusinesses   []int64
	RemovedBusinesses []int64
	ChangedBusinesses []int64
	AddedMenus        []int64
	RemovedMenus      []int64
	ChangedMenus      []int64
}

// Empty reports whether the two catalogs were equivalent.
func (c CatalogChange) Empty() bool {
	return len(c.AddedBusinesses)+len(c.RemovedBusinesses)+len(c.ChangedBusinesses)+
		len(c.AddedMenus)+len(c.RemovedMenus)+len(c.ChangedMenus) == 0
}

// DiffCatalog compares two catalogs by id. Ids in every list are sorted.
// A business counts as changed when anything but its menus differs.
func DiffCatalog(prev, next *CatalogConfig) CatalogChange {
	oldBiz, oldMenus := indexCatalog(prev)
	newBiz, newMenus := indexCatalog(next)

	var ch CatalogChange
	for id, b := range newBiz {
		old, ok := oldBiz[id]
		switch {
		case !ok:
			ch.AddedBusinesses = append(ch.AddedBusinesses, id)
		case !sameBusiness(old, b):
			ch.ChangedBusinesses = append(ch.ChangedBusinesses, id)
		}
	}
	for id := range oldBiz {
		if _, ok := newBiz[id]; !ok {
			ch.RemovedBusinesses = append(ch.RemovedBusinesses, id)
		}
	}
	for id, m := range newMenus {
		old, ok := oldMenus[id]
		switch {
		case !ok:
			ch.AddedMenus = append(ch.AddedMenus, id)
		case old != m:
			ch.ChangedMenus = append(ch.ChangedMenus, id)
		}
	}
	for id := range oldMenus {
		if _, ok := newMenus[id]; !ok {
			ch.RemovedMenus = append(ch.RemovedMenus, id)
		}
	}

	for _, ids := range [][]int64{ch.AddedBusinesses, ch.RemovedBusinesses, ch.ChangedBusinesses, ch.AddedMenus, ch.RemovedMenus, ch.ChangedMenus} {
		slices.Sort(ids)
	}
	return ch
}

// menuKey keeps a menu comparable together with its owning business.
type menuKey struct {
	businessID int64
	MenuConfig
}

func indexCatalog(c *CatalogConfig) (map[int64]BusinessConfig, map[int64]menuKey) {
	businesses := make(map[int64]BusinessConfig)
	menus := make(map[int64]menuKey)
	if c == nil {
		return businesses, menus
	}
	for _, b := range c.Businesses {
		businesses[b.ID] = b
		for _, m := range b.Menus {
			menus[m.ID] = menuKey{businessID: b.ID, MenuConfig: m}
		}
	}
	return businesses, menus
}

func sameBusiness(a, b BusinessConfig) bool {
	return a.Name == b.Name &&
		a.Timezone == b.Timezone &&
		a.NotifyChatID == b.NotifyChatID &&
		slices.Equal(a.Members, b.Members)
}

// WatchCatalog loads catalog.yaml, calls onUpdate with it, then polls the file every interval.
// A reload that parses but changes nothing is not passed to onUpdate. An invalid file keeps the
// previous catalog in force. observer may be nil.
func WatchCatalog(ctx context.Context, path string, interval time.Duration, observer ReloadObserver, logger *zerolog.Logger, onUpdate func(*CatalogConfig)) error {
	if path == "" {
		path = "configs/catalog.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	log := logger.With().Str("component", "catalog").Str("path", path).Logger()

	current, err := LoadCatalog(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(current)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	observe := func(result string) {
		if observer != nil {
			observer.ObserveCatalogReload(result)
		}
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			info, err := os.Stat(path)
			if err != nil || info.ModTime().Equal(lastMod) {
				continue
			}
			lastMod = info.ModTime()

			next, err := LoadCatalog(path)
			if err != nil {
				log.Warn().Err(err).Msg("catalog reload rejected, keeping previous version")
				observe(ReloadRejected)
				continue
			}

			change := DiffCatalog(current, next)
			if change.Empty() {
				log.Debug().Msg("catalog file touched without changes")
				observe(ReloadUnchanged)
				continue
			}

			current = next
			log.Info().
				Ints64("businesses_added", change.AddedBusinesses).
				Ints64("businesses_removed", change.RemovedBusinesses).
				Ints64("businesses_changed", change.ChangedBusinesses).
				Ints64("menus_added", change.AddedMenus).
				Ints64("menus_removed", change.RemovedMenus).
				Ints64("menus_changed", change.ChangedMenus).
				Str("catalog", next.String()).
				Msg("catalog reloaded")
			observe(ReloadApplied)
			if onUpdate != nil {
				onUpdate(next)
			}
		}
	}()

	return nil
}
