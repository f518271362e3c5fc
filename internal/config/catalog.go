package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BusinessConfig describes one business of catalog.yaml.
type BusinessConfig struct {
	ID           int64        `yaml:"id"`
	Name         string       `yaml:"name"`
	Timezone     string       `yaml:"timezone"`
	NotifyChatID int64        `yaml:"notify_chat_id"`
	Members      []int64      `yaml:"members"`
	Menus        []MenuConfig `yaml:"menus"`
}

// MenuConfig describes a bookable service.
type MenuConfig struct {
	ID              int64  `yaml:"id"`
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	OrderType       string `yaml:"order_type"`
	PriceCents      int64  `yaml:"price_cents"`
	DefaultCapacity int    `yaml:"default_capacity"`
}

// CatalogConfig is the root of catalog.yaml.
type CatalogConfig struct {
	Businesses []BusinessConfig `yaml:"businesses"`
}

// LoadCatalog loads and validates the catalog from a YAML file.
func LoadCatalog(path string) (*CatalogConfig, error) {
	if path == "" {
		path = "configs/catalog.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var cfg CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	return &cfg, nil
}

// Validate checks ids, names, time zones and menu durations.
func (c *CatalogConfig) Validate() error {
	if len(c.Businesses) == 0 {
		return fmt.Errorf("no businesses defined")
	}

	businesses := make(map[int64]bool)
	menus := make(map[int64]bool)

	for i, b := range c.Businesses {
		if b.ID <= 0 {
			return fmt.Errorf("business[%d]: id must be positive, got %d", i, b.ID)
		}
		if businesses[b.ID] {
			return fmt.Errorf("business[%d]: duplicate id %d", i, b.ID)
		}
		businesses[b.ID] = true

		if b.Name == "" {
			return fmt.Errorf("business[%d]: name is required", i)
		}
		if b.Timezone != "" {
			if _, err := time.LoadLocation(b.Timezone); err != nil {
				return fmt.Errorf("business[%d]: invalid timezone '%s'", i, b.Timezone)
			}
		}

		for j, m := range b.Menus {
			prefix := fmt.Sprintf("business[%d].menus[%d]", i, j)
			if m.ID <= 0 {
				return fmt.Errorf("%s: id must be positive, got %d", prefix, m.ID)
			}
			if menus[m.ID] {
				return fmt.Errorf("%s: duplicate id %d", prefix, m.ID)
			}
			menus[m.ID] = true

			if m.DurationMinutes <= 0 || m.DurationMinutes > 24*60 {
				return fmt.Errorf("%s: duration_minutes must be between 1 and 1440", prefix)
			}
			if m.DefaultCapacity < 0 {
				return fmt.Errorf("%s: default_capacity cannot be negative", prefix)
			}
			if m.PriceCents < 0 {
				return fmt.Errorf("%s: price_cents cannot be negative", prefix)
			}
		}
	}

	return nil
}

// String returns a summary of the catalog.
func (c *CatalogConfig) String() string {
	menus := 0
	for _, b := range c.Businesses {
		menus += len(b.Menus)
	}
	return fmt.Sprintf("CatalogConfig: %d businesses, %d menus", len(c.Businesses), menus)
}
