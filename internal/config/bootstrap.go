// Package config provides configuration loading and database bootstrapping.
package config

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	storefront "github.com/eugener/storefront/internal"
	"github.com/eugener/storefront/internal/storage"
)

// Bootstrap seeds the catalog from the config file on first run.
// Rows whose slug already exists are left untouched.
func Bootstrap(ctx context.Context, cfg *Config, store storage.Store) error {
	now := time.Now().UTC()

	for _, c := range cfg.Seed.Categories {
		if existing, _ := store.GetCategoryBySlug(ctx, c.Slug); existing != nil {
			continue
		}
		cat := &storefront.Category{
			ID:          uuid.Must(uuid.NewV7()).String(),
			Slug:        c.Slug,
			Name:        c.Name,
			Description: c.Description,
			CreatedAt:   now,
		}
		if err := store.CreateCategory(ctx, cat); err != nil {
			return fmt.Errorf("seed category %q: %w", c.Slug, err)
		}
		slog.Info("bootstrapped category", "slug", c.Slug)
	}

	for _, p := range cfg.Seed.Products {
		if existing, _ := store.GetProductBySlug(ctx, p.Slug); existing != nil {
			continue
		}
		var categoryID string
		if p.Category != "" {
			cat, err := store.GetCategoryBySlug(ctx, p.Category)
			if errors.Is(err, storefront.ErrNotFound) {
				return fmt.Errorf("seed product %q: unknown category %q", p.Slug, p.Category)
			}
			if err != nil {
				return err
			}
			categoryID = cat.ID
		}
		currency := p.Currency
		if currency == "" {
			currency = "USD"
		}
		prod := &storefront.Product{
			ID:          uuid.Must(uuid.NewV7()).String(),
			Slug:        p.Slug,
			Name:        p.Name,
			Description: p.Description,
			PriceCents:  p.PriceCents,
			Currency:    currency,
			CategoryID:  categoryID,
			Stock:       p.Stock,
			Featured:    p.Featured,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := store.CreateProduct(ctx, prod); err != nil {
			return fmt.Errorf("seed product %q: %w", p.Slug, err)
		}
		slog.Info("bootstrapped product", "slug", p.Slug, "category", p.Category)
	}

	return nil
}

// GenerateAdminKey creates a random admin key and returns the plaintext.
func GenerateAdminKey() string {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	return storefront.APIKeyPrefix + base64.RawURLEncoding.EncodeToString(raw)
}
