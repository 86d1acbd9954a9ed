// Package app implements application-level services for the storefront API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	storefront "github.com/eugener/storefront/internal"
	"github.com/eugener/storefront/internal/storage"
	"github.com/eugener/storefront/internal/telemetry"
)

// Listing prefixes removed from the response cache after catalog writes.
// Detail paths share the prefix, so they go too.
const (
	ProductsPrefix   = "/api/products"
	CategoriesPrefix = "/api/categories"
)

// Invalidator drops cached responses whose key contains substr.
type Invalidator interface {
	Invalidate(ctx context.Context, substr string) int
}

// ProductInput holds the writable fields of a product.
type ProductInput struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	CategoryID  string `json:"category_id"`
	Stock       int    `json:"stock"`
	Featured    bool   `json:"featured"`
}

// CategoryInput holds the writable fields of a category.
type CategoryInput struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CatalogService applies catalog reads and writes and keeps the response
// cache consistent with them.
type CatalogService struct {
	store   storage.Store
	cache   Invalidator
	metrics *telemetry.Metrics
	now     func() time.Time
}

// NewCatalogService returns a CatalogService. cache and metrics may be nil.
func NewCatalogService(store storage.Store, cache Invalidator, metrics *telemetry.Metrics) *CatalogService {
	return &CatalogService{store: store, cache: cache, metrics: metrics, now: time.Now}
}

// --- Products ---

// ListProducts returns one page of products and the total matching count.
func (s *CatalogService) ListProducts(ctx context.Context, f storefront.ProductFilter) ([]*storefront.Product, int, error) {
	products, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountProducts(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetProduct looks a product up by ID, then by slug.
func (s *CatalogService) GetProduct(ctx context.Context, idOrSlug string) (*storefront.Product, error) {
	p, err := s.store.GetProduct(ctx, idOrSlug)
	if errors.Is(err, storefront.ErrNotFound) {
		return s.store.GetProductBySlug(ctx, idOrSlug)
	}
	return p, err
}

// CreateProduct validates in and stores a new product.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*storefront.Product, error) {
	if err := s.validateProduct(ctx, &in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &storefront.Product{
		ID:        uuid.Must(uuid.NewV7()).String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(p)
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.wrote(ctx, "product", "create", ProductsPrefix)
	return p, nil
}

// UpdateProduct replaces the writable fields of an existing product.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*storefront.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateProduct(ctx, &in); err != nil {
		return nil, err
	}
	in.apply(p)
	p.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.wrote(ctx, "product", "update", ProductsPrefix)
	return p, nil
}

// DeleteProduct removes a product.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.wrote(ctx, "product", "delete", ProductsPrefix)
	return nil
}

// AdjustStock adds delta to a product's stock and returns the new level.
func (s *CatalogService) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	if delta == 0 {
		return 0, fmt.Errorf("%w: delta must be non-zero", storefront.ErrBadRequest)
	}
	stock, err := s.store.AdjustStock(ctx, id, delta)
	if err != nil {
		return 0, err
	}
	s.wrote(ctx, "product", "stock", ProductsPrefix)
	return stock, nil
}

func (s *CatalogService) validateProduct(ctx context.Context, in *ProductInput) error {
	in.Slug = strings.TrimSpace(in.Slug)
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Slug == "" || in.Name == "":
		return fmt.Errorf("%w: slug and name are required", storefront.ErrBadRequest)
	case in.PriceCents < 0:
		return fmt.Errorf("%w: price_cents must not be negative", storefront.ErrBadRequest)
	case in.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", storefront.ErrBadRequest)
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if in.CategoryID != "" {
		if _, err := s.store.GetCategory(ctx, in.CategoryID); err != nil {
			if errors.Is(err, storefront.ErrNotFound) {
				return fmt.Errorf("%w: unknown category %q", storefront.ErrBadRequest, in.CategoryID)
			}
			return err
		}
	}
	return nil
}

func (in ProductInput) apply(p *storefront.Product) {
	p.Slug = in.Slug
	p.Name = in.Name
	p.Description = in.Description
	p.PriceCents = in.PriceCents
	p.Currency = in.Currency
	p.CategoryID = in.CategoryID
	p.Stock = in.Stock
	p.Featured = in.Featured
}

// --- Categories ---

// ListCategories returns all categories.
func (s *CatalogService) ListCategories(ctx context.Context) ([]*storefront.Category, error) {
	return s.store.ListCategories(ctx)
}

// GetCategory looks a category up by ID, then by slug.
func (s *CatalogService) GetCategory(ctx context.Context, idOrSlug string) (*storefront.Category, error) {
	c, err := s.store.GetCategory(ctx, idOrSlug)
	if errors.Is(err, storefront.ErrNotFound) {
		return s.store.GetCategoryBySlug(ctx, idOrSlug)
	}
	return c, err
}

// CreateCategory validates in and stores a new category.
func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*storefront.Category, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := &storefront.Category{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Slug:        in.Slug,
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	s.wrote(ctx, "category", "create", CategoriesPrefix)
	return c, nil
}

// UpdateCategory replaces the writable fields of an existing category.
func (s *CatalogService) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*storefront.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	c.Slug, c.Name, c.Description = in.Slug, in.Name, in.Description
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	s.wrote(ctx, "category", "update", CategoriesPrefix, ProductsPrefix)
	return c, nil
}

// DeleteCategory removes a category; its products become uncategorized.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.wrote(ctx, "category", "delete", CategoriesPrefix, ProductsPrefix)
	return nil
}

func (in *CategoryInput) validate() error {
	in.Slug = strings.TrimSpace(in.Slug)
	in.Name = strings.TrimSpace(in.Name)
	if in.Slug == "" || in.Name == "" {
		return fmt.Errorf("%w: slug and name are required", storefront.ErrBadRequest)
	}
	return nil
}

// wrote records a successful mutation and drops the cached views it affects.
func (s *CatalogService) wrote(ctx context.Context, entity, op string, prefixes ...string) {
	if s.metrics != nil {
		s.metrics.CatalogWrites.WithLabelValues(entity, op).Inc()
	}
	if s.cache == nil {
		return
	}
	removed := 0
	for _, p := range prefixes {
		removed += s.cache.Invalidate(ctx, p)
	}
	slog.LogAttrs(ctx, slog.LevelDebug, "catalog write",
		slog.String("entity", entity),
		slog.String("op", op),
		slog.Int("invalidated", removed),
	)
}
