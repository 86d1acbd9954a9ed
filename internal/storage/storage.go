// Package storage defines persistence interfaces for the catalog.
package storage

import (
	"context"

	storefront "github.com/eugener/storefront/internal"
)

// ProductStore manages product persistence.
type ProductStore interface {
	CreateProduct(ctx context.Context, p *storefront.Product) error
	GetProduct(ctx context.Context, id string) (*storefront.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*storefront.Product, error)
	ListProducts(ctx context.Context, f storefront.ProductFilter) ([]*storefront.Product, error)
	CountProducts(ctx context.Context, f storefront.ProductFilter) (int, error)
	UpdateProduct(ctx context.Context, p *storefront.Product) error
	DeleteProduct(ctx context.Context, id string) error
	// AdjustStock adds delta to a product's stock in one conditional update
	// and returns the new level. It fails with ErrOutOfStock instead of
	// going negative.
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
}

// CategoryStore manages category persistence.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c *storefront.Category) error
	GetCategory(ctx context.Context, id string) (*storefront.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*storefront.Category, error)
	ListCategories(ctx context.Context) ([]*storefront.Category, error)
	UpdateCategory(ctx context.Context, c *storefront.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

// Store combines all storage interfaces.
type Store interface {
	ProductStore
	CategoryStore
	Ping(ctx context.Context) error
	Close() error
}
