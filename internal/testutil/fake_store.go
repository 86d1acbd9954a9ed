package testutil

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	storefront "github.com/eugener/storefront/internal"
)

// FakeStore is an in-memory implementation of storage.Store for testing.
type FakeStore struct {
	mu         sync.RWMutex
	products   map[string]*storefront.Product
	categories map[string]*storefront.Category

	// AdjustErr, when set, is returned by AdjustStock for that product ID.
	AdjustErr map[string]error
	// PingErr is returned by Ping.
	PingErr error
}

// NewFakeStore returns a FakeStore with empty collections.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		products:   make(map[string]*storefront.Product),
		categories: make(map[string]*storefront.Category),
		AdjustErr:  make(map[string]error),
	}
}

// AddProduct inserts a product into the fake store.
func (s *FakeStore) AddProduct(p *storefront.Product) {
	s.mu.Lock()
	cp := *p
	s.products[p.ID] = &cp
	s.mu.Unlock()
}

// AddCategory inserts a category into the fake store.
func (s *FakeStore) AddCategory(c *storefront.Category) {
	s.mu.Lock()
	cp := *c
	s.categories[c.ID] = &cp
	s.mu.Unlock()
}

// --- ProductStore ---

// CreateProduct stores a product, rejecting duplicate slugs.
func (s *FakeStore) CreateProduct(_ context.Context, p *storefront.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.products {
		if e.Slug == p.Slug {
			return fmt.Errorf("product: %w", storefront.ErrConflict)
		}
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

// GetProduct looks up a product by ID.
func (s *FakeStore) GetProduct(_ context.Context, id string) (*storefront.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, storefront.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// GetProductBySlug looks up a product by slug.
func (s *FakeStore) GetProductBySlug(_ context.Context, slug string) (*storefront.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, storefront.ErrNotFound
}

// ListProducts returns matching products ordered by name.
func (s *FakeStore) ListProducts(_ context.Context, f storefront.ProductFilter) ([]*storefront.Product, error) {
	matched := s.match(f)
	if f.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// CountProducts returns the number of matching products.
func (s *FakeStore) CountProducts(_ context.Context, f storefront.ProductFilter) (int, error) {
	return len(s.match(f)), nil
}

func (s *FakeStore) match(f storefront.ProductFilter) []*storefront.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storefront.Product
	for _, p := range s.products {
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.Featured != nil && p.Featured != *f.Featured {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *storefront.Product) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// UpdateProduct replaces a stored product.
func (s *FakeStore) UpdateProduct(_ context.Context, p *storefront.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return storefront.ErrNotFound
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

// DeleteProduct removes a product by ID.
func (s *FakeStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return storefront.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// AdjustStock applies delta unless the result would be negative.
func (s *FakeStore) AdjustStock(_ context.Context, id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.AdjustErr[id]; err != nil {
		return 0, err
	}
	p, ok := s.products[id]
	if !ok {
		return 0, storefront.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return 0, storefront.ErrOutOfStock
	}
	p.Stock += delta
	return p.Stock, nil
}

// --- CategoryStore ---

// CreateCategory stores a category, rejecting duplicate slugs.
func (s *FakeStore) CreateCategory(_ context.Context, c *storefront.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.categories {
		if e.Slug == c.Slug {
			return fmt.Errorf("category: %w", storefront.ErrConflict)
		}
	}
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

// GetCategory looks up a category by ID.
func (s *FakeStore) GetCategory(_ context.Context, id string) (*storefront.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, storefront.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// GetCategoryBySlug looks up a category by slug.
func (s *FakeStore) GetCategoryBySlug(_ context.Context, slug string) (*storefront.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, storefront.ErrNotFound
}

// ListCategories returns all categories ordered by name.
func (s *FakeStore) ListCategories(context.Context) ([]*storefront.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*storefront.Category, 0, len(s.categories))
	for _, c := range s.categories {
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *storefront.Category) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// UpdateCategory replaces a stored category.
func (s *FakeStore) UpdateCategory(_ context.Context, c *storefront.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; !ok {
		return storefront.ErrNotFound
	}
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

// DeleteCategory removes a category and detaches its products.
func (s *FakeStore) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return storefront.ErrNotFound
	}
	delete(s.categories, id)
	for _, p := range s.products {
		if p.CategoryID == id {
			p.CategoryID = ""
		}
	}
	return nil
}

// Ping returns PingErr.
func (s *FakeStore) Ping(context.Context) error { return s.PingErr }

// Close is a no-op.
func (s *FakeStore) Close() error { return nil }
