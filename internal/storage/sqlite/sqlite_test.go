package sqlite

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	storefront "github.com/eugener/storefront/internal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	// Use a unique file-based temp DB for each test to avoid shared :memory: races
	path := t.TempDir() + "/test.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedCategory(t *testing.T, s *Store, id, slug, name string) *storefront.Category {
	t.Helper()
	c := &storefront.Category{ID: id, Slug: slug, Name: name, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	if err := s.CreateCategory(context.Background(), c); err != nil {
		t.Fatal("create category:", err)
	}
	return c
}

func seedProduct(t *testing.T, s *Store, p storefront.Product) *storefront.Product {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if err := s.CreateProduct(context.Background(), &p); err != nil {
		t.Fatal("create product:", err)
	}
	return &p
}

func TestProductRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedCategory(t, s, "cat-1", "shoes", "Shoes")
	p := seedProduct(t, s, storefront.Product{
		ID: "prod-1", Slug: "trail-runner", Name: "Trail Runner",
		PriceCents: 12900, CategoryID: "cat-1", Stock: 5, Featured: true,
	})

	got, err := s.GetProduct(ctx, "prod-1")
	if err != nil {
		t.Fatal("get:", err)
	}
	if got.Slug != p.Slug || got.PriceCents != 12900 || got.CategoryID != "cat-1" {
		t.Errorf("got %+v", got)
	}
	if !got.Featured {
		t.Error("featured should be true")
	}
	if !got.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, p.CreatedAt)
	}

	bySlug, err := s.GetProductBySlug(ctx, "trail-runner")
	if err != nil {
		t.Fatal("get by slug:", err)
	}
	if bySlug.ID != "prod-1" {
		t.Errorf("id = %q, want prod-1", bySlug.ID)
	}

	// Update
	p.Name = "Trail Runner 2"
	p.Featured = false
	if err := s.UpdateProduct(ctx, p); err != nil {
		t.Fatal("update:", err)
	}
	got, _ = s.GetProduct(ctx, "prod-1")
	if got.Name != "Trail Runner 2" || got.Featured {
		t.Errorf("after update got %+v", got)
	}

	// Delete
	if err := s.DeleteProduct(ctx, "prod-1"); err != nil {
		t.Fatal("delete:", err)
	}
	if _, err := s.GetProduct(ctx, "prod-1"); !errors.Is(err, storefront.ErrNotFound) {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteProduct(ctx, "prod-1"); !errors.Is(err, storefront.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestProductSlugConflict(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	seedProduct(t, s, storefront.Product{ID: "p1", Slug: "mug", Name: "Mug"})
	err := s.CreateProduct(context.Background(), &storefront.Product{ID: "p2", Slug: "mug", Name: "Other Mug", Currency: "USD"})
	if !errors.Is(err, storefront.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestListProductsFilter(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedCategory(t, s, "cat-1", "kitchen", "Kitchen")
	seedProduct(t, s, storefront.Product{ID: "p1", Slug: "mug", Name: "Coffee Mug", CategoryID: "cat-1", Featured: true})
	seedProduct(t, s, storefront.Product{ID: "p2", Slug: "kettle", Name: "Kettle", CategoryID: "cat-1"})
	seedProduct(t, s, storefront.Product{ID: "p3", Slug: "lamp", Name: "Desk Lamp"})
	seedProduct(t, s, storefront.Product{ID: "p4", Slug: "pct", Name: "100% Cotton Tee"})

	yes := true
	tests := []struct {
		name   string
		filter storefront.ProductFilter
		want   []string
	}{
		{"all", storefront.ProductFilter{Limit: 10}, []string{"p4", "p1", "p3", "p2"}},
		{"category", storefront.ProductFilter{CategoryID: "cat-1", Limit: 10}, []string{"p1", "p2"}},
		{"featured", storefront.ProductFilter{Featured: &yes, Limit: 10}, []string{"p1"}},
		{"search case-insensitive", storefront.ProductFilter{Search: "MUG", Limit: 10}, []string{"p1"}},
		{"search literal percent", storefront.ProductFilter{Search: "0%", Limit: 10}, []string{"p4"}},
		{"page", storefront.ProductFilter{Offset: 1, Limit: 2}, []string{"p1", "p3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := s.ListProducts(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			ids := make([]string, len(got))
			for i, p := range got {
				ids[i] = p.ID
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("ids = %v, want %v", ids, tt.want)
				}
			}
		})
	}

	n, err := s.CountProducts(ctx, storefront.ProductFilter{CategoryID: "cat-1", Offset: 1, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2 (offset and limit ignored)", n)
	}
}

func TestAdjustStock(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedProduct(t, s, storefront.Product{ID: "p1", Slug: "mug", Name: "Mug", Stock: 3})

	got, err := s.AdjustStock(ctx, "p1", -2)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("stock = %d, want 1", got)
	}

	if _, err := s.AdjustStock(ctx, "p1", -2); !errors.Is(err, storefront.ErrOutOfStock) {
		t.Errorf("oversell err = %v, want ErrOutOfStock", err)
	}
	p, _ := s.GetProduct(ctx, "p1")
	if p.Stock != 1 {
		t.Errorf("stock after failed decrement = %d, want 1", p.Stock)
	}

	if got, _ := s.AdjustStock(ctx, "p1", 10); got != 11 {
		t.Errorf("restock = %d, want 11", got)
	}
	if _, err := s.AdjustStock(ctx, "missing", 1); !errors.Is(err, storefront.ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
}

func TestAdjustStockConcurrent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedProduct(t, s, storefront.Product{ID: "p1", Slug: "mug", Name: "Mug", Stock: 5})

	var wg sync.WaitGroup
	var sold atomic.Int32
	for range 20 {
		wg.Go(func() {
			if _, err := s.AdjustStock(ctx, "p1", -1); err == nil {
				sold.Add(1)
			}
		})
	}
	wg.Wait()

	if sold.Load() != 5 {
		t.Errorf("sold = %d, want 5", sold.Load())
	}
	p, _ := s.GetProduct(ctx, "p1")
	if p.Stock != 0 {
		t.Errorf("stock = %d, want 0", p.Stock)
	}
}

func TestCategoryRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	c := seedCategory(t, s, "cat-1", "shoes", "Shoes")
	seedCategory(t, s, "cat-2", "bags", "Bags")

	bySlug, err := s.GetCategoryBySlug(ctx, "shoes")
	if err != nil {
		t.Fatal("get by slug:", err)
	}
	if bySlug.ID != "cat-1" {
		t.Errorf("id = %q, want cat-1", bySlug.ID)
	}

	cats, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatal("list:", err)
	}
	if len(cats) != 2 || cats[0].Slug != "bags" {
		t.Fatalf("list = %+v, want bags first", cats)
	}

	c.Name = "Footwear"
	if err := s.UpdateCategory(ctx, c); err != nil {
		t.Fatal("update:", err)
	}
	got, _ := s.GetCategory(ctx, "cat-1")
	if got.Name != "Footwear" {
		t.Errorf("name = %q, want Footwear", got.Name)
	}

	if err := s.CreateCategory(ctx, &storefront.Category{ID: "cat-3", Slug: "bags", Name: "Dup"}); !errors.Is(err, storefront.ErrConflict) {
		t.Errorf("duplicate slug err = %v, want ErrConflict", err)
	}
}

func TestDeleteCategoryOrphansProducts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedCategory(t, s, "cat-1", "shoes", "Shoes")
	seedProduct(t, s, storefront.Product{ID: "p1", Slug: "boot", Name: "Boot", CategoryID: "cat-1"})

	if err := s.DeleteCategory(ctx, "cat-1"); err != nil {
		t.Fatal("delete:", err)
	}
	p, err := s.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.CategoryID != "" {
		t.Errorf("category_id = %q, want empty after category delete", p.CategoryID)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}
