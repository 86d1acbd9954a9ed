package config

import (
	"context"
	"strings"
	"testing"

	storefront "github.com/eugener/storefront/internal"
	"github.com/eugener/storefront/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	path := t.TempDir() + "/test.db"
	s, err := sqlite.New(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBootstrap(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	cfg := &Config{
		Seed: SeedConfig{
			Categories: []CategoryEntry{
				{Slug: "kitchen", Name: "Kitchen"},
			},
			Products: []ProductEntry{
				{Slug: "mug", Name: "Coffee Mug", PriceCents: 1200, Category: "kitchen", Stock: 10, Featured: true},
				{Slug: "lamp", Name: "Desk Lamp", PriceCents: 4500, Currency: "EUR"},
			},
		},
	}

	// First call seeds everything.
	if err := Bootstrap(ctx, cfg, store); err != nil {
		t.Fatal("bootstrap:", err)
	}

	cat, err := store.GetCategoryBySlug(ctx, "kitchen")
	if err != nil {
		t.Fatal("get category:", err)
	}

	mug, err := store.GetProductBySlug(ctx, "mug")
	if err != nil {
		t.Fatal("get product:", err)
	}
	if mug.CategoryID != cat.ID {
		t.Errorf("mug category = %q, want %q", mug.CategoryID, cat.ID)
	}
	if mug.Currency != "USD" {
		t.Errorf("mug currency = %q, want USD default", mug.Currency)
	}
	if mug.Stock != 10 || !mug.Featured {
		t.Errorf("mug = %+v", mug)
	}

	lamp, _ := store.GetProductBySlug(ctx, "lamp")
	if lamp.CategoryID != "" || lamp.Currency != "EUR" {
		t.Errorf("lamp = %+v", lamp)
	}

	// Second call is idempotent -- no errors, no duplicates.
	if err := Bootstrap(ctx, cfg, store); err != nil {
		t.Fatal("idempotent bootstrap:", err)
	}

	n, err := store.CountProducts(ctx, storefront.ProductFilter{})
	if err != nil {
		t.Fatal("count products:", err)
	}
	if n != 2 {
		t.Errorf("product count after second bootstrap = %d, want 2", n)
	}

	cats, err := store.ListCategories(ctx)
	if err != nil {
		t.Fatal("list categories:", err)
	}
	if len(cats) != 1 {
		t.Errorf("category count after second bootstrap = %d, want 1", len(cats))
	}
}

func TestBootstrapUnknownCategory(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	cfg := &Config{
		Seed: SeedConfig{
			Products: []ProductEntry{{Slug: "mug", Name: "Mug", Category: "nope"}},
		},
	}

	err := Bootstrap(context.Background(), cfg, store)
	if err == nil || !strings.Contains(err.Error(), `unknown category "nope"`) {
		t.Fatalf("err = %v, want unknown category", err)
	}
}

func TestGenerateAdminKey(t *testing.T) {
	t.Parallel()
	a, b := GenerateAdminKey(), GenerateAdminKey()
	if !strings.HasPrefix(a, storefront.APIKeyPrefix) {
		t.Errorf("key %q missing prefix", a)
	}
	if a == b {
		t.Error("generated keys should differ")
	}
}
