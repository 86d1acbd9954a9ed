package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	storefront "github.com/eugener/storefront/internal"
)

// mergeItems sums quantities per product, keeping first-seen order.
func mergeItems(items []storefront.StockItem) ([]storefront.StockItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", storefront.ErrBadRequest)
	}
	idx := make(map[string]int, len(items))
	var out []storefront.StockItem
	for _, it := range items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: each item needs a product_id and a positive quantity", storefront.ErrBadRequest)
		}
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

// ValidateStock checks that every product exists and has enough stock for
// the requested quantities. Repeated product IDs are summed. The returned
// error joins one failure per short product.
func (s *CatalogService) ValidateStock(ctx context.Context, items []storefront.StockItem) error {
	merged, err := mergeItems(items)
	if err != nil {
		return err
	}
	var errs []error
	for _, it := range merged {
		p, err := s.store.GetProduct(ctx, it.ProductID)
		if err != nil {
			if !errors.Is(err, storefront.ErrNotFound) {
				return err
			}
			errs = append(errs, fmt.Errorf("product %s: %w", it.ProductID, err))
			continue
		}
		if p.Stock < it.Quantity {
			errs = append(errs, fmt.Errorf("%s: requested %d, available %d: %w",
				p.Name, it.Quantity, p.Stock, storefront.ErrOutOfStock))
		}
	}
	return errors.Join(errs...)
}

// DecrementStock removes the requested quantities from stock. Each
// decrement is a conditional update, so a concurrent sale cannot push stock
// negative. If any decrement fails, the ones already applied are restored.
func (s *CatalogService) DecrementStock(ctx context.Context, items []storefront.StockItem) error {
	merged, err := mergeItems(items)
	if err != nil {
		return err
	}
	if err := s.ValidateStock(ctx, merged); err != nil {
		return err
	}

	applied := make([]storefront.StockItem, 0, len(merged))
	for _, it := range merged {
		if _, err := s.store.AdjustStock(ctx, it.ProductID, -it.Quantity); err != nil {
			s.restock(ctx, applied)
			return err
		}
		applied = append(applied, it)
	}
	s.wrote(ctx, "product", "stock", ProductsPrefix)
	return nil
}

func (s *CatalogService) restock(ctx context.Context, items []storefront.StockItem) {
	ctx = context.WithoutCancel(ctx)
	for _, it := range items {
		if _, err := s.store.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
			slog.LogAttrs(ctx, slog.LevelError, "restock failed",
				slog.String("product_id", it.ProductID),
				slog.Int("quantity", it.Quantity),
				slog.String("error", err.Error()),
			)
		}
	}
}
