package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	storefront "github.com/eugener/storefront/internal"
)

const productCols = `id, slug, name, description, price_cents, currency, category_id, stock, featured, created_at, updated_at`

// likeEscaper escapes LIKE wildcards so search terms match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// CreateProduct inserts a new product.
func (s *Store) CreateProduct(ctx context.Context, p *storefront.Product) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO products (`+productCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Slug, p.Name, p.Description, p.PriceCents, p.Currency,
		nullStr(p.CategoryID), p.Stock, boolToInt(p.Featured),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	return conflictErr(err, "product")
}

// GetProduct retrieves a product by ID.
func (s *Store) GetProduct(ctx context.Context, id string) (*storefront.Product, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT `+productCols+` FROM products WHERE id=?`, id,
	)
	return scanProduct(row)
}

// GetProductBySlug retrieves a product by slug.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*storefront.Product, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT `+productCols+` FROM products WHERE slug=?`, slug,
	)
	return scanProduct(row)
}

// ListProducts returns products matching the filter, ordered by name.
func (s *Store) ListProducts(ctx context.Context, f storefront.ProductFilter) ([]*storefront.Product, error) {
	where, args := productWhere(f)
	args = append(args, f.Limit, f.Offset)
	rows, err := s.read.QueryContext(ctx,
		`SELECT `+productCols+` FROM products`+where+` ORDER BY name, id LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*storefront.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CountProducts returns the number of products matching the filter,
// ignoring Offset and Limit.
func (s *Store) CountProducts(ctx context.Context, f storefront.ProductFilter) (int, error) {
	where, args := productWhere(f)
	var n int
	err := s.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&n)
	return n, err
}

// UpdateProduct updates an existing product.
func (s *Store) UpdateProduct(ctx context.Context, p *storefront.Product) error {
	result, err := s.write.ExecContext(ctx,
		`UPDATE products SET slug=?, name=?, description=?, price_cents=?, currency=?,
		 category_id=?, stock=?, featured=?, updated_at=? WHERE id=?`,
		p.Slug, p.Name, p.Description, p.PriceCents, p.Currency,
		nullStr(p.CategoryID), p.Stock, boolToInt(p.Featured), formatTime(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return conflictErr(err, "product")
	}
	return checkRowsAffected(result, "product")
}

// DeleteProduct removes a product.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.write.ExecContext(ctx, `DELETE FROM products WHERE id=?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, "product")
}

// AdjustStock applies delta in a single conditional UPDATE so concurrent
// decrements cannot oversell.
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var stock int
	err := s.write.QueryRowContext(ctx,
		`UPDATE products SET stock = stock + ?, updated_at = ?
		 WHERE id = ? AND stock + ? >= 0
		 RETURNING stock`,
		delta, formatTime(time.Now()), id, delta,
	).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	// No row updated: either the product is missing or stock is short.
	if _, err := s.GetProduct(ctx, id); err != nil {
		return 0, fmt.Errorf("product: %w", err)
	}
	return 0, fmt.Errorf("product %s: %w", id, storefront.ErrOutOfStock)
}

func productWhere(f storefront.ProductFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.CategoryID != "" {
		clauses = append(clauses, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Featured != nil {
		clauses = append(clauses, "featured = ?")
		args = append(args, boolToInt(*f.Featured))
	}
	if f.Search != "" {
		clauses = append(clauses, `name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(f.Search)+"%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanProduct(s scanner) (*storefront.Product, error) {
	var p storefront.Product
	var categoryID sql.NullString
	var featured int
	var created, updated string
	err := s.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.PriceCents, &p.Currency,
		&categoryID, &p.Stock, &featured, &created, &updated)
	if err != nil {
		return nil, notFoundErr(err)
	}
	p.CategoryID = categoryID.String
	p.Featured = featured != 0
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}
