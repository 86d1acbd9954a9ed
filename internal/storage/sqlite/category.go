package sqlite

import (
	"context"

	storefront "github.com/eugener/storefront/internal"
)

// CreateCategory inserts a new category.
func (s *Store) CreateCategory(ctx context.Context, c *storefront.Category) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO categories (id, slug, name, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Slug, c.Name, c.Description, formatTime(c.CreatedAt),
	)
	return conflictErr(err, "category")
}

// GetCategory retrieves a category by ID.
func (s *Store) GetCategory(ctx context.Context, id string) (*storefront.Category, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, slug, name, description, created_at FROM categories WHERE id=?`, id,
	)
	return scanCategory(row)
}

// GetCategoryBySlug retrieves a category by slug.
func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (*storefront.Category, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, slug, name, description, created_at FROM categories WHERE slug=?`, slug,
	)
	return scanCategory(row)
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]*storefront.Category, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, slug, name, description, created_at FROM categories ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []*storefront.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// UpdateCategory updates an existing category.
func (s *Store) UpdateCategory(ctx context.Context, c *storefront.Category) error {
	result, err := s.write.ExecContext(ctx,
		`UPDATE categories SET slug=?, name=?, description=? WHERE id=?`,
		c.Slug, c.Name, c.Description, c.ID,
	)
	if err != nil {
		return conflictErr(err, "category")
	}
	return checkRowsAffected(result, "category")
}

// DeleteCategory removes a category. Products in it become uncategorized.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	result, err := s.write.ExecContext(ctx, `DELETE FROM categories WHERE id=?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, "category")
}

func scanCategory(s scanner) (*storefront.Category, error) {
	var c storefront.Category
	var created string
	if err := s.Scan(&c.ID, &c.Slug, &c.Name, &c.Description, &created); err != nil {
		return nil, notFoundErr(err)
	}
	c.CreatedAt = parseTime(created)
	return &c, nil
}
