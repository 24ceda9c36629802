// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"coursepress/internal/apperr"
	"coursepress/internal/models"
)

// CategoryRepo manages categories in the database.
type CategoryRepo struct {
	*Repository[models.Category, *models.Category]
}

// NewCategoryRepo returns a new CategoryRepo.
func NewCategoryRepo(db *sql.DB, timeout time.Duration) *CategoryRepo {
	return &CategoryRepo{newRepository[models.Category, *models.Category](db, Schema[models.Category]{
		Kind:        "category",
		Label:       "Category",
		Table:       "categories",
		SourceField: "name",
		Columns:     []string{"name", "description", "image", "parent_id", "sort_order", "is_active"},
		Fields: func(c *models.Category) []any {
			return []any{&c.Name, &c.Description, &c.Image, &c.ParentID, &c.SortOrder, &c.IsActive}
		},
		Values: func(c *models.Category) []any {
			return []any{c.Name, c.Description, c.Image, c.ParentID, c.SortOrder, c.IsActive}
		},
		Visible:     "is_active",
		PublicOrder: "sort_order ASC, name ASC",
		Filter: func(f Filter, add func(any) string) []string {
			var where []string
			if f.Search != "" {
				where = append(where, "name ILIKE "+add(likePattern(f.Search)))
			}
			if f.Active != nil {
				where = append(where, "is_active = "+add(*f.Active))
			}
			return where
		},
		Prepare: func(c *models.Category, _ time.Time) {
			c.Name = strings.TrimSpace(c.Name)
		},
		Validate:     validateCategory,
		BeforeDelete: categoryInUse,
	}, timeout)}
}

// categoryTreeLock is the advisory lock key taken while a category's
// parent is checked.
const categoryTreeLock int64 = 0x636f7572736563

// validateCategory checks that the parent exists, is live, and is not the
// category itself or one of its descendants.
func validateCategory(ctx context.Context, q Querier, c *models.Category) error {
	if c.ParentID == nil {
		return nil
	}
	if *c.ParentID == c.ID {
		return apperr.Invalid("parent_id", "cannot be the category itself")
	}

	var live bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND NOT is_deleted)`,
		*c.ParentID).Scan(&live); err != nil {
		return fmt.Errorf("check parent: %w", err)
	}
	if !live {
		return apperr.Invalid("parent_id", "must reference an existing category")
	}

	if c.ID == uuid.Nil {
		return nil
	}

	// Moves are serialised so two of them cannot each pass the walk below
	// and together close a cycle. The lock is released at commit.
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, categoryTreeLock); err != nil {
		return fmt.Errorf("lock category tree: %w", err)
	}

	// Walk up from the new parent; meeting c means the move closes a cycle.
	var cycle bool
	if err := q.QueryRowContext(ctx, `
		WITH RECURSIVE ancestors AS (
			SELECT id, parent_id FROM categories WHERE id = $1
			UNION
			SELECT p.id, p.parent_id FROM categories p JOIN ancestors a ON p.id = a.parent_id
		)
		SELECT EXISTS (SELECT 1 FROM ancestors WHERE id = $2)
	`, *c.ParentID, c.ID).Scan(&cycle); err != nil {
		return fmt.Errorf("check category cycle: %w", err)
	}
	if cycle {
		return apperr.Invalid("parent_id", "would create a cycle")
	}
	return nil
}

// categoryInUse refuses to delete a category that live courses, posts or
// subcategories still reference.
func categoryInUse(ctx context.Context, q Querier, id uuid.UUID) error {
	var n int
	if err := q.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM categories WHERE parent_id = $1 AND NOT is_deleted)
		     + (SELECT COUNT(*) FROM courses WHERE category_id = $1 AND NOT is_deleted)
		     + (SELECT COUNT(*) FROM blogs WHERE category_id = $1 AND NOT is_deleted)
	`, id).Scan(&n); err != nil {
		return fmt.Errorf("check category references: %w", err)
	}
	if n > 0 {
		return apperr.Conflict(fmt.Sprintf("Category is still used by %d live item(s).", n))
	}
	return nil
}

// categoryExists reports whether id is a live category. Courses and posts
// use it to validate their category reference.
func categoryExists(ctx context.Context, q Querier, id uuid.UUID) error {
	var live bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND NOT is_deleted)`, id).Scan(&live); err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !live {
		return apperr.Invalid("category_id", "must reference an existing category")
	}
	return nil
}

// Tree returns the public categories as a nested tree, each with the
// number of active courses it holds.
func (r *CategoryRepo) Tree(ctx context.Context) ([]models.Category, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+r.sel+`,
		       (SELECT COUNT(*) FROM courses co
		         WHERE co.category_id = categories.id AND co.is_active AND NOT co.is_deleted)
		FROM categories
		WHERE is_active AND NOT is_deleted
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, classify(err, "category tree")
	}
	defer rows.Close()

	var flat []models.Category
	for rows.Next() {
		c := new(models.Category)
		targets := append(baseFields(c.Meta()), r.schema.Fields(c)...)
		targets = append(targets, &c.CourseCount)
		if err := rows.Scan(targets...); err != nil {
			return nil, classify(err, "scan category")
		}
		flat = append(flat, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "category tree")
	}
	return buildTree(flat, nil, 0), nil
}

// buildTree recursively builds a tree from a flat list. Categories whose
// parent is hidden are not reachable and are left out.
func buildTree(flat []models.Category, parentID *uuid.UUID, depth int) []models.Category {
	var result []models.Category
	for _, c := range flat {
		if ptrEqual(c.ParentID, parentID) {
			c.Depth = depth
			c.Children = buildTree(flat, &c.ID, depth+1)
			result = append(result, c)
		}
	}
	return result
}

// ptrEqual compares two *uuid.UUID for equality (both nil or same value).
func ptrEqual(a, b *uuid.UUID) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
