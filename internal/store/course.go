// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"coursepress/internal/models"
)

// CourseRepo manages courses in the database.
type CourseRepo struct {
	*Repository[models.Course, *models.Course]
}

// NewCourseRepo returns a new CourseRepo.
func NewCourseRepo(db *sql.DB, timeout time.Duration) *CourseRepo {
	return &CourseRepo{newRepository[models.Course, *models.Course](db, Schema[models.Course]{
		Kind:        "course",
		Label:       "Course",
		Table:       "courses",
		SourceField: "title",
		Columns: []string{
			"title", "code", "summary", "description", "level", "category_id",
			"duration_hours", "price_cents", "image", "is_active", "is_featured",
		},
		Fields: func(c *models.Course) []any {
			return []any{
				&c.Title, &c.Code, &c.Summary, &c.Description, &c.Level, &c.CategoryID,
				&c.DurationHours, &c.PriceCents, &c.Image, &c.IsActive, &c.IsFeatured,
			}
		},
		Values: func(c *models.Course) []any {
			return []any{
				c.Title, c.Code, c.Summary, c.Description, c.Level, c.CategoryID,
				c.DurationHours, c.PriceCents, c.Image, c.IsActive, c.IsFeatured,
			}
		},
		Visible:     "is_active",
		PublicOrder: "created_at DESC",
		Filter:      courseFilter,
		Prepare: func(c *models.Course, _ time.Time) {
			c.Title = strings.TrimSpace(c.Title)
			c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
			if c.Level == "" {
				c.Level = models.LevelBeginner
			}
		},
		Validate: func(ctx context.Context, q Querier, c *models.Course) error {
			return categoryExists(ctx, q, c.CategoryID)
		},
	}, timeout)}
}

func courseFilter(f Filter, add func(any) string) []string {
	var where []string
	if f.Category != "" {
		where = append(where, "category_id IN (SELECT id FROM categories WHERE slug = "+add(f.Category)+" AND NOT is_deleted)")
	}
	if f.Level != "" {
		where = append(where, "level = "+add(f.Level))
	}
	if f.Search != "" {
		p := add(likePattern(f.Search))
		where = append(where, "(title ILIKE "+p+" OR code ILIKE "+p+" OR summary ILIKE "+p+")")
	}
	if f.Featured != nil {
		where = append(where, "is_featured = "+add(*f.Featured))
	}
	if f.Active != nil {
		where = append(where, "is_active = "+add(*f.Active))
	}
	return where
}
