// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"coursepress/internal/apperr"
	"coursepress/internal/models"
)

// blogVisible matches posts the public may read.
const blogVisible = "status = 'published' OR (status = 'scheduled' AND published_at <= NOW())"

// BlogRepo manages blog posts in the database.
type BlogRepo struct {
	*Repository[models.Blog, *models.Blog]
}

// NewBlogRepo returns a new BlogRepo.
func NewBlogRepo(db *sql.DB, timeout time.Duration) *BlogRepo {
	return &BlogRepo{newRepository[models.Blog, *models.Blog](db, Schema[models.Blog]{
		Kind:        "blog",
		Label:       "Post",
		Table:       "blogs",
		SourceField: "title",
		Columns: []string{
			"title", "excerpt", "body", "category_id", "tags", "status",
			"published_at", "author_name", "featured_image",
		},
		Fields: func(b *models.Blog) []any {
			return []any{
				&b.Title, &b.Excerpt, &b.Body, &b.CategoryID, &b.Tags, &b.Status,
				&b.PublishedAt, &b.AuthorName, &b.FeaturedImage,
			}
		},
		Values: func(b *models.Blog) []any {
			return []any{
				b.Title, b.Excerpt, b.Body, b.CategoryID, b.Tags, b.Status,
				b.PublishedAt, b.AuthorName, b.FeaturedImage,
			}
		},
		Visible:     blogVisible,
		PublicOrder: "published_at DESC NULLS LAST, created_at DESC",
		Filter:      blogFilter,
		Prepare:     prepareBlog,
		Validate: func(ctx context.Context, q Querier, b *models.Blog) error {
			if b.Status == models.StatusScheduled && b.PublishedAt == nil {
				return apperr.Invalid("published_at", "is required for scheduled posts")
			}
			return categoryExists(ctx, q, b.CategoryID)
		},
	}, timeout)}
}

// prepareBlog trims input, normalises tags and stamps the publication
// date of posts published without one.
func prepareBlog(b *models.Blog, now time.Time) {
	b.Title = strings.TrimSpace(b.Title)
	if b.Status == "" {
		b.Status = models.StatusDraft
	}
	if b.Status == models.StatusPublished && b.PublishedAt == nil {
		b.Publish(now)
	}

	seen := make(map[string]bool, len(b.Tags))
	tags := make(models.StringList, 0, len(b.Tags))
	for _, t := range b.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	b.Tags = tags
}

func blogFilter(f Filter, add func(any) string) []string {
	var where []string
	if f.Category != "" {
		where = append(where, "category_id IN (SELECT id FROM categories WHERE slug = "+add(f.Category)+" AND NOT is_deleted)")
	}
	if f.Tag != "" {
		tag, _ := json.Marshal([]string{strings.ToLower(strings.TrimSpace(f.Tag))})
		where = append(where, "tags @> "+add(string(tag))+"::jsonb")
	}
	if f.Search != "" {
		p := add(likePattern(f.Search))
		where = append(where, "(title ILIKE "+p+" OR excerpt ILIKE "+p+" OR body ILIKE "+p+")")
	}
	if f.Status != "" {
		where = append(where, "status = "+add(f.Status))
	}
	return where
}

// PublishDue publishes every live scheduled post whose publication date
// has passed, recording a system publish event for each. It returns the
// number of posts published.
func (r *BlogRepo) PublishDue(ctx context.Context, now time.Time) (int, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var ids []uuid.UUID
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			UPDATE blogs SET status = 'published', updated_at = NOW()
			WHERE status = 'scheduled' AND published_at <= $1 AND NOT is_deleted
			RETURNING id
		`, now)
		if err != nil {
			return fmt.Errorf("publish due: %w", err)
		}
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan published id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("publish due: %w", err)
		}

		for _, id := range ids {
			if err := recordAudit(ctx, tx, r.schema.Kind, id, models.ActionPublish, uuid.Nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, classify(err, "publish scheduled posts")
	}
	return len(ids), nil
}

// Tags returns the tags used by public posts with their usage counts,
// most used first.
func (r *BlogRepo) Tags(ctx context.Context, limit int) ([]models.LabelCount, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT t.tag, COUNT(*)
		FROM blogs, jsonb_array_elements_text(blogs.tags) AS t(tag)
		WHERE NOT is_deleted AND (`+blogVisible+`)
		GROUP BY t.tag
		ORDER BY COUNT(*) DESC, t.tag
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, classify(err, "list tags")
	}
	defer rows.Close()

	var out []models.LabelCount
	for rows.Next() {
		var lc models.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, classify(err, "scan tag")
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}
