// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"time"

	"coursepress/internal/models"
)

// PageViewStore is the traffic sink written by the public API and read by
// the dashboard aggregation.
type PageViewStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPageViewStore creates a new PageViewStore backed by the given database.
func NewPageViewStore(db *sql.DB, timeout time.Duration) *PageViewStore {
	return &PageViewStore{db: db, timeout: timeout}
}

// Insert stores one page view.
func (s *PageViewStore) Insert(ctx context.Context, v *models.PageView) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO page_views (entity_type, entity_id, path, referrer, browser, os, device)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, v.EntityType, v.EntityID, v.Path, v.Referrer, v.Browser, v.OS, v.Device)
	return classify(err, "insert page view")
}

// Stats aggregates page views since the given instant. top bounds the
// grouped lists.
func (s *PageViewStore) Stats(ctx context.Context, since time.Time, top int) (*models.TrafficStats, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	stats := &models.TrafficStats{}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM page_views WHERE created_at >= $1`, since).Scan(&stats.TotalViews); err != nil {
		return nil, classify(err, "count page views")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date_trunc('day', created_at) AS day, COUNT(*)
		FROM page_views WHERE created_at >= $1
		GROUP BY day ORDER BY day
	`, since)
	if err != nil {
		return nil, classify(err, "daily page views")
	}
	for rows.Next() {
		var d models.DailyCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			rows.Close()
			return nil, classify(err, "scan daily page views")
		}
		stats.Daily = append(stats.Daily, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify(err, "daily page views")
	}

	if stats.Devices, err = s.groupBy(ctx, "device", since, top); err != nil {
		return nil, err
	}
	if stats.Browsers, err = s.groupBy(ctx, "browser", since, top); err != nil {
		return nil, err
	}
	if stats.TopPaths, err = s.groupBy(ctx, "path", since, top); err != nil {
		return nil, err
	}
	return stats, nil
}

// groupBy counts page views per value of column, which must be a trusted
// column name.
func (s *PageViewStore) groupBy(ctx context.Context, column string, since time.Time, top int) ([]models.LabelCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+column+`, COUNT(*) FROM page_views
		WHERE created_at >= $1
		GROUP BY `+column+`
		ORDER BY COUNT(*) DESC, `+column+`
		LIMIT $2
	`, since, top)
	if err != nil {
		return nil, classify(err, "page views by "+column)
	}
	defer rows.Close()

	var out []models.LabelCount
	for rows.Next() {
		var lc models.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, classify(err, "scan page views by "+column)
		}
		out = append(out, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "page views by "+column)
	}
	return out, nil
}

// Prune deletes page views recorded before the given instant and returns
// how many were removed.
func (s *PageViewStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM page_views WHERE created_at < $1`, before)
	if err != nil {
		return 0, classify(err, "prune page views")
	}
	return res.RowsAffected()
}
