// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"coursepress/internal/apperr"
	"coursepress/internal/models"
)

// maxSettingValue bounds a single settings value.
const maxSettingValue = 10000

// SiteSettingStore manages the singleton site settings document.
type SiteSettingStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSiteSettingStore returns a new SiteSettingStore backed by the given database.
func NewSiteSettingStore(db *sql.DB, timeout time.Duration) *SiteSettingStore {
	return &SiteSettingStore{db: db, timeout: timeout}
}

// Get returns the settings document.
func (s *SiteSettingStore) Get(ctx context.Context) (*models.SiteSettingsDoc, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	doc := &models.SiteSettingsDoc{}
	err := s.db.QueryRowContext(ctx,
		`SELECT data, updated_by, updated_at FROM site_settings WHERE id = 1`,
	).Scan(&doc.Data, &doc.UpdatedBy, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.SiteSettingsDoc{Data: models.SiteSettings{}}, nil
	}
	if err != nil {
		return nil, classify(err, "get site settings")
	}
	if doc.Data == nil {
		doc.Data = models.SiteSettings{}
	}
	return doc, nil
}

// SetMany merges values into the settings document in one statement.
// Keys with an empty value are removed.
func (s *SiteSettingStore) SetMany(ctx context.Context, values map[string]string, actor uuid.UUID) (*models.SiteSettingsDoc, error) {
	set := make(models.SiteSettings, len(values))
	var remove []string
	for k, v := range values {
		if k == "" || len(k) > 100 {
			return nil, apperr.Invalid(k, "setting keys must be 1 to 100 characters")
		}
		if len(v) > maxSettingValue {
			return nil, apperr.Invalid(k, fmt.Sprintf("must be at most %d characters", maxSettingValue))
		}
		if v == "" {
			remove = append(remove, k)
			continue
		}
		set[k] = v
	}
	if remove == nil {
		remove = []string{}
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	doc := &models.SiteSettingsDoc{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO site_settings (id, data, updated_by)
		VALUES (1, $1::jsonb - $2::text[], $3)
		ON CONFLICT (id) DO UPDATE
		SET data = (site_settings.data || $1::jsonb) - $2::text[],
		    updated_by = EXCLUDED.updated_by,
		    updated_at = NOW()
		RETURNING data, updated_by, updated_at
	`, set, remove, actorRef(actor)).Scan(&doc.Data, &doc.UpdatedBy, &doc.UpdatedAt)
	if err != nil {
		return nil, classify(err, "save site settings")
	}
	return doc, nil
}
