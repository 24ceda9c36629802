// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SiteSettings is the singleton settings document, accessed by key.
type SiteSettings map[string]string

// Get returns the value for a key, or the fallback if the key doesn't exist.
func (s SiteSettings) Get(key, fallback string) string {
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Public returns the subset of settings safe to expose without a token.
// Keys prefixed with "private_" stay in the back office.
func (s SiteSettings) Public() SiteSettings {
	out := make(SiteSettings, len(s))
	for k, v := range s {
		if len(k) >= 8 && k[:8] == "private_" {
			continue
		}
		out[k] = v
	}
	return out
}

// Value implements driver.Valuer (stored as JSONB).
func (s SiteSettings) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(s))
}

// Scan implements sql.Scanner.
func (s *SiteSettings) Scan(src any) error {
	return scanJSON(src, (*map[string]string)(s))
}

// SiteSettingsDoc is the stored settings row with its audit stamp.
type SiteSettingsDoc struct {
	Data      SiteSettings `json:"data"`
	UpdatedBy *uuid.UUID   `json:"updated_by,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}
