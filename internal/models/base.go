// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audit holds the accountability fields shared by every persisted entity.
// Rows are soft-deleted only, so the history of who did what survives.
type Audit struct {
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty"`
	DeletedBy *uuid.UUID `json:"deleted_by,omitempty"`
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Base is embedded by every slug-bearing content entity (Category, Course,
// Blog). The counters only move through the repository's increment
// operation, never through a general update.
type Base struct {
	ID     uuid.UUID `json:"id"`
	Slug   string    `json:"slug" validate:"omitempty,slug,max=200"`
	Views  int64     `json:"views"`
	Likes  int64     `json:"likes"`
	Shares int64     `json:"shares"`
	Audit
}

// Meta gives generic code access to the embedded Base.
func (b *Base) Meta() *Base {
	return b
}

// Counter names accepted by the increment operation.
const (
	CounterViews  = "views"
	CounterLikes  = "likes"
	CounterShares = "shares"
)

// IsCounter reports whether name is an engagement counter.
func IsCounter(name string) bool {
	switch name {
	case CounterViews, CounterLikes, CounterShares:
		return true
	}
	return false
}

// StringList is a JSONB-backed list of strings (e.g. blog tags).
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	return scanJSON(src, (*[]string)(l))
}

// scanJSON decodes a JSONB column into dst.
func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON source type %T", src)
	}
}
