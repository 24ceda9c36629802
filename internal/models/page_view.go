// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// PageView is one traffic event written by the public API.
type PageView struct {
	ID         int64      `json:"id"`
	EntityType string     `json:"entity_type"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty"`
	Path       string     `json:"path"`
	Referrer   string     `json:"referrer"`
	Browser    string     `json:"browser"`
	OS         string     `json:"os"`
	Device     string     `json:"device"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DailyCount is a per-day aggregate for dashboard charts.
type DailyCount struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}

// LabelCount is a count grouped by a label (device, path, browser).
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// TrafficStats is the dashboard's traffic summary.
type TrafficStats struct {
	TotalViews int64        `json:"total_views"`
	Daily      []DailyCount `json:"daily"`
	Devices    []LabelCount `json:"devices"`
	Browsers   []LabelCount `json:"browsers"`
	TopPaths   []LabelCount `json:"top_paths"`
}
