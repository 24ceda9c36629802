// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "github.com/google/uuid"

// CourseLevel is the difficulty of a course.
type CourseLevel string

const (
	LevelBeginner     CourseLevel = "beginner"
	LevelIntermediate CourseLevel = "intermediate"
	LevelAdvanced     CourseLevel = "advanced"
)

// Valid reports whether l is a known level.
func (l CourseLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// Course is a training course listed in the public catalog.
type Course struct {
	Base
	Title         string      `json:"title" validate:"notblank,min=3,max=200"`
	Code          string      `json:"code" validate:"omitempty,alphanum,max=32"`
	Summary       string      `json:"summary" validate:"max=500"`
	Description   string      `json:"description" validate:"max=20000"`
	Level         CourseLevel `json:"level" validate:"oneof=beginner intermediate advanced"`
	CategoryID    uuid.UUID   `json:"category_id" validate:"required"`
	DurationHours int         `json:"duration_hours" validate:"gte=0,lte=1000"`
	PriceCents    int64       `json:"price_cents" validate:"gte=0"`
	Image         string      `json:"image" validate:"max=500"`
	IsActive      bool        `json:"is_active"`
	IsFeatured    bool        `json:"is_featured"`
}

// SlugSource returns the text the slug is derived from.
func (c *Course) SlugSource() string {
	return c.Title
}
