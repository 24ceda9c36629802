// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "github.com/google/uuid"

// Category represents a node of the course/blog category tree.
// Courses and blog posts each reference exactly one category.
type Category struct {
	Base
	Name        string     `json:"name" validate:"notblank,max=120"`
	Description string     `json:"description" validate:"max=2000"`
	Image       string     `json:"image" validate:"max=500"`
	ParentID    *uuid.UUID `json:"parent_id"`
	SortOrder   int        `json:"sort_order"`
	IsActive    bool       `json:"is_active"`

	// Virtual fields populated by the category tree query.
	Children    []Category `json:"children,omitempty"`
	Depth       int        `json:"depth"`
	CourseCount int        `json:"course_count"`
}

// SlugSource returns the text the slug is derived from.
func (c *Category) SlugSource() string {
	return c.Name
}
