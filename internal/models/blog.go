// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// BlogStatus represents the publication state of a blog post.
type BlogStatus string

const (
	StatusDraft     BlogStatus = "draft"
	StatusPublished BlogStatus = "published"
	StatusScheduled BlogStatus = "scheduled"
	StatusArchived  BlogStatus = "archived"
	StatusPrivate   BlogStatus = "private"
)

// Valid reports whether s is a known status.
func (s BlogStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusScheduled, StatusArchived, StatusPrivate:
		return true
	}
	return false
}

// Blog is a blog post. Body holds Markdown.
type Blog struct {
	Base
	Title         string     `json:"title" validate:"notblank,min=3,max=200"`
	Excerpt       string     `json:"excerpt" validate:"max=500"`
	Body          string     `json:"body" validate:"max=200000"`
	CategoryID    uuid.UUID  `json:"category_id" validate:"required"`
	Tags          StringList `json:"tags" validate:"max=20,dive,notblank,max=50"`
	Status        BlogStatus `json:"status" validate:"oneof=draft published scheduled archived private"`
	PublishedAt   *time.Time `json:"published_at"`
	AuthorName    string     `json:"author_name" validate:"max=120"`
	FeaturedImage string     `json:"featured_image" validate:"max=500"`
}

// SlugSource returns the text the slug is derived from.
func (b *Blog) SlugSource() string {
	return b.Title
}

// IsVisible reports whether the post is publicly visible at now.
func (b *Blog) IsVisible(now time.Time) bool {
	if b.IsDeleted {
		return false
	}
	switch b.Status {
	case StatusPublished:
		return true
	case StatusScheduled:
		return b.PublishedAt != nil && !b.PublishedAt.After(now)
	}
	return false
}

// Publish moves the post to published, stamping PublishedAt if unset.
func (b *Blog) Publish(now time.Time) {
	b.Status = StatusPublished
	if b.PublishedAt == nil {
		t := now
		b.PublishedAt = &t
	}
}
