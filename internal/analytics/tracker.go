// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package analytics records page-view events for the public content API.
// Events are written off the request path; a failed write is logged and
// never affects the response.
package analytics

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"coursepress/internal/models"
)

// Sink persists page views. *store.PageViewStore implements it.
type Sink interface {
	Insert(ctx context.Context, v *models.PageView) error
}

// Tracker turns requests into page-view events.
type Tracker struct {
	sink    Sink
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewTracker creates a tracker writing to sink. Each write gets its own
// timeout, detached from the request's lifetime.
func NewTracker(sink Sink, timeout time.Duration) *Tracker {
	return &Tracker{sink: sink, timeout: timeout}
}

// Record stores a view of the entity served by r. Bots are ignored.
func (t *Tracker) Record(r *http.Request, entityType string, entityID uuid.UUID) {
	ua := parseUserAgent(r.UserAgent())
	if ua.Bot {
		return
	}

	v := &models.PageView{
		EntityType: entityType,
		Path:       r.URL.Path,
		Referrer:   referrerHost(r.Referer()),
		Browser:    ua.Browser,
		OS:         ua.OS,
		Device:     ua.Device,
	}
	if entityID != uuid.Nil {
		v.EntityID = &entityID
	}

	ctx := context.WithoutCancel(r.Context())
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()
		if err := t.sink.Insert(ctx, v); err != nil {
			slog.Warn("record page view failed", "path", v.Path, "error", err)
		}
	}()
}

// Wait blocks until in-flight writes finish. Called on shutdown.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// referrerHost keeps only the host of the referrer so full URLs with
// query strings are not stored.
func referrerHost(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}
