// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"coursepress/internal/apperr"
	"coursepress/internal/auth"
	"coursepress/internal/markdown"
	"coursepress/internal/middleware"
	"coursepress/internal/models"
	"coursepress/internal/respond"
	"coursepress/internal/storage"
	"coursepress/internal/store"
)

// excerptLength is the length in runes of a generated blog excerpt.
const excerptLength = 200

// dashboardWindow is how far back the dashboard's traffic charts reach.
const dashboardWindow = 30 * 24 * time.Hour

// Admin groups the back-office HTTP handlers and their dependencies.
type Admin struct {
	Categories *Content[models.Category]
	Courses    *Content[models.Course]
	Blogs      *Content[models.Blog]

	categories *store.CategoryRepo
	courses    *store.CourseRepo
	blogs      *store.BlogRepo
	admins     *store.AdminStore
	settings   *store.SiteSettingStore
	inquiries  *store.InquiryStore
	audit      *store.AuditStore
	pageViews  *store.PageViewStore
	uploader   *storage.Uploader
	authn      *auth.Authenticator
	now        func() time.Time
}

// NewAdmin creates the admin handler group.
func NewAdmin(d Deps) *Admin {
	a := &Admin{
		categories: d.Categories,
		courses:    d.Courses,
		blogs:      d.Blogs,
		admins:     d.Admins,
		settings:   d.Settings,
		inquiries:  d.Inquiries,
		audit:      d.Audit,
		pageViews:  d.PageViews,
		uploader:   d.Uploader,
		authn:      d.Auth,
		now:        time.Now,
	}

	a.Categories = newContent[models.Category](d.Categories, "Category")
	a.Categories.actions["activate"] = bulkAction[models.Category]{models.ActionUpdate, func(c *models.Category) error {
		c.IsActive = true
		return nil
	}}
	a.Categories.actions["deactivate"] = bulkAction[models.Category]{models.ActionUpdate, func(c *models.Category) error {
		c.IsActive = false
		return nil
	}}

	a.Courses = newContent[models.Course](d.Courses, "Course")
	a.Courses.actions["activate"] = bulkAction[models.Course]{models.ActionUpdate, func(c *models.Course) error {
		c.IsActive = true
		return nil
	}}
	a.Courses.actions["deactivate"] = bulkAction[models.Course]{models.ActionUpdate, func(c *models.Course) error {
		c.IsActive = false
		return nil
	}}
	a.Courses.actions["feature"] = bulkAction[models.Course]{models.ActionUpdate, func(c *models.Course) error {
		c.IsFeatured = true
		return nil
	}}
	a.Courses.actions["unfeature"] = bulkAction[models.Course]{models.ActionUpdate, func(c *models.Course) error {
		c.IsFeatured = false
		return nil
	}}

	a.Blogs = newContent[models.Blog](d.Blogs, "Blog post")
	a.Blogs.prepare = prepareBlog
	a.Blogs.actions["publish"] = bulkAction[models.Blog]{models.ActionPublish, func(b *models.Blog) error {
		b.Publish(a.now())
		return nil
	}}
	a.Blogs.actions["unpublish"] = bulkAction[models.Blog]{models.ActionUpdate, func(b *models.Blog) error {
		b.Status = models.StatusDraft
		return nil
	}}
	a.Blogs.actions["archive"] = bulkAction[models.Blog]{models.ActionUpdate, func(b *models.Blog) error {
		b.Status = models.StatusArchived
		return nil
	}}
	return a
}

// prepareBlog fills in an excerpt from the body when none was written.
func prepareBlog(b *models.Blog) error {
	if b.Excerpt != "" || b.Body == "" {
		return nil
	}
	ex, err := markdown.Excerpt(b.Body, excerptLength)
	if err != nil {
		return apperr.Unexpected(err)
	}
	b.Excerpt = ex
	return nil
}

// Dashboard is the summary shown on the back-office landing page.
type Dashboard struct {
	Categories int                  `json:"categories"`
	Courses    int                  `json:"courses"`
	Blogs      int                  `json:"blogs"`
	Admins     int                  `json:"admins"`
	Inquiries  int                  `json:"inquiries"`
	Tags       []models.LabelCount  `json:"tags"`
	Traffic    *models.TrafficStats `json:"traffic,omitempty"`
}

// Dashboard returns record counts and, for accounts allowed to read
// analytics, the traffic of the last 30 days.
func (a *Admin) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		d   Dashboard
		err error
	)
	counts := []struct {
		dst *int
		fn  func() (int, error)
	}{
		{&d.Categories, func() (int, error) { return a.categories.Count(ctx) }},
		{&d.Courses, func() (int, error) { return a.courses.Count(ctx) }},
		{&d.Blogs, func() (int, error) { return a.blogs.Count(ctx) }},
		{&d.Admins, func() (int, error) { return a.admins.Count(ctx) }},
		{&d.Inquiries, func() (int, error) {
			_, total, err := a.inquiries.List(ctx, "", store.Page{Page: 1, PageSize: 1})
			return total, err
		}},
	}
	for _, c := range counts {
		if *c.dst, err = c.fn(); err != nil {
			respond.Error(w, r, err)
			return
		}
	}
	if d.Tags, err = a.blogs.Tags(ctx, 10); err != nil {
		respond.Error(w, r, err)
		return
	}

	if claims := middleware.ClaimsFromCtx(r.Context()); claims != nil && claims.Can(models.PermAnalyticsRead) {
		if d.Traffic, err = a.pageViews.Stats(ctx, a.now().Add(-dashboardWindow), 10); err != nil {
			respond.Error(w, r, err)
			return
		}
	}
	respond.OK(w, d)
}

// Settings returns the full settings document, private keys included.
func (a *Admin) Settings(w http.ResponseWriter, r *http.Request) {
	doc, err := a.settings.Get(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, doc)
}

// UpdateSettings merges the posted key/value pairs into the settings
// document. An empty value removes the key.
func (a *Admin) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := decodeJSON(w, r, &values); err != nil {
		respond.Error(w, r, err)
		return
	}
	doc, err := a.settings.SetMany(r.Context(), values, actor(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, doc)
}

// Inquiries lists contact and quote requests, newest first.
func (a *Admin) Inquiries(w http.ResponseWriter, r *http.Request) {
	kind := models.InquiryKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", models.InquiryContact, models.InquiryQuote:
	default:
		respond.Error(w, r, apperr.Invalid("kind", "must be contact or quote"))
		return
	}
	pg := pageParams(r)
	items, total, err := a.inquiries.List(r.Context(), kind, pg)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.List(w, items, respond.NewMeta(total, pg.Page, pg.PageSize))
}

// AuditLog lists audit events, optionally for one entity type or record.
func (a *Admin) AuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var entityID *uuid.UUID
	if raw := q.Get("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respond.Error(w, r, apperr.Invalid("entity_id", "must be a UUID"))
			return
		}
		entityID = &id
	}
	pg := pageParams(r)
	items, total, err := a.audit.List(r.Context(), q.Get("entity_type"), entityID, pg)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.List(w, items, respond.NewMeta(total, pg.Page, pg.PageSize))
}
