// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"coursepress/internal/analytics"
	"coursepress/internal/apperr"
	"coursepress/internal/mailer"
	"coursepress/internal/markdown"
	"coursepress/internal/models"
	"coursepress/internal/respond"
	"coursepress/internal/store"
	"coursepress/internal/validate"
)

// Public groups the unauthenticated content API.
type Public struct {
	categories *store.CategoryRepo
	courses    *store.CourseRepo
	blogs      *store.BlogRepo
	settings   *store.SiteSettingStore
	inquiries  *store.InquiryStore
	notifier   mailer.Notifier
	notifyTo   string
	tracker    *analytics.Tracker
}

// NewPublic creates the public handler group.
func NewPublic(d Deps) *Public {
	return &Public{
		categories: d.Categories,
		courses:    d.Courses,
		blogs:      d.Blogs,
		settings:   d.Settings,
		inquiries:  d.Inquiries,
		notifier:   d.Notifier,
		notifyTo:   d.NotifyTo,
		tracker:    d.Tracker,
	}
}

// track records a page view when a tracker is configured.
func (h *Public) track(r *http.Request, entityType string, id uuid.UUID) {
	if h.tracker != nil {
		h.tracker.Record(r, entityType, id)
	}
}

// countView bumps the view counter of a record being served. A failure is
// logged and the page is served anyway.
func countView(ctx context.Context, inc func(context.Context, uuid.UUID, string) (int64, error), id uuid.UUID, views *int64) {
	n, err := inc(ctx, id, models.CounterViews)
	if err != nil {
		slog.Warn("count view failed", "id", id, "error", err)
		return
	}
	*views = n
}

// CategoryTree returns the visible categories as a nested tree.
func (h *Public) CategoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.categories.Tree(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if tree == nil {
		tree = []models.Category{}
	}
	respond.OK(w, tree)
}

// BlogPage is a published post with its body rendered to sanitised HTML.
type BlogPage struct {
	*models.Blog
	BodyHTML string `json:"body_html"`
}

// CategoryPage is a category together with its courses.
type CategoryPage struct {
	Category *models.Category `json:"category"`
	Courses  []models.Course  `json:"courses"`
}

// Category returns a visible category and a page of its active courses.
func (h *Public) Category(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	c, err := h.categories.FindBySlug(r.Context(), slug)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if c == nil {
		respond.Error(w, r, apperr.NotFound("Category"))
		return
	}
	pg := pageParams(r)
	courses, total, err := h.courses.FindPublished(r.Context(), store.Filter{Category: c.Slug}, pg)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	h.track(r, "category", c.ID)
	respond.List(w, CategoryPage{Category: c, Courses: courses}, respond.NewMeta(total, pg.Page, pg.PageSize))
}

// Courses lists active courses. Supported filters: category, level,
// search and featured.
func (h *Public) Courses(w http.ResponseWriter, r *http.Request) {
	f, err := filterParams(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if f.Level != "" && !models.CourseLevel(f.Level).Valid() {
		respond.Error(w, r, apperr.Invalid("level", "must be beginner, intermediate or advanced"))
		return
	}
	pg := pageParams(r)
	items, total, err := h.courses.FindPublished(r.Context(), f, pg)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.List(w, items, respond.NewMeta(total, pg.Page, pg.PageSize))
}

// Course returns an active course and counts the view.
func (h *Public) Course(w http.ResponseWriter, r *http.Request) {
	c, err := h.courses.FindBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if c == nil {
		respond.Error(w, r, apperr.NotFound("Course"))
		return
	}
	countView(r.Context(), h.courses.IncrementCounter, c.ID, &c.Views)
	h.track(r, "course", c.ID)
	respond.OK(w, c)
}

// Blogs lists visible posts. Supported filters: category, tag and search.
func (h *Public) Blogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	pg := pageParams(r)
	items, total, err := h.blogs.FindPublished(r.Context(), f, pg)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.List(w, items, respond.NewMeta(total, pg.Page, pg.PageSize))
}

// Blog returns a visible post with its body rendered to HTML.
func (h *Public) Blog(w http.ResponseWriter, r *http.Request) {
	b, err := h.blogs.FindBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if b == nil {
		respond.Error(w, r, apperr.NotFound("Blog post"))
		return
	}
	html, err := markdown.ToHTML(b.Body)
	if err != nil {
		respond.Error(w, r, apperr.Unexpected(err))
		return
	}
	countView(r.Context(), h.blogs.IncrementCounter, b.ID, &b.Views)
	h.track(r, "blog", b.ID)
	respond.OK(w, BlogPage{Blog: b, BodyHTML: html})
}

// Tags returns the most used blog tags.
func (h *Public) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.blogs.Tags(r.Context(), 30)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, tags)
}

// Engagement is the counter value after a like or share.
type Engagement struct {
	Counter string `json:"counter"`
	Value   int64  `json:"value"`
}

// Engage returns a handler that bumps counter on the visible record with
// the slug in the URL. kind selects courses or blogs.
func (h *Public) Engage(kind, counter string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			id  uuid.UUID
			inc func(context.Context, uuid.UUID, string) (int64, error)
		)
		slug := chi.URLParam(r, "slug")
		switch kind {
		case "course":
			c, err := h.courses.FindBySlug(r.Context(), slug)
			if err != nil {
				respond.Error(w, r, err)
				return
			}
			if c == nil {
				respond.Error(w, r, apperr.NotFound("Course"))
				return
			}
			id, inc = c.ID, h.courses.IncrementCounter
		default:
			b, err := h.blogs.FindBySlug(r.Context(), slug)
			if err != nil {
				respond.Error(w, r, err)
				return
			}
			if b == nil {
				respond.Error(w, r, apperr.NotFound("Blog post"))
				return
			}
			id, inc = b.ID, h.blogs.IncrementCounter
		}
		n, err := inc(r.Context(), id, counter)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, Engagement{Counter: counter, Value: n})
	}
}

// Settings returns the public site settings.
func (h *Public) Settings(w http.ResponseWriter, r *http.Request) {
	doc, err := h.settings.Get(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, doc.Data.Public())
}

// inquiryNotifyWarning is returned when an inquiry was stored but the
// notification email failed.
const inquiryNotifyWarning = "Your message was received, but the office could not be notified right away."

// Inquiry returns a handler that stores a contact or quote request and
// emails the office. The request is kept even when the email fails.
func (h *Public) Inquiry(kind models.InquiryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in models.Inquiry
		if err := decodeJSON(w, r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		in.Kind = kind
		in.Notified = false
		if err := validate.Struct(in); err != nil {
			respond.Error(w, r, err)
			return
		}
		if kind == models.InquiryQuote && in.CourseID == nil && in.Attendees == 0 {
			respond.Error(w, r, apperr.Invalid("attendees", "is required for a quote"))
			return
		}

		saved, err := h.inquiries.Create(r.Context(), &in)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		env := respond.Envelope{Data: saved}
		if err := h.notify(r.Context(), saved); err != nil {
			slog.Warn("inquiry notification failed", "id", saved.ID, "kind", kind, "error", err)
			env.Warnings = append(env.Warnings, inquiryNotifyWarning)
		} else if h.notifier != nil {
			saved.Notified = true
		}
		respond.JSON(w, http.StatusCreated, env)
	}
}

// notify emails the office about q and marks it notified. The send keeps
// running if the client goes away.
func (h *Public) notify(ctx context.Context, q *models.Inquiry) error {
	if h.notifier == nil {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	msg := mailer.Message{
		To:      h.notifyTo,
		ReplyTo: q.Email,
		Subject: fmt.Sprintf("New %s request from %s", q.Kind, q.Name),
		Body:    inquiryBody(q),
	}
	if err := h.notifier.Send(ctx, msg); err != nil {
		return err
	}
	return h.inquiries.MarkNotified(ctx, q.ID)
}

func inquiryBody(q *models.Inquiry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\n", q.Name, q.Email)
	if q.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", q.Phone)
	}
	if q.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", q.Company)
	}
	if q.CourseID != nil {
		fmt.Fprintf(&b, "Course: %s\n", q.CourseID)
	}
	if q.Attendees > 0 {
		fmt.Fprintf(&b, "Attendees: %d\n", q.Attendees)
	}
	fmt.Fprintf(&b, "Received: %s\n\n%s\n", q.CreatedAt.UTC().Format(time.RFC1123), q.Message)
	return b.String()
}
