// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers of the CoursePress API.
// Handlers are grouped by concern (public, auth, admin) and receive
// their dependencies through the handler struct.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"coursepress/internal/analytics"
	"coursepress/internal/apperr"
	"coursepress/internal/auth"
	"coursepress/internal/mailer"
	"coursepress/internal/middleware"
	"coursepress/internal/storage"
	"coursepress/internal/store"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Deps holds everything the handler groups need. Fields a group does not
// use may be left nil.
type Deps struct {
	Categories *store.CategoryRepo
	Courses    *store.CourseRepo
	Blogs      *store.BlogRepo
	Admins     *store.AdminStore
	Settings   *store.SiteSettingStore
	Inquiries  *store.InquiryStore
	Audit      *store.AuditStore
	PageViews  *store.PageViewStore

	Auth     *auth.Authenticator
	Uploader *storage.Uploader
	Notifier mailer.Notifier
	NotifyTo string
	Tracker  *analytics.Tracker
}

// decodeJSON reads a JSON body into dst. Unknown fields are rejected so a
// misspelled field does not silently do nothing.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	return unmarshal(body, dst)
}

// readBody reads the capped request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, apperr.Invalid("body", "request body is too large")
		}
		return nil, apperr.Invalid("body", "could not read request body")
	}
	return body, nil
}

// unmarshal decodes body onto dst, leaving fields absent from body as they
// are. That gives PATCH semantics when dst is a loaded entity.
func unmarshal(body []byte, dst any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return apperr.Invalid("body", "request body is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) && ute.Field != "" {
			return apperr.Invalid(ute.Field, "has the wrong type")
		}
		if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return apperr.Invalid(strings.Trim(field, `"`), "is not a known field")
		}
		return apperr.Invalid("body", "malformed JSON")
	}
	return nil
}

// pathID parses the {id} URL parameter. A malformed id cannot name any
// record, so it reports not found.
func pathID(r *http.Request, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.NotFound(what)
	}
	return id, nil
}

// actor returns the id of the authenticated account.
func actor(r *http.Request) uuid.UUID {
	if c := middleware.ClaimsFromCtx(r.Context()); c != nil {
		return c.AccountID()
	}
	return uuid.Nil
}

// pageParams reads page and page_size; Page.Normalize clamps them.
func pageParams(r *http.Request) store.Page {
	q := r.URL.Query()
	p, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return store.Page{Page: p, PageSize: size}.Normalize()
}

// boolParam parses an optional boolean query parameter.
func boolParam(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Invalid(name, "must be true or false")
	}
	return &b, nil
}

// deletedParam reads the deleted=include|only listing switch.
func deletedParam(r *http.Request) (store.DeletedMode, error) {
	switch m := store.DeletedMode(r.URL.Query().Get("deleted")); m {
	case store.DeletedExclude, store.DeletedInclude, store.DeletedOnly:
		return m, nil
	}
	return "", apperr.Invalid("deleted", "must be include or only")
}

// filterParams builds a listing filter from the query string.
func filterParams(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{
		Category: q.Get("category"),
		Level:    q.Get("level"),
		Tag:      q.Get("tag"),
		Search:   strings.TrimSpace(q.Get("search")),
		Status:   q.Get("status"),
	}
	var err error
	if f.Featured, err = boolParam(r, "featured"); err != nil {
		return f, err
	}
	if f.Active, err = boolParam(r, "active"); err != nil {
		return f, err
	}
	return f, nil
}
