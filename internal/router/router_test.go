// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router tests verify the HTTP routing configuration, middleware
// chains, and the health endpoint.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"coursepress/internal/auth"
	"coursepress/internal/handlers"
	"coursepress/internal/models"
)

// stubVerifier accepts the token "editor" and rejects everything else.
type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, raw string) (*auth.Claims, error) {
	if raw != "editor" {
		return nil, auth.ErrTokenInvalid
	}
	return &auth.Claims{
		Role:             models.RoleEditor,
		Perms:            models.DefaultPermissions(models.RoleEditor).Grants(),
		RegisteredClaims: jwt.RegisteredClaims{ID: uuid.NewString(), Subject: uuid.NewString()},
	}, nil
}

func newTestRouter(opts Options) http.Handler {
	if opts.Verifier == nil {
		opts.Verifier = stubVerifier{}
	}
	d := handlers.Deps{}
	return New(opts, handlers.NewPublic(d), handlers.NewAuth(d), handlers.NewAdmin(d))
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Error.Kind
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/health", nil)

	healthHandler(map[string]Check{
		"postgres": func(context.Context) error { return nil },
	})(w, r)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("content-type: got %q, want %q", ct, "application/json")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field: got %q, want %q", body["status"], "ok")
	}
	if body["postgres"] != "ok" {
		t.Errorf("postgres field: got %q, want %q", body["postgres"], "ok")
	}
}

func TestHealthHandlerDegraded(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/health", nil)

	healthHandler(map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"valkey":   func(context.Context) error { return errors.New("connection refused") },
	})(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "degraded" || body["valkey"] != "unavailable" || body["postgres"] != "ok" {
		t.Errorf("body: got %v", body)
	}
}

func TestHealthRoute(t *testing.T) {
	h := newTestRouter(Options{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /health: got %d, want 200", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing on /health")
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestRouter(Options{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", w.Code)
	}
	if got := errorKind(t, w); got != "not_found" {
		t.Errorf("kind: got %q, want not_found", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestRouter(Options{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("DELETE", "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", w.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h := newTestRouter(Options{})

	routes := []struct{ method, path string }{
		{"GET", "/admin/auth/me"},
		{"POST", "/admin/auth/logout"},
		{"GET", "/admin/dashboard"},
		{"GET", "/admin/categories"},
		{"POST", "/admin/courses"},
		{"POST", "/admin/posts"},
		{"POST", "/admin/posts/bulk"},
		{"GET", "/admin/admins"},
		{"PUT", "/admin/settings"},
		{"POST", "/admin/uploads"},
		{"GET", "/admin/inquiries"},
		{"GET", "/admin/audit"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
			if w.Code != http.StatusUnauthorized {
				t.Errorf("got %d, want 401", w.Code)
			}
			if w.Header().Get("Cache-Control") != "no-store" {
				t.Errorf("Cache-Control: got %q, want no-store", w.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestAdminRoutesRejectInvalidToken(t *testing.T) {
	h := newTestRouter(Options{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/admin/courses", nil)
	r.Header.Set("Authorization", "Bearer forged")
	h.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", w.Code)
	}
}

func TestAdminRoutesEnforcePermissions(t *testing.T) {
	h := newTestRouter(Options{})

	// Editors have no admins, settings, inquiries or audit permission.
	routes := []struct{ method, path string }{
		{"GET", "/admin/admins"},
		{"POST", "/admin/admins"},
		{"POST", "/admin/admins/" + uuid.NewString() + "/reset-2fa"},
		{"GET", "/admin/settings"},
		{"PUT", "/admin/settings"},
		{"GET", "/admin/inquiries"},
		{"GET", "/admin/audit"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(rt.method, rt.path, nil)
			r.Header.Set("Authorization", "Bearer editor")
			h.ServeHTTP(w, r)
			if w.Code != http.StatusForbidden {
				t.Errorf("got %d, want 403", w.Code)
			}
			if got := errorKind(t, w); got != "forbidden" {
				t.Errorf("kind: got %q, want forbidden", got)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(Options{AllowedOrigin: func(o string) bool { return o == "https://example.com" }})

	w := httptest.NewRecorder()
	r := httptest.NewRequest("OPTIONS", "/admin/posts", nil)
	r.Header.Set("Origin", "https://example.com")
	r.Header.Set("Access-Control-Request-Method", "POST")
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("Allow-Origin: got %q", got)
	}
}

func TestUploadsServed(t *testing.T) {
	files := fstest.MapFS{
		"media/2026/10/logo.png": &fstest.MapFile{Data: []byte("png-bytes")},
	}
	h := newTestRouter(Options{Uploads: files, UploadsPrefix: "/uploads"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/uploads/media/2026/10/logo.png", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if w.Body.String() != "png-bytes" {
		t.Errorf("body: got %q", w.Body.String())
	}
}
