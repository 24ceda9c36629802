// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler integration
// tests. Tests are skipped when PostgreSQL or Valkey are unavailable.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"coursepress/internal/auth"
	"coursepress/internal/database"
	"coursepress/internal/mailer"
	"coursepress/internal/middleware"
	"coursepress/internal/models"
	"coursepress/internal/session"
	"coursepress/internal/storage"
	"coursepress/internal/store"
)

const testTimeout = 5 * time.Second

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "coursepress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "coursepress")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     envOr("VALKEY_HOST", "localhost") + ":" + envOr("VALKEY_PORT", "6379"),
		Password: os.Getenv("VALKEY_PASSWORD"),
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		for _, pattern := range []string{"token:*", "account_tokens:*"} {
			keys, _ := client.Keys(ctx, pattern).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}
		client.Close()
	})

	return client
}

// memFiles is an in-memory storage.FileStore.
type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memFiles) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return nil
}

func (m *memFiles) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func (m *memFiles) URL(key string) string { return "/uploads/" + key }

// outbox records sent messages and fails when err is set.
type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

// clock is a settable time source for lockout tests.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv holds all dependencies for handler integration tests.
type testEnv struct {
	DB     *sql.DB
	Deps   Deps
	Clock  *clock
	Files  *memFiles
	Outbox *outbox
	Admin  *Admin
	Auth   *Auth
	Public *Public
	Router http.Handler
}

// newTestEnv creates a complete test environment with all handler
// dependencies and a router mounting them like the production one.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	env := &testEnv{
		DB:     db,
		Clock:  &clock{now: time.Now()},
		Files:  &memFiles{files: map[string][]byte{}},
		Outbox: &outbox{},
	}

	admins := store.NewAdminStore(db, testTimeout)
	tokens := auth.NewTokenService("handler-test-secret-handler-test-secret", "coursepress-test", time.Hour)
	authn, err := auth.New(admins, tokens, session.NewRegistry(vk), auth.DefaultPolicy)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	authn.SetClock(env.Clock.Now)

	env.Deps = Deps{
		Categories: store.NewCategoryRepo(db, testTimeout),
		Courses:    store.NewCourseRepo(db, testTimeout),
		Blogs:      store.NewBlogRepo(db, testTimeout),
		Admins:     admins,
		Settings:   store.NewSiteSettingStore(db, testTimeout),
		Inquiries:  store.NewInquiryStore(db, testTimeout),
		Audit:      store.NewAuditStore(db, testTimeout),
		PageViews:  store.NewPageViewStore(db, testTimeout),
		Auth:       authn,
		Uploader:   storage.NewUploader(env.Files, testTimeout),
		Notifier:   env.Outbox,
		NotifyTo:   "office@example.com",
	}
	env.Admin = NewAdmin(env.Deps)
	env.Auth = NewAuth(env.Deps)
	env.Public = NewPublic(env.Deps)
	env.Router = env.routes()
	return env
}

// routes mounts the handlers the way the production router does.
func (e *testEnv) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/categories", e.Public.CategoryTree)
	r.Get("/categories/{slug}", e.Public.Category)
	r.Get("/courses", e.Public.Courses)
	r.Get("/courses/{slug}", e.Public.Course)
	r.Post("/courses/{slug}/like", e.Public.Engage("course", models.CounterLikes))
	r.Get("/blogs", e.Public.Blogs)
	r.Get("/blogs/{slug}", e.Public.Blog)
	r.Post("/blogs/{slug}/share", e.Public.Engage("blog", models.CounterShares))
	r.Get("/settings", e.Public.Settings)
	r.Post("/contact", e.Public.Inquiry(models.InquiryContact))
	r.Post("/quote", e.Public.Inquiry(models.InquiryQuote))

	r.Route("/admin", func(r chi.Router) {
		r.Post("/auth/login", e.Auth.Login)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(e.Deps.Auth))
			r.Post("/auth/logout", e.Auth.Logout)
			r.Get("/auth/me", e.Auth.Me)
			r.Post("/auth/password", e.Auth.ChangePassword)
			r.Post("/auth/2fa/setup", e.Auth.SetupTOTP)
			r.Post("/auth/2fa/enable", e.Auth.EnableTOTP)
			r.Get("/dashboard", e.Admin.Dashboard)

			mount := func(path string, perm models.Permission, fn func(chi.Router)) {
				r.Route(path, func(r chi.Router) {
					r.Use(middleware.RequirePermission(perm))
					fn(r)
				})
			}
			mount("/categories", models.PermCategoriesWrite, func(r chi.Router) { contentRoutes(r, e.Admin.Categories) })
			mount("/courses", models.PermCoursesWrite, func(r chi.Router) { contentRoutes(r, e.Admin.Courses) })
			mount("/posts", models.PermBlogsWrite, func(r chi.Router) { contentRoutes(r, e.Admin.Blogs) })
			mount("/admins", models.PermAdminsWrite, func(r chi.Router) {
				r.Get("/", e.Admin.ListAdmins)
				r.Post("/", e.Admin.CreateAdmin)
				r.Get("/{id}", e.Admin.GetAdmin)
				r.Put("/{id}", e.Admin.UpdateAdmin)
				r.Delete("/{id}", e.Admin.DeleteAdmin)
				r.Post("/{id}/restore", e.Admin.RestoreAdmin)
				r.Post("/{id}/reset-2fa", e.Admin.ResetAdminTOTP)
			})
			mount("/settings", models.PermSettingsWrite, func(r chi.Router) {
				r.Get("/", e.Admin.Settings)
				r.Put("/", e.Admin.UpdateSettings)
			})
			mount("/uploads", models.PermUploadsWrite, func(r chi.Router) {
				r.Post("/", e.Admin.Upload)
				r.Delete("/", e.Admin.DeleteUpload)
			})
			mount("/inquiries", models.PermInquiriesRead, func(r chi.Router) { r.Get("/", e.Admin.Inquiries) })
			mount("/audit", models.PermAuditRead, func(r chi.Router) { r.Get("/", e.Admin.AuditLog) })
		})
	})
	return r
}

func contentRoutes[T any](r chi.Router, h *Content[T]) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/bulk", h.Bulk)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/restore", h.Restore)
}

// testPassword is the password of every account created by newAccount.
const testPassword = "correct horse battery"

// newAccount creates an account and removes it, with everything it
// touched, when the test finishes.
func (e *testEnv) newAccount(t *testing.T, role models.Role, perms *models.Permissions) *models.Admin {
	t.Helper()
	tok := strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	a, err := e.Deps.Admins.Create(context.Background(), store.NewAdmin{
		Username:    "h-" + string(role) + "-" + tok,
		Email:       "h-" + tok + "@example.com",
		Password:    testPassword,
		Role:        role,
		Permissions: perms,
	}, uuid.Nil)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	t.Cleanup(func() { cleanActor(e.DB, a.ID) })
	return a
}

// cleanActor hard-deletes rows created by or referencing an admin.
func cleanActor(db *sql.DB, id uuid.UUID) {
	db.Exec("DELETE FROM audit_events WHERE actor_id = $1 OR entity_id = $1", id)
	for _, table := range []string{"blogs", "courses"} {
		db.Exec("DELETE FROM audit_events WHERE entity_id IN (SELECT id FROM "+table+" WHERE created_by = $1)", id)
		db.Exec("DELETE FROM "+table+" WHERE created_by = $1", id)
	}
	db.Exec("DELETE FROM audit_events WHERE entity_id IN (SELECT id FROM categories WHERE created_by = $1)", id)
	db.Exec("DELETE FROM categories WHERE created_by = $1 AND parent_id IS NOT NULL", id)
	db.Exec("DELETE FROM categories WHERE created_by = $1", id)
	db.Exec("UPDATE admins SET created_by = NULL, updated_by = NULL, deleted_by = NULL WHERE created_by = $1 OR updated_by = $1 OR deleted_by = $1", id)
	db.Exec("DELETE FROM admins WHERE id = $1", id)
}

// login authenticates a with the test password and returns the token.
func (e *testEnv) login(t *testing.T, a *models.Admin) string {
	t.Helper()
	w := e.do(t, "POST", "/admin/auth/login", "", map[string]string{"email": a.Email, "password": testPassword})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: got %d: %s", a.Email, w.Code, w.Body.String())
	}
	var res LoginResponse
	decodeData(t, w, &res)
	return res.Token
}

// do sends a JSON request through the router.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	r := httptest.NewRequest(method, path, rd)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, r)
	return w
}

// decodeData unmarshals the envelope's data field into dst.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, w.Body.String())
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

// errorOf returns the kind and code of an error envelope.
func errorOf(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Kind string `json:"kind"`
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v (%s)", err, w.Body.String())
	}
	return body.Error.Kind, body.Error.Code
}
