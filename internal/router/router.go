// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for the
// CoursePress API. It organizes routes into public and admin groups with
// appropriate middleware stacks.
package router

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"coursepress/internal/apperr"
	"coursepress/internal/cache"
	"coursepress/internal/handlers"
	"coursepress/internal/middleware"
	"coursepress/internal/models"
	"coursepress/internal/respond"
)

// healthTimeout bounds each dependency check of the health endpoint.
const healthTimeout = 2 * time.Second

// Check tests one dependency for the health endpoint.
type Check func(ctx context.Context) error

// Options carries what New needs besides the handler groups.
type Options struct {
	Verifier      middleware.TokenVerifier
	LoginLimiter  *middleware.RateLimiter
	AllowedOrigin func(origin string) bool
	Checks        map[string]Check

	// Cache, when set, serves the public listings from Valkey and is
	// cleared by every successful admin write.
	Cache *cache.Responses

	// Uploads, when set, is served under UploadsPrefix (local disk storage).
	Uploads       fs.FS
	UploadsPrefix string
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(opts Options, public *handlers.Public, auth *handlers.Auth, admin *handlers.Admin) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	if opts.AllowedOrigin != nil {
		r.Use(middleware.CORS(opts.AllowedOrigin))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, apperr.NotFound("Route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusMethodNotAllowed, respond.ErrorBody{Error: respond.ErrorDetail{
			Kind: "method_not_allowed", Message: "Method not allowed.",
		}})
	})

	r.Get("/health", healthHandler(opts.Checks))

	if opts.Uploads != nil && opts.UploadsPrefix != "" {
		prefix := "/" + strings.Trim(opts.UploadsPrefix, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", http.FileServer(http.FS(opts.Uploads))))
	}

	// Public content API, no token required.
	// Detail pages count views, so only listings are cached.
	r.Group(func(r chi.Router) {
		r.Use(opts.Cache.Middleware)
		r.Get("/categories", public.CategoryTree)
		r.Get("/categories/{slug}", public.Category)
		r.Get("/courses", public.Courses)
		r.Get("/blogs", public.Blogs)
		r.Get("/tags", public.Tags)
		r.Get("/settings", public.Settings)
	})
	r.Get("/courses/{slug}", public.Course)
	r.Post("/courses/{slug}/like", public.Engage("course", models.CounterLikes))
	r.Post("/courses/{slug}/share", public.Engage("course", models.CounterShares))
	r.Get("/blogs/{slug}", public.Blog)
	r.Post("/blogs/{slug}/like", public.Engage("blog", models.CounterLikes))
	r.Post("/blogs/{slug}/share", public.Engage("blog", models.CounterShares))
	r.Post("/contact", public.Inquiry(models.InquiryContact))
	r.Post("/quote", public.Inquiry(models.InquiryQuote))

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.NoStore)

		// Login is the only admin route reachable without a token.
		r.Group(func(r chi.Router) {
			if opts.LoginLimiter != nil {
				r.Use(opts.LoginLimiter.Middleware)
			}
			r.Post("/auth/login", auth.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(opts.Verifier))
			r.Use(opts.Cache.InvalidateOnWrite)

			r.Post("/auth/logout", auth.Logout)
			r.Get("/auth/me", auth.Me)
			r.Post("/auth/password", auth.ChangePassword)
			r.Post("/auth/2fa/setup", auth.SetupTOTP)
			r.Post("/auth/2fa/enable", auth.EnableTOTP)

			r.Get("/dashboard", admin.Dashboard)

			r.Route("/categories", func(r chi.Router) {
				r.Use(middleware.RequirePermission(models.PermCategoriesWrite))
				contentRoutes(r, admin.Categories)
			})
			r.Route("/courses", func(r chi.Router) {
				r.Use(middleware.RequirePermission(models.PermCoursesWrite))
				contentRoutes(r, admin.Courses)
			})
			r.Route("/posts", func(r chi.Router) {
				r.Use(middleware.RequirePermission(models.PermBlogsWrite))
				contentRoutes(r, admin.Blogs)
			})

			r.Route("/admins", func(r chi.Router) {
				r.Use(middleware.RequirePermission(models.PermAdminsWrite))
				r.Get("/", admin.ListAdmins)
				r.Post("/", admin.CreateAdmin)
				r.Get("/{id}", admin.GetAdmin)
				r.Put("/{id}", admin.UpdateAdmin)
				r.Delete("/{id}", admin.DeleteAdmin)
				r.Post("/{id}/restore", admin.RestoreAdmin)
				r.Post("/{id}/password", admin.ResetAdminPassword)
				r.Post("/{id}/reset-2fa", admin.ResetAdminTOTP)
			})

			r.With(middleware.RequirePermission(models.PermSettingsWrite)).Get("/settings", admin.Settings)
			r.With(middleware.RequirePermission(models.PermSettingsWrite)).Put("/settings", admin.UpdateSettings)

			r.With(middleware.RequirePermission(models.PermUploadsWrite)).Post("/uploads", admin.Upload)
			r.With(middleware.RequirePermission(models.PermUploadsWrite)).Delete("/uploads", admin.DeleteUpload)

			r.With(middleware.RequirePermission(models.PermInquiriesRead)).Get("/inquiries", admin.Inquiries)
			r.With(middleware.RequirePermission(models.PermAuditRead)).Get("/audit", admin.AuditLog)
		})
	})

	return r
}

// contentRoutes mounts the CRUD and bulk endpoints of one content type.
func contentRoutes[T any](r chi.Router, h *handlers.Content[T]) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/bulk", h.Bulk)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/restore", h.Restore)
}

// healthHandler reports ok when every dependency check passes, and 503
// with the failing checks otherwise.
func healthHandler(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				slog.Warn("health check failed", "check", name, "error", err)
				status[name] = "unavailable"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		respond.JSON(w, code, status)
	}
}
