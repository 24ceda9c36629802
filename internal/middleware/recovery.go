// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"coursepress/internal/apperr"
	"coursepress/internal/respond"
)

// Recoverer catches panics in downstream handlers, logs the stack trace,
// and answers with the unexpected-error envelope instead of crashing the
// server.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("panic recovered",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				respond.Error(w, r, apperr.Unexpected(fmt.Errorf("panic: %v", rec)))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
