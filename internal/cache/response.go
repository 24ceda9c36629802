// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package cache keeps rendered JSON responses of the public read endpoints
// in Valkey. Entries are dropped wholesale whenever content changes.
package cache

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// keyPrefix namespaces cached responses in Valkey.
	keyPrefix = "response:"

	// DefaultTTL bounds how stale a cached response can get when nothing
	// invalidates it, e.g. a post whose publish time passes between
	// scheduler runs.
	DefaultTTL = time.Minute

	// maxKeyLen skips caching for absurdly long query strings.
	maxKeyLen = 512

	// opTimeout bounds each Valkey round trip made on behalf of a request.
	opTimeout = 500 * time.Millisecond
)

// Responses caches public GET responses. A nil *Responses is valid and
// caches nothing.
type Responses struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a response cache. A ttl of zero uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Responses {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Responses{client: client, ttl: ttl}
}

// Key returns the Valkey key of a request URI.
func Key(requestURI string) string {
	return keyPrefix + requestURI
}

// Get returns a cached body. Errors count as misses.
func (c *Responses) Get(ctx context.Context, uri string) ([]byte, bool) {
	data, err := c.client.Get(ctx, Key(uri)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("response cache get failed", "uri", uri, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores a body under uri.
func (c *Responses) Set(ctx context.Context, uri string, body []byte) {
	if err := c.client.Set(ctx, Key(uri), body, c.ttl).Err(); err != nil {
		slog.Warn("response cache set failed", "uri", uri, "error", err)
	}
}

// InvalidateAll removes every cached response. It uses SCAN so large
// keyspaces do not block the server.
func (c *Responses) InvalidateAll(ctx context.Context) {
	if c == nil {
		return
	}
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			slog.Warn("response cache scan failed", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("response cache delete failed", "error", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// Middleware serves GET requests from the cache and stores 200 responses
// on a miss. The X-Cache header reports HIT or MISS.
func (c *Responses) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.RequestURI()
		if r.Method != http.MethodGet || len(uri) > maxKeyLen {
			next.ServeHTTP(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
		body, ok := c.Get(ctx, uri)
		cancel()
		if ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			w.Write(body)
			return
		}

		w.Header().Set("X-Cache", "MISS")
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status == http.StatusOK {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), opTimeout)
			c.Set(ctx, uri, rec.buf.Bytes())
			cancel()
		}
	})
}

// InvalidateOnWrite clears the cache after every successful request that
// is not a GET, HEAD or OPTIONS.
func (c *Responses) InvalidateOnWrite(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status < 300 {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*opTimeout)
			c.InvalidateAll(ctx)
			cancel()
		}
	})
}

// recorder copies the body it writes so it can be cached.
type recorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
