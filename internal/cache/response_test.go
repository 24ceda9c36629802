// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// testValkeyClient returns a Redis client for tests.
// Skips if Valkey is unavailable.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15, // Use DB 15 for tests.
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping integration test: Valkey not reachable: %v", err)
	}

	cleanup := func() {
		keys, _ := client.Keys(ctx, keyPrefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})

	return client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestKey(t *testing.T) {
	if got := Key("/courses?page=2"); got != "response:/courses?page=2" {
		t.Errorf("Key: got %q", got)
	}
}

func TestNewDefaultTTL(t *testing.T) {
	if c := New(nil, 0); c.ttl != DefaultTTL {
		t.Errorf("expected DefaultTTL (%v), got %v", DefaultTTL, c.ttl)
	}
	if c := New(nil, time.Hour); c.ttl != time.Hour {
		t.Errorf("expected 1h, got %v", c.ttl)
	}
}

func TestNilCachePassesThrough(t *testing.T) {
	var c *Responses
	calls := 0
	h := c.Middleware(c.InvalidateOnWrite(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{}`))
	})))

	for range 2 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/tags", nil))
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/x", nil))
	if calls != 3 {
		t.Errorf("handler calls: got %d, want 3", calls)
	}
	c.InvalidateAll(context.Background())
}

func TestSetAndGet(t *testing.T) {
	c := New(testValkeyClient(t), time.Minute)
	ctx := context.Background()

	if data, ok := c.Get(ctx, "/tags"); ok || data != nil {
		t.Error("expected cache miss")
	}

	c.Set(ctx, "/tags", []byte(`{"data":[]}`))

	data, ok := c.Get(ctx, "/tags")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(data) != `{"data":[]}` {
		t.Errorf("data mismatch: got %q", data)
	}
}

func TestInvalidateAll(t *testing.T) {
	client := testValkeyClient(t)
	c := New(client, time.Minute)
	ctx := context.Background()

	client.Set(ctx, "unrelated", "keep", time.Minute)
	t.Cleanup(func() { client.Del(ctx, "unrelated") })

	for _, uri := range []string{"/courses", "/blogs", "/tags"} {
		c.Set(ctx, uri, []byte("x"))
	}

	c.InvalidateAll(ctx)

	for _, uri := range []string{"/courses", "/blogs", "/tags"} {
		if _, ok := c.Get(ctx, uri); ok {
			t.Errorf("expected miss for %q after InvalidateAll", uri)
		}
	}
	if v, _ := client.Get(ctx, "unrelated").Result(); v != "keep" {
		t.Error("InvalidateAll removed a key outside the cache namespace")
	}
}

func TestMiddleware(t *testing.T) {
	c := New(testValkeyClient(t), time.Minute)

	calls := 0
	status := http.StatusOK
	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"data":"` + r.URL.Query().Get("q") + `"}`))
	}))

	get := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", target, nil))
		return w
	}

	first := get("/courses?q=go")
	if first.Header().Get("X-Cache") != "MISS" {
		t.Errorf("first request: X-Cache %q, want MISS", first.Header().Get("X-Cache"))
	}
	second := get("/courses?q=go")
	if second.Header().Get("X-Cache") != "HIT" {
		t.Errorf("second request: X-Cache %q, want HIT", second.Header().Get("X-Cache"))
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("cached body: got %q, want %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Errorf("cached content type: got %q", second.Header().Get("Content-Type"))
	}
	if calls != 1 {
		t.Errorf("handler calls: got %d, want 1", calls)
	}

	// A different query string is a different entry.
	get("/courses?q=rust")
	if calls != 2 {
		t.Errorf("handler calls after new query: got %d, want 2", calls)
	}

	// Errors are never cached.
	status = http.StatusNotFound
	get("/categories/missing")
	get("/categories/missing")
	if calls != 4 {
		t.Errorf("handler calls after 404s: got %d, want 4", calls)
	}
}

func TestInvalidateOnWrite(t *testing.T) {
	c := New(testValkeyClient(t), time.Minute)
	ctx := context.Background()

	status := http.StatusOK
	h := c.InvalidateOnWrite(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	send := func(method string) {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, "/admin/courses", nil))
	}

	c.Set(ctx, "/courses", []byte("x"))

	send("GET")
	if _, ok := c.Get(ctx, "/courses"); !ok {
		t.Fatal("GET invalidated the cache")
	}

	status = http.StatusBadRequest
	send("POST")
	if _, ok := c.Get(ctx, "/courses"); !ok {
		t.Fatal("failed write invalidated the cache")
	}

	status = http.StatusCreated
	send("POST")
	if _, ok := c.Get(ctx, "/courses"); ok {
		t.Error("successful write kept the cache")
	}
}
