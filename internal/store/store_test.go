// store_test.go provides a shared test database helper for all store
// integration tests. Tests are skipped if PostgreSQL is not available.
package store

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"coursepress/internal/database"
	"coursepress/internal/models"
)

const testTimeout = 5 * time.Second

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "coursepress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "coursepress")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped. A cleanup
// function is registered to close the connection when the test finishes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := testDSN()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping integration test: cannot open DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	// Run migrations to ensure the schema is current.
	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Downgrade goose global state.
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// token returns a short random string for unique test names.
func token() string {
	return strings.ReplaceAll(uuid.NewString()[:8], "-", "")
}

// testAdmin creates a throwaway admin account and removes it, with
// everything it touched, when the test finishes.
func testAdmin(t *testing.T, db *sql.DB) *models.Admin {
	t.Helper()
	s := NewAdminStore(db, testTimeout)
	tok := token()
	a, err := s.Create(context.Background(), NewAdmin{
		Username: "tester-" + tok,
		Email:    "tester-" + tok + "@example.com",
		Password: "correct horse battery",
		Role:     models.RoleAdmin,
	}, uuid.Nil)
	if err != nil {
		t.Fatalf("create test admin: %v", err)
	}
	t.Cleanup(func() { cleanActor(db, a.ID) })
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
	// Children first, so parent references never block the delete.
	db.Exec("DELETE FROM categories WHERE created_by = $1 AND parent_id IS NOT NULL", id)
	db.Exec("DELETE FROM categories WHERE created_by = $1", id)
	db.Exec("UPDATE admins SET created_by = NULL, updated_by = NULL, deleted_by = NULL WHERE created_by = $1 OR updated_by = $1 OR deleted_by = $1", id)
	db.Exec("DELETE FROM admins WHERE id = $1", id)
}

// testCategory creates a live category owned by actor.
func testCategory(t *testing.T, db *sql.DB, actor uuid.UUID, name string) *models.Category {
	t.Helper()
	c, err := NewCategoryRepo(db, testTimeout).Create(context.Background(),
		&models.Category{Name: name, IsActive: true}, actor)
	if err != nil {
		t.Fatalf("create category %q: %v", name, err)
	}
	return c
}
