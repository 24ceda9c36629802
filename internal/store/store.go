// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store provides database access methods for all CoursePress
// entities. Each store struct wraps a *sql.DB and exposes typed query
// methods; every call is bounded by the configured query timeout.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"coursepress/internal/apperr"
	"coursepress/internal/models"
)

// DefaultTimeout bounds a store call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Pagination limits.
const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// maxSlugAttempts is how often a derived slug is recomputed after losing
// a unique-index race to a concurrent writer.
const maxSlugAttempts = 3

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Page selects a window of a listing. Zero values select the first page
// with the default size.
type Page struct {
	Page     int
	PageSize int
}

// Normalize clamps the page into the supported range.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the SQL OFFSET for the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// DeletedMode selects how administrative listings treat soft-deleted rows.
type DeletedMode string

const (
	DeletedExclude DeletedMode = ""
	DeletedInclude DeletedMode = "include"
	DeletedOnly    DeletedMode = "only"
)

// clause returns the SQL predicate for the mode.
func (m DeletedMode) clause() string {
	switch m {
	case DeletedInclude:
		return "TRUE"
	case DeletedOnly:
		return "is_deleted"
	default:
		return "NOT is_deleted"
	}
}

// Filter narrows listings. Each schema applies the fields that make sense
// for its entity and ignores the rest.
type Filter struct {
	Category string // category slug
	Level    string
	Tag      string
	Search   string
	Status   string
	Featured *bool
	Active   *bool
	Deleted  DeletedMode
}

// withTimeout bounds ctx by d (DefaultTimeout when d is zero).
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// inTx runs fn inside a transaction, committing on success.
func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// uniqueViolation reports whether err is a Postgres unique violation and
// returns the violated constraint.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// classify turns deadline errors into Timeout so callers get the same
// error kind regardless of where the deadline fired.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// actorRef maps the zero UUID (system actions) to NULL.
func actorRef(actor uuid.UUID) *uuid.UUID {
	if actor == uuid.Nil {
		return nil
	}
	return &actor
}

// recordAudit appends one row to the audit trail.
func recordAudit(ctx context.Context, q Querier, entityType string, id uuid.UUID, action models.AuditAction, actor uuid.UUID) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO audit_events (entity_type, entity_id, action, actor_id)
		VALUES ($1, $2, $3, $4)
	`, entityType, id, action, actorRef(actor))
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// markDeleted soft-deletes the live row id in table. It returns false when
// no live row matched.
func markDeleted(ctx context.Context, q Querier, table string, id, actor uuid.UUID) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE `+table+`
		SET is_deleted = TRUE, deleted_at = NOW(), deleted_by = $2, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
	`, id, actorRef(actor))
	if err != nil {
		return false, fmt.Errorf("soft delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete rows: %w", err)
	}
	return n == 1, nil
}

// clearDeleted restores the soft-deleted row id in table.
func clearDeleted(ctx context.Context, q Querier, table string, id, actor uuid.UUID) error {
	_, err := q.ExecContext(ctx, `
		UPDATE `+table+`
		SET is_deleted = FALSE, deleted_at = NULL, deleted_by = NULL, updated_by = $2, updated_at = NOW()
		WHERE id = $1
	`, id, actorRef(actor))
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}

// likePattern builds an ILIKE pattern that matches s anywhere, with the
// LIKE wildcards in s escaped.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(s)) + "%"
}

// args accumulates positional query arguments.
type args struct {
	values []any
}

// add appends v and returns its placeholder.
func (a *args) add(v any) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}
