// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"coursepress/internal/apperr"
	"coursepress/internal/models"
	"coursepress/internal/slug"
	"coursepress/internal/validate"
)

// Record is implemented by pointers to slug-bearing, soft-deletable,
// audit-stamped entities (Category, Course, Blog).
type Record interface {
	Meta() *models.Base
	SlugSource() string
}

// Schema describes how one entity type maps onto its table. Columns,
// Fields and Values list the entity-specific columns in the same order;
// the shared base columns are handled by the Repository.
type Schema[T any] struct {
	Kind        string // audit entity type, e.g. "course"
	Label       string // used in error messages, e.g. "Course"
	Table       string
	SourceField string // JSON name of the field the slug derives from

	Columns []string
	Fields  func(e *T) []any // scan targets
	Values  func(e *T) []any // insert/update values

	Visible     string // SQL predicate for public visibility
	PublicOrder string // ORDER BY for public listings, before the id tiebreak

	Filter       func(f Filter, add func(any) string) []string
	Prepare      func(e *T, now time.Time)
	Validate     func(ctx context.Context, q Querier, e *T) error
	BeforeDelete func(ctx context.Context, q Querier, id uuid.UUID) error
}

var baseColumns = []string{
	"id", "slug", "views", "likes", "shares",
	"created_by", "updated_by", "deleted_by", "is_deleted", "deleted_at",
	"created_at", "updated_at",
}

func baseFields(b *models.Base) []any {
	return []any{
		&b.ID, &b.Slug, &b.Views, &b.Likes, &b.Shares,
		&b.CreatedBy, &b.UpdatedBy, &b.DeletedBy, &b.IsDeleted, &b.DeletedAt,
		&b.CreatedAt, &b.UpdatedAt,
	}
}

// Repository implements create, update, soft delete, restore, lookup,
// listing and counter increments once for every entity type.
type Repository[T any, P interface {
	*T
	Record
}] struct {
	db      *sql.DB
	schema  Schema[T]
	sel     string
	timeout time.Duration
	now     func() time.Time
}

func newRepository[T any, P interface {
	*T
	Record
}](db *sql.DB, schema Schema[T], timeout time.Duration) *Repository[T, P] {
	return &Repository[T, P]{
		db:      db,
		schema:  schema,
		sel:     strings.Join(slices.Concat(baseColumns, schema.Columns), ", "),
		timeout: timeout,
		now:     time.Now,
	}
}

// Kind returns the entity type name used in the audit trail.
func (r *Repository[T, P]) Kind() string {
	return r.schema.Kind
}

func (r *Repository[T, P]) scan(row scanner) (*T, error) {
	e := new(T)
	targets := append(baseFields(P(e).Meta()), r.schema.Fields(e)...)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	return e, nil
}

// check normalises and validates e before a write.
func (r *Repository[T, P]) check(ctx context.Context, q Querier, e *T) error {
	if r.schema.Prepare != nil {
		r.schema.Prepare(e, r.now())
	}
	if err := validate.Struct(e); err != nil {
		return err
	}
	if r.schema.Validate != nil {
		return r.schema.Validate(ctx, q, e)
	}
	return nil
}

// slugBase derives the slug stem from the entity's title or name.
func (r *Repository[T, P]) slugBase(e P) (string, error) {
	base := slug.Truncate(slug.Generate(e.SlugSource()), slug.MaxLength)
	if base == "" {
		return "", apperr.Invalid(r.schema.SourceField, "must contain at least one letter or digit")
	}
	return base, nil
}

// deriveSlug returns base or the first free numeric variant of it. Slugs of
// deleted rows count as taken so a deleted entity's public identifier is
// never handed to a new one.
func (r *Repository[T, P]) deriveSlug(ctx context.Context, q Querier, base string, self uuid.UUID) (string, error) {
	// Long bases lose their tail to make room for the suffix, so every
	// candidate starts with the stem rather than the full base.
	rows, err := q.QueryContext(ctx,
		`SELECT slug FROM `+r.schema.Table+` WHERE slug LIKE $1 AND id <> $2`,
		slug.Stem(base)+"%", self)
	if err != nil {
		return "", fmt.Errorf("load slugs: %w", err)
	}
	defer rows.Close()

	taken := make(map[string]bool)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return "", fmt.Errorf("scan slug: %w", err)
		}
		taken[s] = true
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("load slugs: %w", err)
	}
	return slug.Unique(base, func(s string) bool { return taken[s] }), nil
}

// ensureSlugFree fails with DuplicateSlug when a live row other than self
// holds s.
func (r *Repository[T, P]) ensureSlugFree(ctx context.Context, q Querier, s string, self uuid.UUID) error {
	taken, err := r.slugTaken(ctx, q, s, self)
	if err != nil {
		return err
	}
	if taken {
		return apperr.DuplicateSlug(s)
	}
	return nil
}

func (r *Repository[T, P]) slugTaken(ctx context.Context, q Querier, s string, self uuid.UUID) (bool, error) {
	var taken bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+r.schema.Table+` WHERE slug = $1 AND NOT is_deleted AND id <> $2)`,
		s, self).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return taken, nil
}

// Create validates e, assigns its slug and inserts it. A slug supplied in
// e is used as is and must be free among live rows; otherwise the slug is
// derived from the title.
func (r *Repository[T, P]) Create(ctx context.Context, e *T, actor uuid.UUID) (*T, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.check(ctx, r.db, e); err != nil {
		return nil, classify(err, "create "+r.schema.Kind)
	}

	explicit := P(e).Meta().Slug
	var base string
	if explicit == "" {
		var err error
		if base, err = r.slugBase(P(e)); err != nil {
			return nil, err
		}
	}

	for attempt := 1; ; attempt++ {
		var created *T
		err := inTx(ctx, r.db, func(tx *sql.Tx) error {
			s := explicit
			if s == "" {
				var err error
				if s, err = r.deriveSlug(ctx, tx, base, uuid.Nil); err != nil {
					return err
				}
			} else if err := r.ensureSlugFree(ctx, tx, s, uuid.Nil); err != nil {
				return err
			}

			a := &args{}
			cols := append([]string{"slug", "created_by"}, r.schema.Columns...)
			ph := []string{a.add(s), a.add(actorRef(actor))}
			for _, v := range r.schema.Values(e) {
				ph = append(ph, a.add(v))
			}

			row := tx.QueryRowContext(ctx, fmt.Sprintf(
				"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
				r.schema.Table, strings.Join(cols, ", "), strings.Join(ph, ", "), r.sel,
			), a.values...)
			out, err := r.scan(row)
			if err != nil {
				return fmt.Errorf("insert: %w", err)
			}
			if err := recordAudit(ctx, tx, r.schema.Kind, P(out).Meta().ID, models.ActionCreate, actor); err != nil {
				return err
			}
			created = out
			return nil
		})

		if _, dup := uniqueViolation(err); dup {
			if explicit != "" {
				return nil, apperr.DuplicateSlug(explicit)
			}
			if attempt < maxSlugAttempts {
				continue
			}
			return nil, apperr.DuplicateSlug(base)
		}
		if err != nil {
			return nil, classify(err, "create "+r.schema.Kind)
		}
		return created, nil
	}
}

// Update applies mutate to the live entity id and saves it. See Transition.
func (r *Repository[T, P]) Update(ctx context.Context, id, actor uuid.UUID, mutate func(*T) error) (*T, error) {
	return r.Transition(ctx, id, actor, models.ActionUpdate, mutate)
}

// Transition loads the live entity id under a row lock, applies mutate and
// saves the result, recording action in the audit trail. Base fields
// (counters, audit stamps) cannot be changed by mutate, except the slug:
// a new non-empty slug is taken as is, an empty one is re-derived, and an
// unchanged slug is re-derived only when the title changed. mutate may run
// more than once if a concurrent writer claims the derived slug.
func (r *Repository[T, P]) Transition(ctx context.Context, id, actor uuid.UUID, action models.AuditAction, mutate func(*T) error) (*T, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		var (
			updated   *T
			requested string
			base      string
		)
		err := inTx(ctx, r.db, func(tx *sql.Tx) error {
			cur, err := r.lock(ctx, tx, id)
			if err != nil {
				return err
			}
			p := P(cur)
			if p.Meta().IsDeleted {
				return apperr.NotFound(r.schema.Label)
			}

			frozen := *p.Meta()
			oldSource := p.SlugSource()
			if err := mutate(cur); err != nil {
				return err
			}
			requested = p.Meta().Slug
			*p.Meta() = frozen

			if err := r.check(ctx, tx, cur); err != nil {
				return err
			}

			newSlug := frozen.Slug
			switch {
			case requested != "" && requested != frozen.Slug:
				if err := validate.Var("slug", requested, "slug,max=200"); err != nil {
					return err
				}
				if err := r.ensureSlugFree(ctx, tx, requested, id); err != nil {
					return err
				}
				newSlug = requested
			case requested == "" || p.SlugSource() != oldSource:
				if base, err = r.slugBase(p); err != nil {
					return err
				}
				if newSlug, err = r.deriveSlug(ctx, tx, base, id); err != nil {
					return err
				}
			}

			a := &args{}
			sets := make([]string, 0, len(r.schema.Columns)+3)
			for i, v := range r.schema.Values(cur) {
				sets = append(sets, r.schema.Columns[i]+" = "+a.add(v))
			}
			sets = append(sets,
				"slug = "+a.add(newSlug),
				"updated_by = COALESCE("+a.add(actorRef(actor))+"::uuid, updated_by)",
				"updated_at = NOW()",
			)
			row := tx.QueryRowContext(ctx, fmt.Sprintf(
				"UPDATE %s SET %s WHERE id = %s RETURNING %s",
				r.schema.Table, strings.Join(sets, ", "), a.add(id), r.sel,
			), a.values...)
			if updated, err = r.scan(row); err != nil {
				return fmt.Errorf("update: %w", err)
			}
			return recordAudit(ctx, tx, r.schema.Kind, id, action, actor)
		})

		if _, dup := uniqueViolation(err); dup {
			if requested != "" && base == "" {
				return nil, apperr.DuplicateSlug(requested)
			}
			if attempt < maxSlugAttempts {
				continue
			}
			return nil, apperr.DuplicateSlug(base)
		}
		if err != nil {
			return nil, classify(err, "update "+r.schema.Kind)
		}
		return updated, nil
	}
}

// lock loads id with a row lock held until the transaction ends.
func (r *Repository[T, P]) lock(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*T, error) {
	e, err := r.scan(tx.QueryRowContext(ctx,
		`SELECT `+r.sel+` FROM `+r.schema.Table+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(r.schema.Label)
	}
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return e, nil
}

// SoftDelete marks the live entity id as deleted. Its slug stays reserved.
func (r *Repository[T, P]) SoftDelete(ctx context.Context, id, actor uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		if r.schema.BeforeDelete != nil {
			if err := r.schema.BeforeDelete(ctx, tx, id); err != nil {
				return err
			}
		}
		ok, err := markDeleted(ctx, tx, r.schema.Table, id, actor)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound(r.schema.Label)
		}
		return recordAudit(ctx, tx, r.schema.Kind, id, models.ActionDelete, actor)
	})
	return classify(err, "delete "+r.schema.Kind)
}

// Restore clears the deleted flag of id. It fails with Conflict when a live
// entity has claimed the slug in the meantime. Restoring a live entity is
// a no-op.
func (r *Repository[T, P]) Restore(ctx context.Context, id, actor uuid.UUID) (*T, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var (
		restored *T
		held     string
	)
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		cur, err := r.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		m := P(cur).Meta()
		held = m.Slug
		if !m.IsDeleted {
			restored = cur
			return nil
		}

		taken, err := r.slugTaken(ctx, tx, m.Slug, id)
		if err != nil {
			return err
		}
		if taken {
			return r.slugClaimed(m.Slug)
		}
		if err := r.checkReferences(ctx, tx, cur); err != nil {
			return err
		}

		if err := clearDeleted(ctx, tx, r.schema.Table, id, actor); err != nil {
			return err
		}
		if restored, err = r.scan(tx.QueryRowContext(ctx,
			`SELECT `+r.sel+` FROM `+r.schema.Table+` WHERE id = $1`, id)); err != nil {
			return fmt.Errorf("reload: %w", err)
		}
		return recordAudit(ctx, tx, r.schema.Kind, id, models.ActionRestore, actor)
	})
	if _, dup := uniqueViolation(err); dup {
		return nil, r.slugClaimed(held)
	}
	if err != nil {
		return nil, classify(err, "restore "+r.schema.Kind)
	}
	return restored, nil
}

// checkReferences re-runs the schema's reference checks before a restore.
// What the entity points to may have been deleted while it was, which
// makes the restore a conflict rather than a bad request.
func (r *Repository[T, P]) checkReferences(ctx context.Context, q Querier, e *T) error {
	if r.schema.Validate == nil {
		return nil
	}
	err := r.schema.Validate(ctx, q, e)
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind == apperr.KindValidation {
		reasons := make([]string, 0, len(ae.Fields))
		for field, msg := range ae.Fields {
			reasons = append(reasons, field+" "+msg)
		}
		slices.Sort(reasons)
		return apperr.Conflict(fmt.Sprintf("%s cannot be restored: %s.", r.schema.Label, strings.Join(reasons, "; ")))
	}
	return err
}

func (r *Repository[T, P]) slugClaimed(s string) error {
	return apperr.Conflict(fmt.Sprintf("Slug %q has been claimed by another %s.", s, r.schema.Kind))
}

// FindByID returns the entity in any state, deleted included. Returns nil
// if not found.
func (r *Repository[T, P]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	e, err := r.scan(r.db.QueryRowContext(ctx,
		`SELECT `+r.sel+` FROM `+r.schema.Table+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "find "+r.schema.Kind+" by id")
	}
	return e, nil
}

// FindBySlug returns the publicly visible entity with the slug. Returns nil
// if not found, deleted or not published.
func (r *Repository[T, P]) FindBySlug(ctx context.Context, s string) (*T, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	e, err := r.scan(r.db.QueryRowContext(ctx,
		`SELECT `+r.sel+` FROM `+r.schema.Table+`
		 WHERE slug = $1 AND NOT is_deleted AND (`+r.schema.Visible+`)`, s))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "find "+r.schema.Kind+" by slug")
	}
	return e, nil
}

// FindPublished lists publicly visible entities matching f, with the total
// match count. Ordering ends with the id so equal sort keys page stably.
func (r *Repository[T, P]) FindPublished(ctx context.Context, f Filter, pg Page) ([]T, int, error) {
	a := &args{}
	where := []string{"NOT is_deleted", "(" + r.schema.Visible + ")"}
	if r.schema.Filter != nil {
		where = append(where, r.schema.Filter(f, a.add)...)
	}
	return r.page(ctx, where, a, r.schema.PublicOrder, pg)
}

// List lists entities in any publication state for the back office.
// f.Deleted controls whether deleted rows are excluded, included or the
// only ones returned.
func (r *Repository[T, P]) List(ctx context.Context, f Filter, pg Page) ([]T, int, error) {
	a := &args{}
	where := []string{f.Deleted.clause()}
	if r.schema.Filter != nil {
		where = append(where, r.schema.Filter(f, a.add)...)
	}
	return r.page(ctx, where, a, "created_at DESC", pg)
}

func (r *Repository[T, P]) page(ctx context.Context, where []string, a *args, order string, pg Page) ([]T, int, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	pg = pg.Normalize()
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+r.schema.Table+` WHERE `+cond, a.values...).Scan(&total); err != nil {
		return nil, 0, classify(err, "count "+r.schema.Kind)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s, id DESC LIMIT %s OFFSET %s",
		r.sel, r.schema.Table, cond, order, a.add(pg.PageSize), a.add(pg.Offset()))
	rows, err := r.db.QueryContext(ctx, query, a.values...)
	if err != nil {
		return nil, 0, classify(err, "list "+r.schema.Kind)
	}
	defer rows.Close()

	items := make([]T, 0, pg.PageSize)
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, 0, classify(err, "scan "+r.schema.Kind)
		}
		items = append(items, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(err, "list "+r.schema.Kind)
	}
	return items, total, nil
}

// IncrementCounter atomically adds one to the named counter of the live
// entity id and returns the new value. It does not touch the audit stamps.
func (r *Repository[T, P]) IncrementCounter(ctx context.Context, id uuid.UUID, counter string) (int64, error) {
	if !models.IsCounter(counter) {
		return 0, apperr.Invalid("counter", "must be one of: views, likes, shares")
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var n int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(
		"UPDATE %s SET %s = %s + 1 WHERE id = $1 AND NOT is_deleted RETURNING %s",
		r.schema.Table, counter, counter, counter,
	), id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound(r.schema.Label)
	}
	if err != nil {
		return 0, classify(err, "increment "+r.schema.Kind+" "+counter)
	}
	return n, nil
}

// Count returns the number of live entities.
func (r *Repository[T, P]) Count(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+r.schema.Table+` WHERE NOT is_deleted`).Scan(&n); err != nil {
		return 0, classify(err, "count "+r.schema.Kind)
	}
	return n, nil
}
