// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"coursepress/internal/apperr"
	"coursepress/internal/models"
	"coursepress/internal/validate"
)

const adminKind = "admin"

const adminColumns = `id, username, email, password_hash, role, is_active, permissions,
	failed_attempts, lock_until, last_login_at, totp_secret, totp_enabled,
	created_by, updated_by, deleted_by, is_deleted, deleted_at, created_at, updated_at`

// scanAdmin scans a row into an Admin struct.
func scanAdmin(row scanner) (*models.Admin, error) {
	var a models.Admin
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.IsActive, &a.Permissions,
		&a.FailedAttempts, &a.LockUntil, &a.LastLoginAt, &a.TOTPSecret, &a.TOTPEnabled,
		&a.CreatedBy, &a.UpdatedBy, &a.DeletedBy, &a.IsDeleted, &a.DeletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// NewAdmin is the input for creating an admin account. Permissions default
// to the role's defaults when nil.
type NewAdmin struct {
	Username    string              `json:"username" validate:"notblank,min=3,max=60"`
	Email       string              `json:"email" validate:"required,email,max=254"`
	Password    string              `json:"password" validate:"required,min=8,max=72"`
	Role        models.Role         `json:"role" validate:"oneof=admin editor moderator"`
	Permissions *models.Permissions `json:"permissions"`
	IsActive    *bool               `json:"is_active"`
}

// AdminPatch holds the account fields an admin may change; nil fields are
// left untouched.
type AdminPatch struct {
	Username    *string             `json:"username" validate:"omitnil,notblank,min=3,max=60"`
	Email       *string             `json:"email" validate:"omitnil,email,max=254"`
	Role        *models.Role        `json:"role" validate:"omitnil,oneof=admin editor moderator"`
	Permissions *models.Permissions `json:"permissions"`
	IsActive    *bool               `json:"is_active"`
}

// AdminStore persists admin accounts: credentials, lockout state, 2FA and
// the shared audit fields.
type AdminStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewAdminStore creates a new AdminStore with the given database connection.
func NewAdminStore(db *sql.DB, timeout time.Duration) *AdminStore {
	return &AdminStore{db: db, timeout: timeout}
}

// identityTaken reports which of username and email a live account other
// than self already uses.
func identityTaken(ctx context.Context, q Querier, username, email string, self uuid.UUID) error {
	var userTaken, emailTaken bool
	err := q.QueryRowContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM admins WHERE LOWER(username) = LOWER($1) AND NOT is_deleted AND id <> $3),
			EXISTS (SELECT 1 FROM admins WHERE LOWER(email) = LOWER($2) AND NOT is_deleted AND id <> $3)
	`, username, email, self).Scan(&userTaken, &emailTaken)
	if err != nil {
		return fmt.Errorf("check identity: %w", err)
	}
	switch {
	case emailTaken:
		return apperr.DuplicateIdentity("An account with this email already exists.")
	case userTaken:
		return apperr.DuplicateIdentity("An account with this username already exists.")
	}
	return nil
}

// Create inserts a new account with a bcrypt-hashed password.
func (s *AdminStore) Create(ctx context.Context, in NewAdmin, actor uuid.UUID) (*models.Admin, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = models.RoleEditor
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	perms := models.DefaultPermissions(in.Role)
	if in.Permissions != nil {
		perms = *in.Permissions
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var created *models.Admin
	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := identityTaken(ctx, tx, in.Username, in.Email, uuid.Nil); err != nil {
			return err
		}
		a, err := scanAdmin(tx.QueryRowContext(ctx, `
			INSERT INTO admins (username, email, password_hash, role, is_active, permissions, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+adminColumns,
			in.Username, in.Email, string(hash), in.Role, active, perms, actorRef(actor)))
		if err != nil {
			return fmt.Errorf("insert admin: %w", err)
		}
		created = a
		return recordAudit(ctx, tx, adminKind, a.ID, models.ActionCreate, actor)
	})
	if _, dup := uniqueViolation(err); dup {
		return nil, apperr.DuplicateIdentity("An account with this username or email already exists.")
	}
	if err != nil {
		return nil, classify(err, "create admin")
	}
	return created, nil
}

// FindByEmail retrieves a live account by email, case-insensitively.
// Returns nil if not found.
func (s *AdminStore) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	a, err := scanAdmin(s.db.QueryRowContext(ctx, `
		SELECT `+adminColumns+` FROM admins
		WHERE LOWER(email) = LOWER($1) AND NOT is_deleted
	`, strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "find admin by email")
	}
	return a, nil
}

// FindByID retrieves an account in any state by its UUID. Returns nil if
// not found.
func (s *AdminStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	a, err := scanAdmin(s.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "find admin by id")
	}
	return a, nil
}

// List returns accounts ordered by creation date, with the total count.
func (s *AdminStore) List(ctx context.Context, deleted DeletedMode, pg Page) ([]models.Admin, int, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	pg = pg.Normalize()
	cond := deleted.clause()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins WHERE `+cond).Scan(&total); err != nil {
		return nil, 0, classify(err, "count admins")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+adminColumns+` FROM admins WHERE `+cond+`
		ORDER BY created_at ASC, id ASC LIMIT $1 OFFSET $2
	`, pg.PageSize, pg.Offset())
	if err != nil {
		return nil, 0, classify(err, "list admins")
	}
	defer rows.Close()

	admins := make([]models.Admin, 0, pg.PageSize)
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, 0, classify(err, "scan admin")
		}
		admins = append(admins, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(err, "list admins")
	}
	return admins, total, nil
}

// Update applies patch to the live account id.
func (s *AdminStore) Update(ctx context.Context, id uuid.UUID, patch AdminPatch, actor uuid.UUID) (*models.Admin, error) {
	if err := validate.Struct(patch); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var updated *models.Admin
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		a, err := s.lockLive(ctx, tx, id)
		if err != nil {
			return err
		}

		if patch.Username != nil {
			a.Username = strings.TrimSpace(*patch.Username)
		}
		if patch.Email != nil {
			a.Email = strings.ToLower(strings.TrimSpace(*patch.Email))
		}
		if patch.Role != nil && *patch.Role != a.Role {
			a.Role = *patch.Role
			if patch.Permissions == nil {
				a.Permissions = models.DefaultPermissions(a.Role)
			}
		}
		if patch.Permissions != nil {
			a.Permissions = *patch.Permissions
		}
		if patch.IsActive != nil {
			a.IsActive = *patch.IsActive
		}

		if err := identityTaken(ctx, tx, a.Username, a.Email, id); err != nil {
			return err
		}
		if updated, err = scanAdmin(tx.QueryRowContext(ctx, `
			UPDATE admins
			SET username = $1, email = $2, role = $3, permissions = $4, is_active = $5,
			    updated_by = $6, updated_at = NOW()
			WHERE id = $7
			RETURNING `+adminColumns,
			a.Username, a.Email, a.Role, a.Permissions, a.IsActive, actorRef(actor), id)); err != nil {
			return fmt.Errorf("update admin: %w", err)
		}
		return recordAudit(ctx, tx, adminKind, id, models.ActionUpdate, actor)
	})
	if _, dup := uniqueViolation(err); dup {
		return nil, apperr.DuplicateIdentity("An account with this username or email already exists.")
	}
	if err != nil {
		return nil, classify(err, "update admin")
	}
	return updated, nil
}

// lockLive loads the live account id under a row lock.
func (s *AdminStore) lockLive(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Admin, error) {
	a, err := scanAdmin(tx.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Account")
	}
	if err != nil {
		return nil, fmt.Errorf("load admin: %w", err)
	}
	if a.IsDeleted {
		return nil, apperr.NotFound("Account")
	}
	return a, nil
}

// SetPassword replaces the password of the live account id.
func (s *AdminStore) SetPassword(ctx context.Context, id uuid.UUID, password string, actor uuid.UUID) error {
	if err := validate.Var("password", password, "required,min=8,max=72"); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE admins SET password_hash = $1, updated_by = $2, updated_at = NOW()
			WHERE id = $3 AND NOT is_deleted
		`, string(hash), actorRef(actor), id)
		if err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("Account")
		}
		return recordAudit(ctx, tx, adminKind, id, models.ActionUpdate, actor)
	})
	return classify(err, "set admin password")
}

// SoftDelete marks the account as deleted. The last live account with the
// admin role cannot be deleted.
func (s *AdminStore) SoftDelete(ctx context.Context, id, actor uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		a, err := s.lockLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if a.Role == models.RoleAdmin {
			// Lock the remaining admins so two concurrent deletes cannot
			// both see another admin left.
			var others int
			if err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM (
					SELECT id FROM admins
					WHERE role = 'admin' AND is_active AND NOT is_deleted AND id <> $1
					FOR UPDATE
				) AS remaining
			`, id).Scan(&others); err != nil {
				return fmt.Errorf("count admins: %w", err)
			}
			if others == 0 {
				return apperr.Conflict("The last active admin account cannot be deleted.")
			}
		}
		if _, err := markDeleted(ctx, tx, "admins", id, actor); err != nil {
			return err
		}
		return recordAudit(ctx, tx, adminKind, id, models.ActionDelete, actor)
	})
	return classify(err, "delete admin")
}

// Restore reactivates a deleted account. It fails with Conflict when a
// live account has claimed its username or email in the meantime.
func (s *AdminStore) Restore(ctx context.Context, id, actor uuid.UUID) (*models.Admin, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var restored *models.Admin
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		a, err := scanAdmin(tx.QueryRowContext(ctx,
			`SELECT `+adminColumns+` FROM admins WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("Account")
		}
		if err != nil {
			return fmt.Errorf("load admin: %w", err)
		}
		if !a.IsDeleted {
			restored = a
			return nil
		}

		if err := identityTaken(ctx, tx, a.Username, a.Email, id); err != nil {
			return apperr.Conflict("The account's username or email has been claimed by another account.")
		}
		if err := clearDeleted(ctx, tx, "admins", id, actor); err != nil {
			return err
		}
		if restored, err = scanAdmin(tx.QueryRowContext(ctx,
			`SELECT `+adminColumns+` FROM admins WHERE id = $1`, id)); err != nil {
			return fmt.Errorf("reload admin: %w", err)
		}
		return recordAudit(ctx, tx, adminKind, id, models.ActionRestore, actor)
	})
	if _, dup := uniqueViolation(err); dup {
		return nil, apperr.Conflict("The account's username or email has been claimed by another account.")
	}
	if err != nil {
		return nil, classify(err, "restore admin")
	}
	return restored, nil
}

// VerifyPassword compares candidate against the stored hash in constant
// time.
func (s *AdminStore) VerifyPassword(a *models.Admin, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(candidate)) == nil
}

// RecordFailedAttempt atomically counts a failed login for id. A lock that
// has already expired restarts the count at one; reaching threshold locks
// the account until now+lockFor. It returns the new count and lock expiry.
func (s *AdminStore) RecordFailedAttempt(ctx context.Context, id uuid.UUID, now time.Time, threshold int, lockFor time.Duration) (int, *time.Time, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var (
		attempts  int
		lockUntil *time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		UPDATE admins SET
			failed_attempts = CASE
				WHEN lock_until IS NOT NULL AND lock_until <= $2::timestamptz THEN 1
				ELSE failed_attempts + 1
			END,
			lock_until = CASE
				WHEN lock_until > $2::timestamptz THEN lock_until
				WHEN (CASE WHEN lock_until IS NOT NULL THEN 1 ELSE failed_attempts + 1 END) >= $3
					THEN $4::timestamptz
				ELSE NULL
			END
		WHERE id = $1
		RETURNING failed_attempts, lock_until
	`, id, now, threshold, now.Add(lockFor)).Scan(&attempts, &lockUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, apperr.NotFound("Account")
	}
	if err != nil {
		return 0, nil, classify(err, "record failed attempt")
	}
	return attempts, lockUntil, nil
}

// RecordSuccess resets the failure counter and lock and stamps the login.
func (s *AdminStore) RecordSuccess(ctx context.Context, id uuid.UUID, now time.Time) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE admins SET failed_attempts = 0, lock_until = NULL, last_login_at = $2
		WHERE id = $1
	`, id, now)
	return classify(err, "record login success")
}

// SetTOTPSecret saves the TOTP secret for an account (during 2FA setup).
func (s *AdminStore) SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE admins SET totp_secret = $1, totp_enabled = FALSE, updated_at = NOW() WHERE id = $2
	`, secret, id)
	return classify(err, "set totp secret")
}

// EnableTOTP marks 2FA as active (after successful code verification).
func (s *AdminStore) EnableTOTP(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE admins SET totp_enabled = TRUE, updated_at = NOW()
		WHERE id = $1 AND totp_secret IS NOT NULL
	`, id)
	return classify(err, "enable totp")
}

// ResetTOTP clears the TOTP secret and disables 2FA for an account.
func (s *AdminStore) ResetTOTP(ctx context.Context, id, actor uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE admins SET totp_secret = NULL, totp_enabled = FALSE, updated_by = $2, updated_at = NOW()
			WHERE id = $1 AND NOT is_deleted
		`, id, actorRef(actor))
		if err != nil {
			return fmt.Errorf("reset totp: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("Account")
		}
		return recordAudit(ctx, tx, adminKind, id, models.ActionUpdate, actor)
	})
	return classify(err, "reset totp")
}

// Count returns the number of live accounts.
func (s *AdminStore) Count(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins WHERE NOT is_deleted`).Scan(&n)
	return n, classify(err, "count admins")
}
