// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role represents an admin account's permission level in the system.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleEditor    Role = "editor"
	RoleModerator Role = "moderator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleModerator:
		return true
	}
	return false
}

// Permission is a "resource:action" descriptor checked by the guard.
type Permission string

const (
	PermCategoriesWrite Permission = "categories:write"
	PermCoursesWrite    Permission = "courses:write"
	PermBlogsWrite      Permission = "blogs:write"
	PermSettingsWrite   Permission = "settings:write"
	PermUploadsWrite    Permission = "uploads:write"
	PermInquiriesRead   Permission = "inquiries:read"
	PermAnalyticsRead   Permission = "analytics:read"
	PermAdminsWrite     Permission = "admins:write"
	PermAuditRead       Permission = "audit:read"
)

// Permissions holds one flag per content area. A set flag grants every
// permission of that area.
type Permissions struct {
	Categories bool `json:"categories"`
	Courses    bool `json:"courses"`
	Blogs      bool `json:"blogs"`
	Settings   bool `json:"settings"`
	Uploads    bool `json:"uploads"`
	Inquiries  bool `json:"inquiries"`
	Analytics  bool `json:"analytics"`
	Admins     bool `json:"admins"`
	Audit      bool `json:"audit"`
}

// Grants lists the permission descriptors the flags translate to.
func (p Permissions) Grants() []Permission {
	var out []Permission
	add := func(on bool, perm Permission) {
		if on {
			out = append(out, perm)
		}
	}
	add(p.Categories, PermCategoriesWrite)
	add(p.Courses, PermCoursesWrite)
	add(p.Blogs, PermBlogsWrite)
	add(p.Settings, PermSettingsWrite)
	add(p.Uploads, PermUploadsWrite)
	add(p.Inquiries, PermInquiriesRead)
	add(p.Analytics, PermAnalyticsRead)
	add(p.Admins, PermAdminsWrite)
	add(p.Audit, PermAuditRead)
	return out
}

// DefaultPermissions returns the flags given to a new account of the role
// when the creator does not choose them explicitly.
func DefaultPermissions(r Role) Permissions {
	switch r {
	case RoleAdmin:
		return Permissions{
			Categories: true, Courses: true, Blogs: true, Settings: true, Uploads: true,
			Inquiries: true, Analytics: true, Admins: true, Audit: true,
		}
	case RoleEditor:
		return Permissions{Categories: true, Courses: true, Blogs: true, Uploads: true, Analytics: true}
	case RoleModerator:
		return Permissions{Blogs: true, Inquiries: true}
	default:
		return Permissions{}
	}
}

// Value implements driver.Valuer (stored as JSONB).
func (p Permissions) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *Permissions) Scan(src any) error {
	return scanJSON(src, p)
}

// Admin represents a back-office account with credentials, lockout state
// and 2FA fields.
type Admin struct {
	ID             uuid.UUID   `json:"id"`
	Username       string      `json:"username"`
	Email          string      `json:"email"`
	PasswordHash   string      `json:"-"` // Never serialize the hash
	Role           Role        `json:"role"`
	IsActive       bool        `json:"is_active"`
	Permissions    Permissions `json:"permissions"`
	FailedAttempts int         `json:"failed_attempts"`
	LockUntil      *time.Time  `json:"lock_until,omitempty"`
	LastLoginAt    *time.Time  `json:"last_login_at,omitempty"`
	TOTPSecret     *string     `json:"-"` // Nullable; set during 2FA setup
	TOTPEnabled    bool        `json:"totp_enabled"`
	Audit
}

// IsAdmin returns true if the account has the admin role.
func (a *Admin) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsLocked reports whether a lockout is in effect at now.
func (a *Admin) IsLocked(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}
