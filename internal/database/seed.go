package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// DefaultAdminPassword is the development password used when no seed
// password is configured.
const DefaultAdminPassword = "admin"

// Seed populates the database with the initial admin account.
// It creates an admin only if no account exists. The admin will be
// prompted to set up 2FA after the first login (totp_enabled = false).
func Seed(ctx context.Context, db *sql.DB, email, password string) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM admins").Scan(&count); err != nil {
		return fmt.Errorf("seed check admins: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	if password == "" {
		password = DefaultAdminPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO admins (username, email, password_hash, role, permissions)
		VALUES ($1, $2, $3, 'admin',
		        '{"categories":true,"courses":true,"blogs":true,"settings":true,"uploads":true,
		          "inquiries":true,"analytics":true,"admins":true,"audit":true}'::jsonb)
	`, "admin", email, string(hash))
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	if password == DefaultAdminPassword {
		slog.Warn("database seeded with default admin password, change it after first login",
			"email", email)
	} else {
		slog.Info("database seeded with admin account", "email", email)
	}

	return nil
}
