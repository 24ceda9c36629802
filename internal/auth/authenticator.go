// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package auth verifies admin credentials, enforces the lockout policy,
// issues and verifies bearer tokens, and decides permissions.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"coursepress/internal/apperr"
	"coursepress/internal/models"
)

// Login errors.
var (
	ErrInvalidCredentials = apperr.Unauthenticated("invalid_credentials", "Invalid email or password.")
	ErrOTPRequired        = apperr.Unauthenticated("otp_required", "A two-factor authentication code is required.")
)

// CredentialStore is the account persistence the authenticator needs.
// *store.AdminStore implements it.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Admin, error)
	VerifyPassword(a *models.Admin, candidate string) bool
	RecordFailedAttempt(ctx context.Context, id uuid.UUID, now time.Time, threshold int, lockFor time.Duration) (int, *time.Time, error)
	RecordSuccess(ctx context.Context, id uuid.UUID, now time.Time) error
}

// TokenRegistry tracks issued token ids so tokens can be revoked before
// they expire. *session.Registry implements it.
type TokenRegistry interface {
	Register(ctx context.Context, jti string, accountID uuid.UUID, ttl time.Duration) error
	Active(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string) error
	RevokeAll(ctx context.Context, accountID uuid.UUID) error
}

// Outcome is the terminal state of one login attempt.
type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeLocked
	OutcomeAuthenticated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLocked:
		return "locked"
	case OutcomeAuthenticated:
		return "authenticated"
	default:
		return "rejected"
	}
}

// Credentials is what a client submits to log in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp,omitempty"`
}

// Result describes a login attempt. Token, Claims and Account are set only
// when Outcome is OutcomeAuthenticated.
type Result struct {
	Outcome Outcome
	Token   string
	Claims  *Claims
	Account *models.Admin
}

// Policy configures the lockout rule.
type Policy struct {
	Threshold int           // consecutive failures that trigger a lock
	LockFor   time.Duration // lock duration
}

// DefaultPolicy locks an account for 30 minutes after 5 failures.
var DefaultPolicy = Policy{Threshold: 5, LockFor: 30 * time.Minute}

// Authenticator runs the login state machine and verifies tokens.
type Authenticator struct {
	creds    CredentialStore
	tokens   *TokenService
	registry TokenRegistry
	policy   Policy
	now      func() time.Time

	// dummyHash is compared against when no account matches so a missing
	// identity costs the same as a wrong password.
	dummyHash []byte
}

// New creates an Authenticator.
func New(creds CredentialStore, tokens *TokenService, registry TokenRegistry, policy Policy) (*Authenticator, error) {
	if policy.Threshold < 1 || policy.LockFor <= 0 {
		return nil, fmt.Errorf("invalid lockout policy: threshold=%d lock=%s", policy.Threshold, policy.LockFor)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &Authenticator{
		creds:     creds,
		tokens:    tokens,
		registry:  registry,
		policy:    policy,
		now:       time.Now,
		dummyHash: hash,
	}, nil
}

// SetClock replaces the time source. Tests use it to step past lockouts.
func (a *Authenticator) SetClock(now func() time.Time) {
	a.now = now
	a.tokens.now = now
}

// Login runs one attempt of the login state machine:
//
//	Unauthenticated -> Locked | Rejected | Authenticated
//
// Locked is returned whenever a lock is in effect, whatever the password.
// Rejected records a failed attempt against a known account. Authenticated
// resets the failure counter and issues a token.
func (a *Authenticator) Login(ctx context.Context, c Credentials) (*Result, error) {
	email := strings.TrimSpace(c.Email)
	if email == "" || c.Password == "" {
		return &Result{Outcome: OutcomeRejected}, ErrInvalidCredentials
	}

	acct, err := a.creds.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(c.Password))
		slog.Info("login rejected", "reason", "unknown identity")
		return &Result{Outcome: OutcomeRejected}, ErrInvalidCredentials
	}

	now := a.now()
	if acct.IsLocked(now) {
		slog.Warn("login refused, account locked", "account_id", acct.ID, "until", acct.LockUntil)
		return &Result{Outcome: OutcomeLocked}, apperr.LockedFor(acct.LockUntil.Sub(now))
	}

	if !a.creds.VerifyPassword(acct, c.Password) {
		return a.reject(ctx, acct, now, "wrong password")
	}
	if !acct.IsActive {
		return a.reject(ctx, acct, now, "inactive account")
	}
	if acct.TOTPEnabled && acct.TOTPSecret != nil {
		if strings.TrimSpace(c.OTP) == "" {
			// The password was right; asking for the second factor is not a failure.
			return &Result{Outcome: OutcomeRejected}, ErrOTPRequired
		}
		if !validOTP(c.OTP, *acct.TOTPSecret, now) {
			return a.reject(ctx, acct, now, "wrong otp")
		}
	}

	if err := a.creds.RecordSuccess(ctx, acct.ID, now); err != nil {
		return nil, err
	}
	acct.FailedAttempts = 0
	acct.LockUntil = nil
	acct.LastLoginAt = &now

	token, claims, err := a.tokens.Issue(acct)
	if err != nil {
		return nil, apperr.Unexpected(err)
	}
	if err := a.registry.Register(ctx, claims.ID, acct.ID, a.tokens.TTL()); err != nil {
		return nil, err
	}

	slog.Info("login succeeded", "account_id", acct.ID, "role", acct.Role)
	return &Result{Outcome: OutcomeAuthenticated, Token: token, Claims: claims, Account: acct}, nil
}

// reject records a failed attempt and reports the attempt as Rejected,
// even when this failure is the one that locks the account.
func (a *Authenticator) reject(ctx context.Context, acct *models.Admin, now time.Time, reason string) (*Result, error) {
	attempts, until, err := a.creds.RecordFailedAttempt(ctx, acct.ID, now, a.policy.Threshold, a.policy.LockFor)
	if err != nil {
		return nil, err
	}
	if until != nil && until.After(now) {
		slog.Warn("account locked", "account_id", acct.ID, "attempts", attempts, "until", until)
	} else {
		slog.Info("login rejected", "account_id", acct.ID, "reason", reason, "attempts", attempts)
	}
	return &Result{Outcome: OutcomeRejected}, ErrInvalidCredentials
}

// CheckOTP reports whether code is currently valid for secret. It is used
// to confirm an authenticator app before 2FA is switched on.
func (a *Authenticator) CheckOTP(code, secret string) bool {
	return validOTP(code, secret, a.now())
}

func validOTP(code, secret string, now time.Time) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, now, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// Verify parses raw and checks that it has not been revoked.
func (a *Authenticator) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	active, err := a.registry.Active(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout revokes the token described by claims.
func (a *Authenticator) Logout(ctx context.Context, claims *Claims) error {
	return a.registry.Revoke(ctx, claims.ID)
}

// RevokeAccount revokes every outstanding token of an account. Called when
// an account is deleted or its password changes.
func (a *Authenticator) RevokeAccount(ctx context.Context, id uuid.UUID) error {
	return a.registry.RevokeAll(ctx, id)
}
