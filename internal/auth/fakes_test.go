package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"coursepress/internal/models"
)

// memCredentials is an in-memory CredentialStore with the same lockout
// arithmetic as the Postgres store.
type memCredentials struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Admin
	failures int
}

func newMemCredentials() *memCredentials {
	return &memCredentials{accounts: make(map[uuid.UUID]*models.Admin)}
}

func (m *memCredentials) add(email, password string, role models.Role) *models.Admin {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	a := &models.Admin{
		ID:           uuid.New(),
		Username:     strings.Split(email, "@")[0],
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		Permissions:  models.DefaultPermissions(role),
	}
	m.mu.Lock()
	m.accounts[a.ID] = a
	m.mu.Unlock()
	return a
}

func (m *memCredentials) get(id uuid.UUID) models.Admin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.accounts[id]
}

func (m *memCredentials) FindByEmail(_ context.Context, email string) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) && !a.IsDeleted {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCredentials) VerifyPassword(a *models.Admin, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(candidate)) == nil
}

func (m *memCredentials) RecordFailedAttempt(_ context.Context, id uuid.UUID, now time.Time, threshold int, lockFor time.Duration) (int, *time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
	a := m.accounts[id]
	switch {
	case a.LockUntil != nil && a.LockUntil.After(now):
		a.FailedAttempts++
	case a.LockUntil != nil:
		a.FailedAttempts = 1
		a.LockUntil = nil
	default:
		a.FailedAttempts++
	}
	if a.LockUntil == nil && a.FailedAttempts >= threshold {
		until := now.Add(lockFor)
		a.LockUntil = &until
	}
	return a.FailedAttempts, a.LockUntil, nil
}

func (m *memCredentials) RecordSuccess(_ context.Context, id uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.accounts[id]
	a.FailedAttempts = 0
	a.LockUntil = nil
	a.LastLoginAt = &now
	return nil
}

// memRegistry is an in-memory TokenRegistry.
type memRegistry struct {
	mu     sync.Mutex
	tokens map[string]uuid.UUID
}

func newMemRegistry() *memRegistry {
	return &memRegistry{tokens: make(map[string]uuid.UUID)}
}

func (r *memRegistry) Register(_ context.Context, jti string, accountID uuid.UUID, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[jti] = accountID
	return nil
}

func (r *memRegistry) Active(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tokens[jti]
	return ok, nil
}

func (r *memRegistry) Revoke(_ context.Context, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, jti)
	return nil
}

func (r *memRegistry) RevokeAll(_ context.Context, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for jti, id := range r.tokens {
		if id == accountID {
			delete(r.tokens, jti)
		}
	}
	return nil
}

// clock is a manually advanced time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
