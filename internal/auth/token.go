// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"coursepress/internal/apperr"
	"coursepress/internal/models"
)

// Token verification errors. They are distinct so clients can tell a
// session that simply ran out from a token that was never valid.
var (
	ErrTokenMissing = apperr.Unauthenticated("token_missing", "Authentication is required.")
	ErrTokenExpired = apperr.Unauthenticated("token_expired", "Your session has expired. Please sign in again.")
	ErrTokenInvalid = apperr.Unauthenticated("token_invalid", "The access token is invalid.")
	ErrTokenRevoked = apperr.Unauthenticated("token_revoked", "The access token has been revoked.")
)

// Claims is the payload of an access token. Role and permissions are
// captured at issuance and not re-read per request.
type Claims struct {
	Role  models.Role         `json:"role"`
	Perms []models.Permission `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// AccountID returns the id of the account the token was issued to.
func (c *Claims) AccountID() uuid.UUID {
	id, _ := uuid.Parse(c.Subject)
	return id
}

// Can reports whether the claims grant perm.
func (c *Claims) Can(perm models.Permission) bool {
	return c.Role == models.RoleAdmin || slices.Contains(c.Perms, perm)
}

// TokenService signs and parses HS256 access tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service. secret must be kept server-side;
// anyone holding it can mint tokens.
func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for the account a.
func (s *TokenService) Issue(a *models.Admin) (string, *Claims, error) {
	now := s.now().Truncate(time.Second)
	claims := &Claims{
		Role:  a.Role,
		Perms: a.Permissions.Grants(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   a.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies raw and returns its claims. It fails with ErrTokenExpired
// for a well-formed token past its expiry and ErrTokenInvalid for anything
// malformed, tampered with, or signed by someone else.
func (s *TokenService) Parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrTokenMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, &apperr.Error{
			Kind:    ErrTokenInvalid.Kind,
			Code:    ErrTokenInvalid.Code,
			Message: ErrTokenInvalid.Message,
			Err:     err,
		}
	}

	if claims.ID == "" || claims.AccountID() == uuid.Nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
