// Package session keeps the server-side registry of issued access tokens
// in Valkey. A token is usable only while its id is registered, so logout
// and account changes can revoke tokens before they expire.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"coursepress/internal/apperr"
)

const (
	// tokenPrefix namespaces token keys: token:<jti> -> account id.
	tokenPrefix = "token:"

	// accountPrefix indexes the token ids of one account:
	// account_tokens:<account id> -> set of jti.
	accountPrefix = "account_tokens:"

	// DefaultTimeout bounds every Valkey call.
	DefaultTimeout = 2 * time.Second
)

// ConnectValkey creates a Valkey client and verifies the connection with a ping.
func ConnectValkey(host, port, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping: %w", err)
	}

	slog.Info("valkey connected", "addr", fmt.Sprintf("%s:%s", host, port))
	return client, nil
}

// Registry tracks issued token ids in Valkey with automatic TTL expiry.
type Registry struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRegistry creates a token registry backed by the given Valkey client.
func NewRegistry(client *redis.Client) *Registry {
	return &Registry{client: client, timeout: DefaultTimeout}
}

// Register records jti as an active token of accountID for ttl.
func (r *Registry) Register(ctx context.Context, jti string, accountID uuid.UUID, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	index := accountPrefix + accountID.String()
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, tokenPrefix+jti, accountID.String(), ttl)
		p.SAdd(ctx, index, jti)
		// The index lives as long as the newest token.
		p.Expire(ctx, index, ttl)
		return nil
	})
	return wrap(err, "register token")
}

// Active reports whether jti is registered and not yet expired.
func (r *Registry) Active(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.client.Exists(ctx, tokenPrefix+jti).Result()
	if err != nil {
		return false, wrap(err, "check token")
	}
	return n == 1, nil
}

// Revoke removes jti. Revoking an unknown token is not an error.
func (r *Registry) Revoke(ctx context.Context, jti string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	owner, err := r.client.Get(ctx, tokenPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return wrap(err, "revoke token")
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, tokenPrefix+jti)
		p.SRem(ctx, accountPrefix+owner, jti)
		return nil
	})
	return wrap(err, "revoke token")
}

// RevokeAll removes every token registered for accountID.
func (r *Registry) RevokeAll(ctx context.Context, accountID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	index := accountPrefix + accountID.String()
	jtis, err := r.client.SMembers(ctx, index).Result()
	if err != nil {
		return wrap(err, "list account tokens")
	}

	keys := make([]string, 0, len(jtis)+1)
	for _, jti := range jtis {
		keys = append(keys, tokenPrefix+jti)
	}
	keys = append(keys, index)

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return wrap(err, "revoke account tokens")
	}
	slog.Info("tokens revoked", "account_id", accountID, "count", len(jtis))
	return nil
}

func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(fmt.Errorf("%s: %w", op, err))
	}
	return apperr.Unexpected(fmt.Errorf("%s: %w", op, err))
}
