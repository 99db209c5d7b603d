package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voltmart/auth-service/internal/domain/auth/model"
)

type UserRepo interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)

	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error

	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// TokenStore is the external TTL-capable key-value map behind the refresh
// whitelist and the reset-token ledger. A missing key is (.., false, nil),
// never an error; errors mean the store itself is unreachable.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, bool, error)

	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// GetDel atomically reads and removes a key. Single-use token redemption
	// relies on this.
	GetDel(ctx context.Context, key string) (string, bool, error)

	// Keys enumerates keys matching a glob pattern. Only the mass-revocation
	// scans use it.
	Keys(ctx context.Context, pattern string) ([]string, error)
}
