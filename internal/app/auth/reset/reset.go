package reset

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	customErrors "github.com/voltmart/auth-service/internal/domain/auth/errors"
	"github.com/voltmart/auth-service/internal/domain/auth/repo"
)

const resetKeyPrefix = "pwdreset:"

func resetKey(token string) string { return resetKeyPrefix + token }

// Manager issues and redeems single-use password-reset tokens. The raw
// token is handed to the caller for out-of-band delivery; only its store
// entry proves validity.
type Manager struct {
	store repo.TokenStore
	ttl   time.Duration
}

func NewManager(store repo.TokenStore, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

// Generate mints a 256-bit random token and records it for userID.
func (m *Manager) Generate(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := NewOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := m.store.SetWithTTL(ctx, resetKey(token), userID.String(), m.ttl); err != nil {
		return "", customErrors.WrapInternal(err, "store reset token")
	}
	return token, nil
}

// Verify is a pure lookup; it does not consume the token.
func (m *Manager) Verify(ctx context.Context, token string) (uuid.UUID, bool, error) {
	val, found, err := m.store.Get(ctx, resetKey(token))
	if err != nil {
		return uuid.Nil, false, customErrors.WrapInternal(err, "Verify")
	}
	if !found {
		return uuid.Nil, false, nil
	}
	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return userID, true, nil
}

// Consume removes the token entry. Call only after the new password hash
// has been persisted.
func (m *Manager) Consume(ctx context.Context, token string) error {
	_, _, err := m.store.GetDel(ctx, resetKey(token))
	return err
}

// InvalidateAll sweeps every outstanding reset token belonging to userID.
func (m *Manager) InvalidateAll(ctx context.Context, userID uuid.UUID) error {
	keys, err := m.store.Keys(ctx, resetKeyPrefix+"*")
	if err != nil {
		return customErrors.WrapInternal(err, "InvalidateAll")
	}

	want := userID.String()
	for _, key := range keys {
		owner, found, err := m.store.Get(ctx, key)
		if err != nil {
			return customErrors.WrapInternal(err, "InvalidateAll")
		}
		if !found || owner != want {
			continue
		}
		if err := m.store.Delete(ctx, key); err != nil {
			return customErrors.WrapInternal(err, "InvalidateAll")
		}
	}
	return nil
}

// NewOpaqueToken returns 32 random bytes hex-encoded. Also used for the
// decoy token on the unknown-email reset path so both paths produce the
// same shape at the same cost.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", customErrors.WrapInternal(err, "generate reset token")
	}
	return hex.EncodeToString(buf), nil
}
