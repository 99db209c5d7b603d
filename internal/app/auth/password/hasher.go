package password

import (
	"github.com/alexedwards/argon2id"

	customErrors "github.com/voltmart/auth-service/internal/domain/auth/errors"
)

const (
	MinLength = 8
	MaxLength = 128
)

var argonParams = &argon2id.Params{
	Memory:      64 * 1024, // 64 MiB
	Iterations:  2,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// dummyHash is compared against when the account does not exist so the
// unknown-email path costs the same as a real comparison.
var dummyHash, _ = argon2id.CreateHash("timing-equalizer", argonParams)

type Hasher struct {
	pepper string
}

func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: pepper}
}

func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < MinLength || len(password) > MaxLength {
		return "", customErrors.ErrWeakPassword
	}

	hash, err := argon2id.CreateHash(password+h.pepper, argonParams)
	if err != nil {
		return "", customErrors.WrapInternal(err, "Hash")
	}
	return hash, nil
}

func (h *Hasher) Compare(password, hash string) (bool, error) {
	ok, err := argon2id.ComparePasswordAndHash(password+h.pepper, hash)
	if err != nil {
		return false, customErrors.WrapInternal(err, "Compare")
	}
	return ok, nil
}

// CompareDummy burns one argon2id comparison against a throwaway hash.
// Always returns false.
func (h *Hasher) CompareDummy(password string) bool {
	_, _ = argon2id.ComparePasswordAndHash(password+h.pepper, dummyHash)
	return false
}
