package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	customErrors "github.com/voltmart/auth-service/internal/domain/auth/errors"
	"github.com/voltmart/auth-service/internal/domain/auth/model"
	"github.com/voltmart/auth-service/internal/domain/auth/repo"
	"github.com/voltmart/auth-service/internal/infra/config"
)

const refreshKeyPrefix = "refresh:"

func refreshKey(jti string) string { return refreshKeyPrefix + jti }

// TokenService issues, verifies and revokes access and refresh tokens.
// Access tokens are self-contained; refresh tokens are additionally checked
// against the whitelist in the token store.
type TokenService interface {
	IssueAccessToken(userID uuid.UUID, email, role string) (token string, exp time.Time, err error)
	IssueRefreshToken(ctx context.Context, userID uuid.UUID) (token string, exp time.Time, jti string, err error)
	VerifyAccessToken(raw string) (model.AccessClaims, error)
	VerifyRefreshToken(ctx context.Context, raw string) (uuid.UUID, bool, error)
	RevokeRefreshToken(ctx context.Context, raw string) error
	RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) (int, error)
}

type JwtServiceImpl struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	store         repo.TokenStore
}

func NewTokenService(cfg *config.Config, store repo.TokenStore) (*JwtServiceImpl, error) {
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, customErrors.WrapInternal(
			errors.New("token signing secrets are not configured"), "NewTokenService")
	}

	return &JwtServiceImpl{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		issuer:        cfg.Issuer,
		store:         store,
	}, nil
}

func (j *JwtServiceImpl) IssueAccessToken(userID uuid.UUID, email, role string) (string, time.Time, error) {
	now := time.Now()

	claims := model.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTTL)),
			ID:        uuid.NewString(),
		},
		Email: email,
		Role:  role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.accessSecret)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "sign access token")
	}

	return signed, claims.ExpiresAt.Time, nil
}

// IssueRefreshToken signs a refresh token and whitelists its jti. The two
// steps are not transactional: on a failed whitelist write the token is
// never returned to the caller.
func (j *JwtServiceImpl) IssueRefreshToken(ctx context.Context, userID uuid.UUID) (string, time.Time, string, error) {
	jti := uuid.NewString()
	now := time.Now()
	exp := now.Add(j.refreshTTL)

	claims := model.RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.refreshSecret)
	if err != nil {
		return "", time.Time{}, "", customErrors.WrapInternal(err, "sign refresh token")
	}

	if err := j.store.SetWithTTL(ctx, refreshKey(jti), userID.String(), time.Until(exp)); err != nil {
		return "", time.Time{}, "", customErrors.WrapInternal(err, "whitelist refresh token")
	}

	return signed, exp, jti, nil
}

func (j *JwtServiceImpl) VerifyAccessToken(raw string) (model.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &model.AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, customErrors.ErrInvalidToken
		}
		return j.accessSecret, nil
	}, jwt.WithIssuedAt())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.AccessClaims{}, customErrors.ErrTokenExpired
		}
		return model.AccessClaims{}, customErrors.ErrInvalidToken
	}
	if !token.Valid {
		return model.AccessClaims{}, customErrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.AccessClaims)
	if !ok {
		return model.AccessClaims{}, customErrors.ErrInvalidToken
	}

	if j.issuer != "" && claims.Issuer != j.issuer {
		return model.AccessClaims{}, customErrors.ErrInvalidToken
	}

	return *claims, nil
}

// VerifyRefreshToken reports the owning user of a usable refresh token.
// ok=false covers bad signature, expiry, whitelist absence and a whitelist
// entry pointing at a different user; callers cannot tell these apart.
// The error return fires only when the store is unreachable — verification
// fails closed in that case.
func (j *JwtServiceImpl) VerifyRefreshToken(ctx context.Context, raw string) (uuid.UUID, bool, error) {
	claims, err := j.parseRefreshClaims(raw)
	if err != nil {
		return uuid.Nil, false, nil
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false, nil
	}

	owner, found, err := j.store.Get(ctx, refreshKey(claims.ID))
	if err != nil {
		return uuid.Nil, false, customErrors.WrapInternal(err, "VerifyRefreshToken")
	}
	if !found || owner != subject.String() {
		return uuid.Nil, false, nil
	}

	return subject, true, nil
}

// RevokeRefreshToken removes the token's whitelist entry. An unparsable
// token no-ops: logout must never fail the user-visible flow.
func (j *JwtServiceImpl) RevokeRefreshToken(ctx context.Context, raw string) error {
	claims, err := j.parseRefreshClaims(raw)
	if err != nil {
		return nil
	}
	return j.store.Delete(ctx, refreshKey(claims.ID))
}

// RevokeAllRefreshTokens sweeps every whitelist entry owned by userID and
// returns how many were removed. Linear in the number of active refresh
// tokens across all users; bounded by active sessions, so acceptable here.
func (j *JwtServiceImpl) RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) (int, error) {
	keys, err := j.store.Keys(ctx, refreshKeyPrefix+"*")
	if err != nil {
		return 0, customErrors.WrapInternal(err, "RevokeAllRefreshTokens")
	}

	want := userID.String()
	revoked := 0
	for _, key := range keys {
		owner, found, err := j.store.Get(ctx, key)
		if err != nil {
			return revoked, customErrors.WrapInternal(err, "RevokeAllRefreshTokens")
		}
		if !found || owner != want {
			continue
		}
		if err := j.store.Delete(ctx, key); err != nil {
			return revoked, customErrors.WrapInternal(err, "RevokeAllRefreshTokens")
		}
		revoked++
	}
	return revoked, nil
}

func (j *JwtServiceImpl) parseRefreshClaims(raw string) (*model.RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &model.RefreshClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, customErrors.ErrInvalidToken
		}
		return j.refreshSecret, nil
	}, jwt.WithIssuedAt())

	if err != nil || !token.Valid {
		return nil, customErrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.RefreshClaims)
	if !ok || claims.ID == "" {
		return nil, customErrors.ErrInvalidToken
	}

	if j.issuer != "" && claims.Issuer != j.issuer {
		return nil, customErrors.ErrInvalidToken
	}

	return claims, nil
}
