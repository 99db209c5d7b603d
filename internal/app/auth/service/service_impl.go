package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltmart/auth-service/internal/adapters/transport/http/dto"
	"github.com/voltmart/auth-service/internal/app/auth/jwt"
	"github.com/voltmart/auth-service/internal/app/auth/password"
	"github.com/voltmart/auth-service/internal/app/auth/reset"
	customErrors "github.com/voltmart/auth-service/internal/domain/auth/errors"
	"github.com/voltmart/auth-service/internal/domain/auth/model"
	"github.com/voltmart/auth-service/internal/domain/auth/repo"
)

type LoginResult struct {
	User   model.User
	Tokens model.TokenPair
}

type AccessToken struct {
	Token     string
	ExpiresIn time.Duration
}

type Service interface {
	Login(ctx context.Context, in dto.LoginDTO) (LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (AccessToken, error)
	Logout(ctx context.Context, refreshToken string)
	ChangePassword(ctx context.Context, userID uuid.UUID, in dto.ChangePasswordDTO) error
	InitiateReset(ctx context.Context, in dto.ForgotPasswordDTO) (string, error)
	ResetPassword(ctx context.Context, in dto.ResetPasswordDTO) error
	RevokeAllSessions(ctx context.Context, userID uuid.UUID) (int, error)
}

type authService struct {
	userRepo repo.UserRepo
	tokens   jwt.TokenService
	hasher   *password.Hasher
	resets   *reset.Manager
	v        *validator.Validate
	log      *zap.Logger
}

func New(
	ur repo.UserRepo,
	ts jwt.TokenService,
	h *password.Hasher,
	rm *reset.Manager,
	v *validator.Validate,
	log *zap.Logger,
) Service {
	return &authService{
		userRepo: ur, tokens: ts, hasher: h, resets: rm, v: v, log: log,
	}
}

// Login deliberately collapses unknown email, inactive account and wrong
// password into one ErrInvalidCredentials. The unknown-email path still
// burns a hash comparison so response timing does not leak which case hit.
func (a *authService) Login(ctx context.Context, in dto.LoginDTO) (LoginResult, error) {
	if err := a.v.Struct(in); err != nil {
		return LoginResult{}, customErrors.NewInvalidArgument(err.Error())
	}

	user, err := a.userRepo.GetUserByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		a.hasher.CompareDummy(in.Password)
		return LoginResult{}, customErrors.ErrInvalidCredentials
	case err != nil:
		return LoginResult{}, customErrors.WrapInternal(err, "Login")
	}

	if !user.IsActive {
		a.hasher.CompareDummy(in.Password)
		return LoginResult{}, customErrors.ErrInvalidCredentials
	}

	ok, err := a.hasher.Compare(in.Password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		return LoginResult{}, customErrors.ErrInvalidCredentials
	}

	pair, err := a.issueTokens(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	now := time.Now()
	if err := a.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		// не блокируем вход из-за метки времени
		a.log.Warn("update last login failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	return LoginResult{User: user, Tokens: pair}, nil
}

// Refresh reissues an access token only. The refresh token itself is not
// rotated; it stays valid until revoked or expired.
func (a *authService) Refresh(ctx context.Context, refreshToken string) (AccessToken, error) {
	userID, ok, err := a.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return AccessToken{}, err
	}
	if !ok {
		return AccessToken{}, customErrors.ErrInvalidToken
	}

	// Re-fetch catches accounts deactivated since the token was issued.
	user, err := a.userRepo.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return AccessToken{}, customErrors.ErrInvalidToken
	case err != nil:
		return AccessToken{}, customErrors.WrapInternal(err, "Refresh")
	}
	if !user.IsActive {
		return AccessToken{}, customErrors.ErrInvalidToken
	}

	token, exp, err := a.tokens.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: token, ExpiresIn: time.Until(exp)}, nil
}

// Logout is best effort and never surfaces an error: the user is logging
// out either way.
func (a *authService) Logout(ctx context.Context, refreshToken string) {
	if err := a.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		a.log.Warn("refresh token revocation failed on logout", zap.Error(err))
	}
}

func (a *authService) ChangePassword(ctx context.Context, userID uuid.UUID, in dto.ChangePasswordDTO) error {
	if err := a.v.Struct(in); err != nil {
		return customErrors.NewInvalidArgument(err.Error())
	}

	user, err := a.userRepo.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return customErrors.ErrInvalidCredentials
	case err != nil:
		return customErrors.WrapInternal(err, "ChangePassword")
	}

	ok, err := a.hasher.Compare(in.CurrentPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return customErrors.ErrInvalidCredentials
	}

	if err := a.setPassword(ctx, user.ID, in.NewPassword); err != nil {
		return err
	}

	// Persist first, then sweep sessions: a partially failed sweep still
	// leaves the password changed.
	a.sweepSessions(ctx, user.ID)
	return nil
}

// InitiateReset returns a decoy token for unknown or inactive accounts:
// same shape, same cost, no store write. The HTTP layer responds
// identically either way, so the endpoint cannot be used to enumerate
// accounts.
func (a *authService) InitiateReset(ctx context.Context, in dto.ForgotPasswordDTO) (string, error) {
	if err := a.v.Struct(in); err != nil {
		return "", customErrors.NewInvalidArgument(err.Error())
	}

	user, err := a.userRepo.GetUserByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return reset.NewOpaqueToken()
	case err != nil:
		return "", customErrors.WrapInternal(err, "InitiateReset")
	}
	if !user.IsActive {
		return reset.NewOpaqueToken()
	}

	token, err := a.resets.Generate(ctx, user.ID)
	if err != nil {
		return "", err
	}

	a.log.Info("password reset initiated", zap.String("user_id", user.ID.String()))
	return token, nil
}

func (a *authService) ResetPassword(ctx context.Context, in dto.ResetPasswordDTO) error {
	if err := a.v.Struct(in); err != nil {
		return customErrors.NewInvalidArgument(err.Error())
	}

	// Verify does not consume: the token is burned only after the new hash
	// is persisted, so a failed write never strands the user with a dead
	// token. The cost is a small window in which two racing redemptions of
	// the same token can both pass Verify; both then set a password the
	// caller chose, so nothing is gained by closing it.
	userID, ok, err := a.resets.Verify(ctx, in.Token)
	if err != nil {
		return err
	}
	if !ok {
		return customErrors.ErrInvalidToken
	}

	if err := a.setPassword(ctx, userID, in.NewPassword); err != nil {
		return err
	}

	// A lingering token only extends a one-hour window; do not fail the
	// flow over it.
	if err := a.resets.Consume(ctx, in.Token); err != nil {
		a.log.Warn("reset token consume failed", zap.String("user_id", userID.String()), zap.Error(err))
	}

	a.sweepSessions(ctx, userID)
	return nil
}

func (a *authService) RevokeAllSessions(ctx context.Context, userID uuid.UUID) (int, error) {
	return a.tokens.RevokeAllRefreshTokens(ctx, userID)
}

func (a *authService) issueTokens(ctx context.Context, user model.User) (model.TokenPair, error) {
	at, atExp, err := a.tokens.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return model.TokenPair{}, err
	}
	rt, rtExp, jti, err := a.tokens.IssueRefreshToken(ctx, user.ID)
	if err != nil {
		return model.TokenPair{}, err
	}

	now := time.Now()
	return model.TokenPair{
		AccessToken:     at,
		RefreshToken:    rt,
		AccessTTL:       atExp.Sub(now),
		RefreshTTL:      rtExp.Sub(now),
		UserID:          user.ID,
		RefreshTokenJTI: jti,
	}, nil
}

// setPassword scores, hashes and persists a new password.
func (a *authService) setPassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	strength := password.Score(newPassword)
	if !strength.Valid {
		return customErrors.NewWeakPassword(strength.Feedback)
	}

	hash, err := a.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := a.userRepo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	return nil
}

// sweepSessions force-logs-out every device after a password change. The
// password is already persisted, so failures here are logged and swallowed.
func (a *authService) sweepSessions(ctx context.Context, userID uuid.UUID) {
	if n, err := a.tokens.RevokeAllRefreshTokens(ctx, userID); err != nil {
		a.log.Warn("session sweep failed", zap.String("user_id", userID.String()), zap.Error(err))
	} else if n > 0 {
		a.log.Info("sessions revoked", zap.String("user_id", userID.String()), zap.Int("count", n))
	}

	if err := a.resets.InvalidateAll(ctx, userID); err != nil {
		a.log.Warn("reset token sweep failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
