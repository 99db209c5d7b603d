package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltmart/auth-service/internal/app/auth/jwt"
	customErrors "github.com/voltmart/auth-service/internal/domain/auth/errors"
	"github.com/voltmart/auth-service/internal/domain/auth/model"
)

const identityKey = "auth.identity"

// IdentityFrom returns the caller attached by RequireAuth or OptionalAuth.
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	return id, ok
}

// RequireAuth rejects requests without a verifiable bearer token. The
// client sees one uniform 401 body; the expired-vs-invalid distinction
// only reaches the log.
func RequireAuth(tokens jwt.TokenService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		claims, err := tokens.VerifyAccessToken(raw)
		if err != nil {
			logVerifyFailure(log, c, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		id, ok := identityFromClaims(claims)
		if !ok {
			log.Warn("access token with malformed subject", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// OptionalAuth attaches an identity when a valid bearer token is present
// and proceeds anonymously otherwise.
func OptionalAuth(tokens jwt.TokenService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := tokens.VerifyAccessToken(raw)
		if err != nil {
			logVerifyFailure(log, c, err)
			c.Next()
			return
		}

		if id, ok := identityFromClaims(claims); ok {
			c.Set(identityKey, id)
		}
		c.Next()
	}
}

// RequireRole must run after RequireAuth. A known caller outside the
// allow-list gets 403, not 401.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if _, ok := allowed[id.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func identityFromClaims(claims model.AccessClaims) (model.Identity, bool) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Identity{}, false
	}
	return model.Identity{
		UserID: userID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, true
}

func logVerifyFailure(log *zap.Logger, c *gin.Context, err error) {
	reason := "invalid"
	if customErrors.IsTokenExpired(err) {
		reason = "expired"
	}
	log.Info("access token rejected",
		zap.String("reason", reason),
		zap.String("path", c.Request.URL.Path),
	)
}
