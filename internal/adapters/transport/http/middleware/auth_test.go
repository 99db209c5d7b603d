package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	myRedis "github.com/voltmart/auth-service/internal/adapters/db/redis"
	"github.com/voltmart/auth-service/internal/adapters/transport/http/middleware"
	appjwt "github.com/voltmart/auth-service/internal/app/auth/jwt"
	"github.com/voltmart/auth-service/internal/domain/auth/model"
	"github.com/voltmart/auth-service/internal/infra/config"
)

func newTokenService(t *testing.T, accessTTL time.Duration) *appjwt.JwtServiceImpl {
	mr := miniredis.RunT(t)
	t.Cleanup(mr.Close)

	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	store := myRedis.NewRedisTokenStore(client)

	svc, err := appjwt.NewTokenService(&config.Config{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    time.Hour,
	}, store)
	require.NoError(t, err)
	return svc
}

func newRouter(tokens *appjwt.JwtServiceImpl) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	router := gin.New()

	router.GET("/protected", middleware.RequireAuth(tokens, log), func(c *gin.Context) {
		id, _ := middleware.IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"email": id.Email, "role": id.Role})
	})

	router.GET("/admin", middleware.RequireAuth(tokens, log), middleware.RequireRole(model.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	router.GET("/open", middleware.OptionalAuth(tokens, log), func(c *gin.Context) {
		if id, ok := middleware.IdentityFrom(c); ok {
			c.JSON(http.StatusOK, gin.H{"email": id.Email})
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": nil})
	})

	return router
}

func doRequest(router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	router := newRouter(newTokenService(t, time.Minute))

	w := doRequest(router, "/protected", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_WrongScheme(t *testing.T) {
	router := newRouter(newTokenService(t, time.Minute))

	w := doRequest(router, "/protected", "Basic dXNlcjpwYXNz")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_ValidToken(t *testing.T) {
	tokens := newTokenService(t, time.Minute)
	router := newRouter(tokens)

	token, _, err := tokens.IssueAccessToken(uuid.New(), "ops@voltmart.dev", model.RoleManager)
	require.NoError(t, err)

	w := doRequest(router, "/protected", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ops@voltmart.dev")
	require.Contains(t, w.Body.String(), model.RoleManager)
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	tokens := newTokenService(t, -time.Minute)
	router := newRouter(tokens)

	token, _, err := tokens.IssueAccessToken(uuid.New(), "ops@voltmart.dev", model.RoleViewer)
	require.NoError(t, err)

	w := doRequest(router, "/protected", "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	// клиент видит то же сообщение, что и при битом токене
	require.Contains(t, w.Body.String(), "authentication required")
}

func TestRequireAuth_GarbageToken(t *testing.T) {
	router := newRouter(newTokenService(t, time.Minute))

	w := doRequest(router, "/protected", "Bearer not.a.jwt")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole_AllowsAdmin(t *testing.T) {
	tokens := newTokenService(t, time.Minute)
	router := newRouter(tokens)

	token, _, err := tokens.IssueAccessToken(uuid.New(), "root@voltmart.dev", model.RoleAdmin)
	require.NoError(t, err)

	w := doRequest(router, "/admin", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole_ForbidsKnownCallerOutsideAllowList(t *testing.T) {
	tokens := newTokenService(t, time.Minute)
	router := newRouter(tokens)

	token, _, err := tokens.IssueAccessToken(uuid.New(), "ops@voltmart.dev", model.RoleManager)
	require.NoError(t, err)

	// 403, не 401: личность известна, прав не хватает
	w := doRequest(router, "/admin", "Bearer "+token)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestOptionalAuth_ProceedsAnonymously(t *testing.T) {
	router := newRouter(newTokenService(t, time.Minute))

	for _, header := range []string{"", "Bearer broken-token"} {
		w := doRequest(router, "/open", header)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "null")
	}
}

func TestOptionalAuth_AttachesIdentityWhenPresent(t *testing.T) {
	tokens := newTokenService(t, time.Minute)
	router := newRouter(tokens)

	token, _, err := tokens.IssueAccessToken(uuid.New(), "ops@voltmart.dev", model.RoleViewer)
	require.NoError(t, err)

	w := doRequest(router, "/open", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ops@voltmart.dev")
}
