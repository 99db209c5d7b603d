package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	myPostgres "github.com/voltmart/auth-service/internal/adapters/db/postgres"
	myRedis "github.com/voltmart/auth-service/internal/adapters/db/redis"
	"github.com/voltmart/auth-service/internal/adapters/transport/http/dto"
	httpmw "github.com/voltmart/auth-service/internal/adapters/transport/http/middleware"
	appjwt "github.com/voltmart/auth-service/internal/app/auth/jwt"
	"github.com/voltmart/auth-service/internal/app/auth/password"
	"github.com/voltmart/auth-service/internal/app/auth/reset"
	appsvc "github.com/voltmart/auth-service/internal/app/auth/service"
	authErrors "github.com/voltmart/auth-service/internal/domain/auth/errors"
	"github.com/voltmart/auth-service/internal/domain/auth/model"
	"github.com/voltmart/auth-service/internal/infra/config"
	lg "github.com/voltmart/auth-service/internal/infra/log"
	"github.com/voltmart/auth-service/internal/infra/migrate"
)

func setTokenCookies(c *gin.Context, accessToken string, accessTTL time.Duration, refreshToken string, refreshTTL time.Duration, domain string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		"access_token",
		accessToken,
		int(accessTTL.Seconds()),
		"/",
		domain,
		true, // secure
		true, // httpOnly
	)

	if refreshToken != "" {
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(
			"refresh_token",
			refreshToken,
			int(refreshTTL.Seconds()),
			"/",
			domain,
			true,
			true,
		)
	}
}

// refreshTokenFrom prefers the HttpOnly cookie over the body field when
// both are present.
func refreshTokenFrom(c *gin.Context, bodyToken string) string {
	if cookie, err := c.Cookie("refresh_token"); err == nil && cookie != "" {
		return cookie
	}
	return bodyToken
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zapLog := lg.Must(cfg.LogLevel)
	defer zapLog.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		zapLog.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zapLog.Fatal("db handle", zap.Error(err))
	}
	defer sqlDB.Close()
	if err := migrate.Up(sqlDB); err != nil {
		zapLog.Fatal("run migrations", zap.Error(err))
	}

	redisCli := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisCli.Close()

	validate := validator.New()

	userRepo := myPostgres.NewPostgresUserRepo(db)
	tokenStore := myRedis.NewRedisTokenStore(redisCli)
	tokenSvc, err := appjwt.NewTokenService(cfg, tokenStore)
	if err != nil {
		zapLog.Fatal("failed to init token service", zap.Error(err))
	}
	hasher := password.NewHasher(cfg.PasswordPepper)
	resetMgr := reset.NewManager(tokenStore, cfg.ResetTokenTTL)
	svc := appsvc.New(userRepo, tokenSvc, hasher, resetMgr, validate, zapLog)

	if err := bootstrapAdmin(context.Background(), userRepo, hasher, zapLog); err != nil {
		zapLog.Fatal("bootstrap admin", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestLogger(zapLog))

	if len(cfg.AllowedOrigins) > 0 {
		corsConfig := cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{
				"Origin", "Content-Type", "Accept",
				"Authorization",
				"X-Requested-With",
			},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: cfg.AllowCredentials,
			MaxAge:           12 * time.Hour,
		}
		router.Use(cors.New(corsConfig))
	}

	auth := router.Group("/auth")
	auth.Use(httpmw.RateLimitPerIP(50, 100, 10_000, time.Hour))

	auth.POST("/login", func(c *gin.Context) {
		var body dto.LoginDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := svc.Login(c.Request.Context(), body)
		if err != nil {
			handleError(c, zapLog, err)
			return
		}

		setTokenCookies(c, res.Tokens.AccessToken, res.Tokens.AccessTTL,
			res.Tokens.RefreshToken, res.Tokens.RefreshTTL, cfg.CookieDomain)
		c.JSON(http.StatusOK, gin.H{
			"user": gin.H{
				"id":    res.User.ID.String(),
				"email": res.User.Email,
				"role":  res.User.Role,
			},
			"access_token":  res.Tokens.AccessToken,
			"refresh_token": res.Tokens.RefreshToken,
			"expires_in":    int(res.Tokens.AccessTTL.Seconds()),
		})
	})

	auth.POST("/refresh", func(c *gin.Context) {
		var body dto.RefreshDTO
		_ = c.ShouldBindJSON(&body) // body is optional when the cookie is set

		token := refreshTokenFrom(c, body.RefreshToken)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		at, err := svc.Refresh(c.Request.Context(), token)
		if err != nil {
			handleError(c, zapLog, err)
			return
		}

		setTokenCookies(c, at.Token, at.ExpiresIn, "", 0, cfg.CookieDomain)
		c.JSON(http.StatusOK, gin.H{
			"access_token": at.Token,
			"expires_in":   int(at.ExpiresIn.Seconds()),
		})
	})

	auth.POST("/logout", func(c *gin.Context) {
		var body dto.LogoutDTO
		_ = c.ShouldBindJSON(&body)

		if token := refreshTokenFrom(c, body.RefreshToken); token != "" {
			svc.Logout(c.Request.Context(), token)
		}

		c.SetCookie("access_token", "", -1, "/", cfg.CookieDomain, true, true)
		c.SetCookie("refresh_token", "", -1, "/", cfg.CookieDomain, true, true)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	})

	auth.POST("/password/forgot", func(c *gin.Context) {
		var body dto.ForgotPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// The token never touches the logs; it leaves the process only
		// through the delivery channel.
		if _, err := svc.InitiateReset(c.Request.Context(), body); err != nil {
			handleError(c, zapLog, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"message": "if that account exists, a reset link has been sent",
		})
	})

	auth.POST("/password/reset", func(c *gin.Context) {
		var body dto.ResetPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := svc.ResetPassword(c.Request.Context(), body); err != nil {
			handleError(c, zapLog, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password updated"})
	})

	authed := auth.Group("")
	authed.Use(httpmw.RequireAuth(tokenSvc, zapLog))

	authed.POST("/password/change", func(c *gin.Context) {
		id, _ := httpmw.IdentityFrom(c)

		var body dto.ChangePasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := svc.ChangePassword(c.Request.Context(), id.UserID, body); err != nil {
			handleError(c, zapLog, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password updated"})
	})

	authed.POST("/sessions/revoke", func(c *gin.Context) {
		id, _ := httpmw.IdentityFrom(c)

		n, err := svc.RevokeAllSessions(c.Request.Context(), id.UserID)
		if err != nil {
			handleError(c, zapLog, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"revoked": n})
	})

	authed.GET("/me", func(c *gin.Context) {
		id, _ := httpmw.IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{
			"id":    id.UserID.String(),
			"email": id.Email,
			"role":  id.Role,
		})
	})

	admin := router.Group("/admin")
	admin.Use(httpmw.RequireAuth(tokenSvc, zapLog), httpmw.RequireRole("admin"))
	admin.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})

	srv := &http.Server{Addr: cfg.HTTPAddress, Handler: router}
	rootCtx, cancel := context.WithCancel(context.Background())
	g, _ := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLog.Info("shutdown signal received")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLog.Error("shutdown error", zap.Error(err))
	}
	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
	}
}

// bootstrapAdmin seeds the first admin account from the environment when
// the users table is empty of it. Other accounts come from the admin UI.
func bootstrapAdmin(ctx context.Context, users *myPostgres.PostgresUserRepo, hasher *password.Hasher, log *zap.Logger) error {
	email := os.Getenv("BOOTSTRAP_ADMIN_EMAIL")
	pass := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")
	if email == "" || pass == "" {
		return nil
	}

	if _, err := users.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !authErrors.IsNotFound(err) {
		return err
	}

	hash, err := hasher.Hash(pass)
	if err != nil {
		return err
	}

	id, err := users.CreateUser(ctx, model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		IsActive:     true,
	})
	if err != nil {
		return err
	}

	log.Info("bootstrap admin created", zap.String("user_id", id.String()))
	return nil
}

func handleError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case authErrors.IsWeakPassword(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case authErrors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case authErrors.IsInvalidCredentials(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case authErrors.IsInvalidToken(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	case authErrors.IsForbidden(err):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	default:
		log.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
