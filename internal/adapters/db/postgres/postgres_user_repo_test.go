package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/voltmart/auth-service/internal/domain/auth/errors"
	"github.com/voltmart/auth-service/internal/domain/auth/model"
)

func setupDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestPostgresUserRepo_CreateAndGet(t *testing.T) {
	repo := NewPostgresUserRepo(setupDB(t))
	ctx := context.Background()

	user := model.User{
		ID:           uuid.New(),
		Email:        "ops@voltmart.dev",
		PasswordHash: "h",
		Role:         model.RoleManager,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	id, err := repo.CreateUser(ctx, user)
	if err != nil || id != user.ID {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetUserByEmail(ctx, user.Email)
	if err != nil || got.ID != user.ID {
		t.Fatalf("get by email: %v", err)
	}
	got2, err := repo.GetUserByID(ctx, user.ID)
	if err != nil || got2.Email != user.Email {
		t.Fatalf("get by id: %v", err)
	}
}

func TestPostgresUserRepo_NotFound(t *testing.T) {
	repo := NewPostgresUserRepo(setupDB(t))
	ctx := context.Background()

	if _, err := repo.GetUserByEmail(ctx, "absent@voltmart.dev"); !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := repo.GetUserByID(ctx, uuid.New()); !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgresUserRepo_UpdatePasswordHash(t *testing.T) {
	repo := NewPostgresUserRepo(setupDB(t))
	ctx := context.Background()

	user := model.User{ID: uuid.New(), Email: "ops@voltmart.dev", PasswordHash: "old", Role: model.RoleViewer, IsActive: true}
	if _, err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.UpdatePasswordHash(ctx, user.ID, "new"); err != nil {
		t.Fatalf("update hash: %v", err)
	}
	got, err := repo.GetUserByID(ctx, user.ID)
	if err != nil || got.PasswordHash != "new" {
		t.Fatalf("hash not persisted: %v %q", err, got.PasswordHash)
	}

	if err := repo.UpdatePasswordHash(ctx, uuid.New(), "x"); !errors.IsNotFound(err) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestPostgresUserRepo_UpdateLastLogin(t *testing.T) {
	repo := NewPostgresUserRepo(setupDB(t))
	ctx := context.Background()

	user := model.User{ID: uuid.New(), Email: "ops@voltmart.dev", PasswordHash: "h", Role: model.RoleViewer, IsActive: true}
	if _, err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	at := time.Now().Truncate(time.Second)
	if err := repo.UpdateLastLogin(ctx, user.ID, at); err != nil {
		t.Fatalf("update last login: %v", err)
	}

	got, err := repo.GetUserByID(ctx, user.ID)
	if err != nil || got.LastLoginAt == nil {
		t.Fatalf("last login not persisted: %v", err)
	}
	if !got.LastLoginAt.Equal(at) {
		t.Fatalf("last login want %v, got %v", at, got.LastLoginAt)
	}
}
