package service

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/config"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository/memory"
	"golang.org/x/crypto/bcrypt"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newAuthFixture(t *testing.T) (*AuthService, *miniredis.Miniredis, *memory.DB) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	db := memory.New()
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, BcryptCost: bcrypt.MinCost}

	hash, err := HashPassword("rahasia123", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	for _, a := range []*model.Admin{
		{Username: "operator", Email: "op@example.com", FullName: "Operator", PasswordHash: hash, Role: model.AdminRoleAdmin, IsActive: true},
		{Username: "retired", Email: "old@example.com", FullName: "Retired", PasswordHash: hash, Role: model.AdminRoleAdmin, IsActive: false},
	} {
		if err := db.Admins().Create(context.Background(), a); err != nil {
			t.Fatalf("create admin: %v", err)
		}
	}

	return NewAuthService(cfg, rdb, db.Admins(), zerolog.Nop()), mr, db
}

func TestLoginIssuesRevocableToken(t *testing.T) {
	svc, mr, db := newAuthFixture(t)
	ctx := context.Background()

	resp, claims, err := svc.Login(ctx, "operator", "rahasia123")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if resp.Token == "" || resp.Admin.Username != "operator" {
		t.Fatalf("login response = %+v", resp)
	}

	parsed, err := svc.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if parsed.AdminID != claims.AdminID || parsed.ID != claims.ID || parsed.IsSuperAdmin() {
		t.Fatalf("parsed claims = %+v", parsed)
	}

	key := config.CacheKey.AdminSessionKey(claims.AdminID, claims.ID)
	if !mr.Exists(key) {
		t.Fatalf("session key %s was not stored", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("session TTL = %v", ttl)
	}
	if err := svc.ValidateSession(ctx, parsed); err != nil {
		t.Fatalf("ValidateSession returned error: %v", err)
	}

	admin, _ := db.Admins().GetByID(ctx, claims.AdminID)
	if admin.LastLogin == nil {
		t.Fatalf("last_login was not updated")
	}

	if err := svc.Logout(ctx, parsed); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if err := svc.ValidateSession(ctx, parsed); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("ValidateSession after logout = %v, want ErrSessionRevoked", err)
	}
}

func TestLoginFailures(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	if _, _, err := svc.Login(ctx, "operator", "salah-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "rahasia123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user error = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "retired", "rahasia123"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("inactive admin error = %v, want ErrAccountInactive", err)
	}
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	resp, _, err := svc.Login(context.Background(), "operator", "rahasia123")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	other := NewAuthService(&config.Config{JWTSecret: "another-secret", JWTExpiry: time.Hour}, nil, nil, zerolog.Nop())
	if _, err := other.ValidateToken(resp.Token); err == nil {
		t.Fatalf("token signed with a different secret was accepted")
	}
	if _, err := svc.ValidateToken("not-a-jwt"); err == nil {
		t.Fatalf("garbage token was accepted")
	}
}

func TestRevokeAllEndsEverySession(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	var all []*Claims
	for i := 0; i < 3; i++ {
		_, claims, err := svc.Login(ctx, "operator", "rahasia123")
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}
		all = append(all, claims)
	}

	n, err := svc.RevokeAll(ctx, all[0].AdminID)
	if err != nil {
		t.Fatalf("RevokeAll returned error: %v", err)
	}
	if n != 3 {
		t.Fatalf("revoked = %d, want 3", n)
	}
	for _, c := range all {
		if err := svc.ValidateSession(ctx, c); !errors.Is(err, ErrSessionRevoked) {
			t.Fatalf("session %s still valid", c.ID)
		}
	}
}

func TestRegisterAndMe(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	admin, err := svc.Register(ctx, model.RegisterAdminRequest{
		Username: "guru01", Email: " Guru@Example.com ", FullName: "Guru Satu", Password: "password-kuat",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if admin.Role != model.AdminRoleAdmin || admin.Email != "guru@example.com" || !admin.IsActive {
		t.Fatalf("registered admin = %+v", admin)
	}
	if CheckPassword(admin.PasswordHash, "password-kuat") != nil {
		t.Fatalf("stored hash does not match password")
	}

	if _, err := svc.Register(ctx, model.RegisterAdminRequest{
		Username: "guru01", Email: "lain@example.com", FullName: "X", Password: "password-kuat",
	}); !errors.Is(err, ErrAdminExists) {
		t.Fatalf("duplicate username error = %v, want ErrAdminExists", err)
	}

	me, err := svc.Me(ctx, &Claims{AdminID: admin.ID})
	if err != nil || me.Username != "guru01" {
		t.Fatalf("Me = (%+v, %v)", me, err)
	}
	if _, err := svc.Me(ctx, &Claims{AdminID: 9999}); !errors.Is(err, ErrAdminNotFound) {
		t.Fatalf("Me missing error = %v, want ErrAdminNotFound", err)
	}
}
