package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/config"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("admin account is inactive")
	ErrSessionRevoked     = errors.New("admin session is no longer active")
	ErrAdminExists        = errors.New("admin with this username or email already exists")
	ErrAdminNotFound      = errors.New("admin not found")
)

// Claims extends JWT standard claims with the admin identity.
type Claims struct {
	jwt.RegisteredClaims
	AdminID  int64           `json:"admin_id"`
	Username string          `json:"username"`
	Role     model.AdminRole `json:"role"`
}

// IsSuperAdmin reports whether the claims carry the super_admin role.
func (c *Claims) IsSuperAdmin() bool {
	return c.Role == model.AdminRoleSuperAdmin
}

// AuthService handles admin authentication, JWT, and session management.
// Every issued JWT is backed by a Redis key so logout can revoke it.
type AuthService struct {
	cfg    *config.Config
	rdb    *redis.Client
	admins AdminStore
	log    zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, admins AdminStore, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:    cfg,
		rdb:    rdb,
		admins: admins,
		log:    log.With().Str("component", "auth_service").Logger(),
	}
}

// HashPassword hashes a password with the given bcrypt cost.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login verifies credentials and opens a new admin session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.AdminLoginResponse, *Claims, error) {
	admin, err := s.admins.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("lookup admin: %w", err)
	}

	if err := CheckPassword(admin.PasswordHash, password); err != nil {
		return nil, nil, err
	}
	if !admin.IsActive {
		return nil, nil, ErrAccountInactive
	}

	token, claims, err := s.GenerateToken(ctx, admin)
	if err != nil {
		return nil, nil, err
	}

	if err := s.admins.TouchLastLogin(ctx, admin.ID); err != nil {
		s.log.Warn().Err(err).Int64("admin_id", admin.ID).Msg("Failed to update last login")
	}

	return &model.AdminLoginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Admin:     *admin,
	}, claims, nil
}

// GenerateToken signs a JWT for admin and registers its JTI in Redis with the same lifetime.
func (s *AuthService) GenerateToken(ctx context.Context, admin *model.Admin) (string, *Claims, error) {
	jti := uuid.NewString()
	now := time.Now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(admin.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		AdminID:  admin.ID,
		Username: admin.Username,
		Role:     admin.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	key := config.CacheKey.AdminSessionKey(admin.ID, jti)
	if err := s.rdb.Set(ctx, key, admin.Username, s.cfg.JWTExpiry).Err(); err != nil {
		return "", nil, fmt.Errorf("store session: %w", err)
	}

	return signed, claims, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ValidateSession checks that the token's session has not been revoked.
func (s *AuthService) ValidateSession(ctx context.Context, claims *Claims) error {
	n, err := s.rdb.Exists(ctx, config.CacheKey.AdminSessionKey(claims.AdminID, claims.ID)).Result()
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if n == 0 {
		return ErrSessionRevoked
	}
	return nil
}

// Logout revokes the session behind claims.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	return s.rdb.Del(ctx, config.CacheKey.AdminSessionKey(claims.AdminID, claims.ID)).Err()
}

// RevokeAll ends every live session of an admin and returns how many were removed.
func (s *AuthService) RevokeAll(ctx context.Context, adminID int64) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, config.CacheKey.AdminSessionPattern(adminID), 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan sessions: %w", err)
		}
		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("delete sessions: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// Register creates a new admin account.
func (s *AuthService) Register(ctx context.Context, req model.RegisterAdminRequest) (*model.Admin, error) {
	hash, err := HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = model.AdminRoleAdmin
	}

	admin := &model.Admin{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) || errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrAdminExists
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return admin, nil
}

// Me returns the admin behind claims.
func (s *AuthService) Me(ctx context.Context, claims *Claims) (*model.Admin, error) {
	admin, err := s.admins.GetByID(ctx, claims.AdminID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return admin, nil
}
