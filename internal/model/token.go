package model

import (
	"regexp"
	"strings"
	"time"
)

// TokenCodeLength is the fixed length of an access token code.
const TokenCodeLength = 6

// TokenCodeAlphabet is the character set of generated codes.
const TokenCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var tokenCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

// IsTokenCode reports whether s has the shape of an access token code.
// Case is not significant.
func IsTokenCode(s string) bool {
	return tokenCodePattern.MatchString(s)
}

// NormalizeTokenCode trims and upper-cases a client-supplied code.
func NormalizeTokenCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Token is an administrator-issued access code with a bounded usage budget.
type Token struct {
	ID            int64      `json:"id"`
	TokenCode     string     `json:"token_code"`
	TokenName     *string    `json:"token_name,omitempty"`
	UsageCount    int        `json:"usage_count"`
	MaxUsage      int        `json:"max_usage"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedBy     *int64     `json:"created_by,omitempty"`
	CreatedByName *string    `json:"created_by_name,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RemainingUses returns how many more redemptions the token allows.
func (t *Token) RemainingUses() int {
	if n := t.MaxUsage - t.UsageCount; n > 0 {
		return n
	}
	return 0
}

// Usable reports whether the token may be redeemed at now.
func (t *Token) Usable(now time.Time) bool {
	if !t.IsActive || t.UsageCount >= t.MaxUsage {
		return false
	}
	return t.ExpiresAt == nil || t.ExpiresAt.After(now)
}

// ValidateTokenQuery is the query of GET /quiz/validate-token.
type ValidateTokenQuery struct {
	Token string `form:"token" binding:"omitempty,tokencode"`
}

// ValidateTokenResponse describes a successful redemption.
type ValidateTokenResponse struct {
	Valid         bool       `json:"valid"`
	TokenRequired bool       `json:"token_required"`
	Token         string     `json:"token,omitempty"`
	TokenName     *string    `json:"token_name,omitempty"`
	RemainingUses int        `json:"remaining_uses"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// CreateTokenRequest is the admin payload for issuing a token.
type CreateTokenRequest struct {
	TokenName *string    `json:"token_name" binding:"omitempty,max=100"`
	MaxUsage  int        `json:"max_usage" binding:"required,min=1,max=100000"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// UpdateTokenRequest is the admin payload for editing a token. Nil fields are left unchanged.
type UpdateTokenRequest struct {
	TokenName *string    `json:"token_name" binding:"omitempty,max=100"`
	MaxUsage  *int       `json:"max_usage" binding:"omitempty,min=1,max=100000"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsActive  *bool      `json:"is_active"`
}
