package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/metrics"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository"
)

const maxCodeAttempts = 5

// TokenService validates, redeems and manages access tokens.
type TokenService struct {
	tokens TokenStore
	log    zerolog.Logger
}

// NewTokenService creates a new TokenService.
func NewTokenService(tokens TokenStore, log zerolog.Logger) *TokenService {
	return &TokenService{
		tokens: tokens,
		log:    log.With().Str("component", "token_service").Logger(),
	}
}

// Validate returns the token if it is currently redeemable. It never
// consumes a use. Every failure, including a malformed code, is ErrInvalidToken.
func (s *TokenService) Validate(ctx context.Context, code string) (*model.Token, error) {
	code = model.NormalizeTokenCode(code)
	if !model.IsTokenCode(code) {
		return nil, ErrInvalidToken
	}

	t, err := s.tokens.GetUsable(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("validate token: %w", err)
	}
	return t, nil
}

// CheckIssued reports ErrInvalidToken unless code names an issued token that
// is still active and unexpired. Spent budgets pass: the use was consumed
// when the token was redeemed.
func (s *TokenService) CheckIssued(ctx context.Context, code string) error {
	code = model.NormalizeTokenCode(code)
	if !model.IsTokenCode(code) {
		return ErrInvalidToken
	}

	t, err := s.tokens.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("check token: %w", err)
	}
	if !t.IsActive || (t.ExpiresAt != nil && !t.ExpiresAt.After(time.Now())) {
		return ErrInvalidToken
	}
	return nil
}

// Use consumes one redemption atomically. It returns false when the token
// was not redeemable at the moment of the update.
func (s *TokenService) Use(ctx context.Context, code string) (bool, error) {
	if _, err := s.use(ctx, code); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *TokenService) use(ctx context.Context, code string) (*model.Token, error) {
	code = model.NormalizeTokenCode(code)
	if !model.IsTokenCode(code) {
		return nil, ErrInvalidToken
	}

	t, err := s.tokens.Use(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("use token: %w", err)
	}
	return t, nil
}

// Redeem validates then consumes a token and returns its post-use state.
// Losing a race for the last use between the two steps is ErrInvalidToken.
func (s *TokenService) Redeem(ctx context.Context, code string) (*model.Token, error) {
	if _, err := s.Validate(ctx, code); err != nil {
		metrics.TokenRedemptions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	t, err := s.use(ctx, code)
	if err != nil {
		metrics.TokenRedemptions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	metrics.TokenRedemptions.WithLabelValues("accepted").Inc()
	s.log.Info().
		Str("token", t.TokenCode).
		Int("remaining_uses", t.RemainingUses()).
		Msg("Access token redeemed")
	return t, nil
}

// ─── Administration ─────────────────────────────────────────────────

// Create issues a new token with a generated code.
func (s *TokenService) Create(ctx context.Context, req model.CreateTokenRequest, createdBy *int64) (*model.Token, error) {
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", ErrValidation)
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateTokenCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}

		t := &model.Token{
			TokenCode: code,
			TokenName: req.TokenName,
			MaxUsage:  req.MaxUsage,
			ExpiresAt: req.ExpiresAt,
			IsActive:  true,
			CreatedBy: createdBy,
		}
		err = s.tokens.Create(ctx, t)
		if errors.Is(err, repository.ErrDuplicateTokenCode) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create token: %w", err)
		}
		return t, nil
	}
	return nil, ErrTokenCodeExhaust
}

// List returns every token, newest first.
func (s *TokenService) List(ctx context.Context) ([]model.Token, error) {
	return s.tokens.List(ctx)
}

// Get returns one token by code in any state.
func (s *TokenService) Get(ctx context.Context, code string) (*model.Token, error) {
	t, err := s.tokens.GetByCode(ctx, model.NormalizeTokenCode(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return t, nil
}

// Update applies the non-nil fields of req.
func (s *TokenService) Update(ctx context.Context, code string, req model.UpdateTokenRequest) (*model.Token, error) {
	t, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	if req.TokenName != nil {
		t.TokenName = req.TokenName
	}
	if req.MaxUsage != nil {
		t.MaxUsage = *req.MaxUsage
	}
	if req.ExpiresAt != nil {
		t.ExpiresAt = req.ExpiresAt
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}

	if err := s.tokens.Update(ctx, t); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("update token: %w", err)
	}
	return t, nil
}

// Delete removes a token.
func (s *TokenService) Delete(ctx context.Context, code string) error {
	err := s.tokens.Delete(ctx, model.NormalizeTokenCode(code))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTokenNotFound
	}
	return err
}

// GenerateTokenCode draws a random code from model.TokenCodeAlphabet.
func GenerateTokenCode() (string, error) {
	alphabet := model.TokenCodeAlphabet
	max := big.NewInt(int64(len(alphabet)))

	b := make([]byte, model.TokenCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}
