package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type TokenIssuer interface {
	GenerateToken(ownerID string) (string, error)
}

// AccountService registers sync accounts and exchanges credentials for the
// bearer token devices sync with.
type AccountService struct {
	repo   domain.AccountRepository
	tokens TokenIssuer
	logger zerolog.Logger
}

func NewAccountService(repo domain.AccountRepository, tokens TokenIssuer, logger zerolog.Logger) *AccountService {
	return &AccountService{
		repo:   repo,
		tokens: tokens,
		logger: logger,
	}
}

func (s *AccountService) Register(ctx context.Context, email, password string) (*domain.Account, error) {
	now := time.Now()
	account, err := domain.NewAccount(uuid.NewString(), email, now)
	if err != nil {
		return nil, err
	}
	if err := account.SetPassword(password, now); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("account service: failed to create account: %w", err)
	}

	s.logger.Info().Str("account_id", account.ID).Msg("Account registered")
	return account, nil
}

// Login returns a token whose subject is the account ID. Unknown emails and
// wrong passwords both yield ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *domain.Account, error) {
	account, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("account service: failed to load account: %w", err)
	}

	if err := account.CheckPassword(password); err != nil {
		s.logger.Warn().Str("account_id", account.ID).Msg("Login rejected")
		return "", nil, err
	}

	token, err := s.tokens.GenerateToken(account.ID)
	if err != nil {
		return "", nil, err
	}
	return token, account, nil
}
