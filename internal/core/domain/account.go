package domain

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters long")
)

const (
	MinPasswordLen = 8
	passwordCost   = 12
)

// Account is a sync server identity. Its ID is the owner of the snapshots
// uploaded with the tokens it logs in for.
type Account struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

func NewAccount(id, email string, now time.Time) (*Account, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	return &Account{
		ID:        id,
		Email:     strings.ToLower(email),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

func (a *Account) SetPassword(plain string, now time.Time) error {
	if utf8.RuneCountInString(plain) < MinPasswordLen {
		return ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
	if err != nil {
		return err
	}

	a.PasswordHash = string(hash)
	a.UpdatedAt = now.UTC()
	return nil
}

// CheckPassword returns ErrInvalidCredentials on any mismatch.
func (a *Account) CheckPassword(plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(plain)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

type AccountRepository interface {
	// Create stores a new account, or returns ErrEmailAlreadyExists.
	Create(ctx context.Context, account *Account) error

	// GetByEmail looks up a normalized email, or returns ErrAccountNotFound.
	GetByEmail(ctx context.Context, email string) (*Account, error)
}
