package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	apperrors "github.com/isdelr/bookshare-be/internal/errors"
	"github.com/isdelr/bookshare-be/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// AccountServiceProvider defines the interface for account services.
type AccountServiceProvider interface {
	Register(ctx context.Context, username, credential string) (models.Account, error)
	Authenticate(ctx context.Context, username, credential string) (models.Account, error)
	GetAccount(ctx context.Context, username string) (models.Account, error)
}

// AccountService owns account identity records.
type AccountService struct {
	db   *sqlx.DB
	cost int
}

// NewAccountService creates a new AccountService hashing credentials with the given bcrypt cost.
func NewAccountService(db *sqlx.DB, cost int) *AccountService {
	return &AccountService{db: db, cost: cost}
}

// Register creates an account. The credential is stored only as a bcrypt hash.
func (s *AccountService) Register(ctx context.Context, username, credential string) (models.Account, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(credential), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return models.Account{}, apperrors.Validation("credential must not exceed 72 bytes")
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to hash credential: %w", err)
	}

	account := models.Account{
		Username:     username,
		PasswordHash: string(hashed),
		CreatedAt:    time.Now().UTC(),
	}

	insert := dialect.Insert("accounts").Prepared(true).Rows(goqu.Record{
		"username":      account.Username,
		"password_hash": account.PasswordHash,
		"created_at":    account.CreatedAt,
	})
	if _, err := execAffected(ctx, s.db, insert); err != nil {
		if isUniqueViolation(err) {
			return models.Account{}, apperrors.AlreadyExistsf("user %s already exists", username)
		}
		return models.Account{}, apperrors.Internal("create account", err)
	}

	log.Info().Str("username", username).Msg("Account registered")
	account.PasswordHash = ""
	return account, nil
}

// Authenticate succeeds only for an existing username whose stored hash matches credential.
func (s *AccountService) Authenticate(ctx context.Context, username, credential string) (models.Account, error) {
	account, err := s.getAccount(ctx, username)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return models.Account{}, apperrors.ErrInvalidCredentials
		}
		return models.Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(credential)); err != nil {
		return models.Account{}, apperrors.ErrInvalidCredentials
	}

	account.PasswordHash = ""
	return account, nil
}

// GetAccount retrieves an account without its credential hash.
func (s *AccountService) GetAccount(ctx context.Context, username string) (models.Account, error) {
	account, err := s.getAccount(ctx, username)
	if err != nil {
		return models.Account{}, err
	}
	account.PasswordHash = ""
	return account, nil
}

func (s *AccountService) getAccount(ctx context.Context, username string) (models.Account, error) {
	query := dialect.From("accounts").Prepared(true).
		Select("username", "password_hash", "created_at").
		Where(goqu.Ex{"username": username})

	var account models.Account
	if err := getOne(ctx, s.db, &account, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, apperrors.NotFoundf("user %s not found", username)
		}
		return models.Account{}, apperrors.Internal("get account", err)
	}
	return account, nil
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
