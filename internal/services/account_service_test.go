package services

import (
	"context"
	"strings"
	"testing"

	apperrors "github.com/isdelr/bookshare-be/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_DuplicateKeepsFirstCredential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.accounts.Register(ctx, "555-0100", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "555-0100", account.Username)
	assert.Empty(t, account.PasswordHash)

	_, err = env.accounts.Register(ctx, "555-0100", "other")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	_, err = env.accounts.Authenticate(ctx, "555-0100", "pw1")
	assert.NoError(t, err)
	_, err = env.accounts.Authenticate(ctx, "555-0100", "other")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestRegister_StoresHashNotCredential(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.accounts.Register(context.Background(), "555-0100", "pw1")
	require.NoError(t, err)

	var stored string
	require.NoError(t, env.db.Get(&stored, `SELECT password_hash FROM accounts WHERE username = '555-0100'`))
	assert.NotEqual(t, "pw1", stored)
	assert.True(t, strings.HasPrefix(stored, "$2"), "expected a bcrypt hash, got %q", stored)
}

func TestRegister_CredentialTooLong(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.accounts.Register(context.Background(), "555-0100", strings.Repeat("x", 73))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAuthenticate_ExactPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.accounts.Register(ctx, "u", "p")
	require.NoError(t, err)

	tests := []struct {
		name       string
		username   string
		credential string
		ok         bool
	}{
		{"exact match", "u", "p", true},
		{"wrong credential", "u", "P", false},
		{"empty credential", "u", "", false},
		{"unknown user", "v", "p", false},
		{"username case differs", "U", "p", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, err := env.accounts.Authenticate(ctx, tt.username, tt.credential)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, "u", account.Username)
				assert.Empty(t, account.PasswordHash)
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		})
	}
}

func TestGetAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "555-0100")

	account, err := env.accounts.GetAccount(ctx, "555-0100")
	require.NoError(t, err)
	assert.Equal(t, "555-0100", account.Username)
	assert.Empty(t, account.PasswordHash)
	assert.False(t, account.CreatedAt.IsZero())

	_, err = env.accounts.GetAccount(ctx, "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
