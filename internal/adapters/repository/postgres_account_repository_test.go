package repository

import (
	"context"
	"testing"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"
)

// setupPQ connects through lib/pq so its error type goes through pgCode too.
func setupPQ(t *testing.T) *sqlx.DB {
	db, err := sqlx.Connect("postgres", testDSN())
	if err != nil {
		t.Skipf("Skipping integration tests: lib/pq connection failed: %v", err)
	}
	return db
}

func TestPostgresAccountRepository_Integration(t *testing.T) {
	drivers := map[string]func(*testing.T) *sqlx.DB{
		"pgx":    setupTestDB,
		"lib/pq": setupPQ,
	}

	for name, setup := range drivers {
		t.Run(name, func(t *testing.T) {
			db := setup(t)
			defer db.Close()

			repo := NewPostgresAccountRepository(db)
			ctx := context.Background()
			require.NoError(t, repo.EnsureSchema(ctx))
			_, err := db.Exec("TRUNCATE TABLE accounts")
			require.NoError(t, err)

			email := uuid.NewString() + "@kanso.app"
			account, err := domain.NewAccount(uuid.NewString(), email, time.Now())
			require.NoError(t, err)
			require.NoError(t, account.SetPassword("Password123", time.Now()))

			t.Run("Success: create and read back", func(t *testing.T) {
				require.NoError(t, repo.Create(ctx, account))

				got, err := repo.GetByEmail(ctx, email)
				require.NoError(t, err)
				assert.Equal(t, account.ID, got.ID)
				assert.Equal(t, account.PasswordHash, got.PasswordHash)
				assert.NoError(t, got.CheckPassword("Password123"))
			})

			t.Run("Fail: duplicate email", func(t *testing.T) {
				dup, _ := domain.NewAccount(uuid.NewString(), email, time.Now())
				dup.PasswordHash = "x"
				assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrEmailAlreadyExists)
			})

			t.Run("Fail: unknown email", func(t *testing.T) {
				_, err := repo.GetByEmail(ctx, "nobody@kanso.app")
				assert.ErrorIs(t, err, domain.ErrAccountNotFound)
			})
		})
	}
}
