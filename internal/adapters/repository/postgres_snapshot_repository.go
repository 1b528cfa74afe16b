package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	owner_id   TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      JSONB NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (owner_id, key)
)`

const (
	pgInvalidTextRepresentation = "22P02"
	pgInvalidJSONText           = "22032"
	pgUniqueViolation           = "23505"
)

type PostgresSnapshotRepository struct {
	db *sqlx.DB
}

func NewPostgresSnapshotRepository(db *sqlx.DB) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{db: db}
}

func (r *PostgresSnapshotRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("repository: create snapshots table: %w", err)
	}
	return nil
}

// pgCode extracts the SQLSTATE from either a pgx or a lib/pq error.
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		return pgErr.Code
	case errors.As(err, &pqErr):
		return string(pqErr.Code)
	}
	return ""
}

func classify(err error) error {
	switch pgCode(err) {
	case pgInvalidTextRepresentation, pgInvalidJSONText:
		return domain.ErrInvalidSnapshot
	}
	return err
}

func (r *PostgresSnapshotRepository) Save(ctx context.Context, ownerID, key string, value []byte) (*domain.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO snapshots (owner_id, key, value, version, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, 1, NOW(), NOW())
		ON CONFLICT (owner_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			version = snapshots.version + 1,
			updated_at = NOW()
		RETURNING version, created_at, updated_at
	`

	snap := &domain.Snapshot{OwnerID: ownerID, Key: key, Value: value}
	err := r.db.QueryRowContext(ctx, query, ownerID, key, string(value)).
		Scan(&snap.Version, &snap.CreatedAt, &snap.UpdatedAt)
	if err != nil {
		if mapped := classify(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("repository: save snapshot failed: %w", err)
	}
	return snap, nil
}

func (r *PostgresSnapshotRepository) Get(ctx context.Context, ownerID, key string) (*domain.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `
		SELECT owner_id, key, value::text AS value, version, created_at, updated_at
		FROM snapshots
		WHERE owner_id = $1 AND key = $2
	`

	var snap domain.Snapshot
	if err := r.db.GetContext(ctx, &snap, query, ownerID, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("repository: get snapshot failed: %w", err)
	}
	return &snap, nil
}

func (r *PostgresSnapshotRepository) Delete(ctx context.Context, ownerID, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE owner_id = $1 AND key = $2`, ownerID, key)
	if err != nil {
		return fmt.Errorf("repository: delete snapshot failed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrSnapshotNotFound
	}
	return nil
}
