package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	entity     TEXT NOT NULL,
	action     TEXT NOT NULL,
	params     TEXT NOT NULL DEFAULT '{}',
	ok         INTEGER NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at);
`

// SQLiteLocalStore keeps the organizer's local state in a single SQLite file.
// Each Put is one statement, so a crash never leaves a half-written value.
type SQLiteLocalStore struct {
	db   *sqlx.DB
	Path string
}

// OpenSQLiteLocalStore opens (or creates) the database at path.
func OpenSQLiteLocalStore(path string) (*SQLiteLocalStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return initSQLite(db, path)
}

// OpenSQLiteMemory opens an in-memory database for tests.
func OpenSQLiteMemory() (*SQLiteLocalStore, error) {
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// every pooled connection would get its own empty database
	db.SetMaxOpenConns(1)
	return initSQLite(db, ":memory:")
}

func initSQLite(db *sqlx.DB, path string) (*SQLiteLocalStore, error) {
	s := &SQLiteLocalStore{db: db, Path: path}
	if err := s.configurePragmas(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteLocalStore) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteLocalStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteLocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteLocalStore) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("sqlite: put %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteLocalStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteLocalStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"kv_store", "audit_log"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("sqlite: clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

type auditRow struct {
	ID        string `db:"id"`
	Entity    string `db:"entity"`
	Action    string `db:"action"`
	Params    string `db:"params"`
	OK        bool   `db:"ok"`
	Message   string `db:"message"`
	CreatedAt int64  `db:"created_at"`
}

func (s *SQLiteLocalStore) Append(ctx context.Context, record domain.AuditRecord) error {
	row := auditRow{
		ID:        record.ID,
		Entity:    record.Entity,
		Action:    record.Action,
		Params:    record.Params,
		OK:        record.OK,
		Message:   record.Message,
		CreatedAt: record.CreatedAt.UnixNano(),
	}
	query := `
		INSERT INTO audit_log (id, entity, action, params, ok, message, created_at)
		VALUES (:id, :entity, :action, :params, :ok, :message, :created_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("sqlite: append audit record: %w", err)
	}
	return nil
}

func (s *SQLiteLocalStore) List(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	var rows []auditRow
	query := `
		SELECT id, entity, action, params, ok, message, created_at
		FROM audit_log
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("sqlite: list audit records: %w", err)
	}

	out := make([]domain.AuditRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AuditRecord{
			ID:        r.ID,
			Entity:    r.Entity,
			Action:    r.Action,
			Params:    r.Params,
			OK:        r.OK,
			Message:   r.Message,
			CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		})
	}
	return out, nil
}
