package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const (
	kvKeyPrefix    = "kv:"
	auditKeyPrefix = "audit:"
)

// BadgerLocalStore is the alternative local backend, one badger directory
// per organizer profile.
type BadgerLocalStore struct {
	db *badger.DB
}

// OpenBadgerLocalStore opens the badger directory at path. An empty path
// opens an in-memory database.
func OpenBadgerLocalStore(path string) (*BadgerLocalStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil).WithSyncWrites(true)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerLocalStore{db: db}, nil
}

func (s *BadgerLocalStore) Close() error {
	return s.db.Close()
}

func (s *BadgerLocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(kvKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("badger: get %s: %w", key, err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *BadgerLocalStore) Put(ctx context.Context, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(kvKeyPrefix+key), value); err != nil {
			return fmt.Errorf("badger: put %s: %w", key, err)
		}
		return nil
	})
}

func (s *BadgerLocalStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(kvKeyPrefix + key))
	})
}

func (s *BadgerLocalStore) Clear(ctx context.Context) error {
	if err := s.db.DropPrefix([]byte(kvKeyPrefix), []byte(auditKeyPrefix)); err != nil {
		return fmt.Errorf("badger: clear: %w", err)
	}
	return nil
}

// audit keys sort by creation time, so reverse iteration lists newest first
func auditKey(record domain.AuditRecord) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", auditKeyPrefix, record.CreatedAt.UnixNano(), record.ID))
}

func (s *BadgerLocalStore) Append(ctx context.Context, record domain.AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(auditKey(record), data)
	})
}

func (s *BadgerLocalStore) List(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	var out []domain.AuditRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(auditKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(auditKeyPrefix + "\xff")); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var record domain.AuditRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return fmt.Errorf("decode audit record: %w", err)
			}
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
