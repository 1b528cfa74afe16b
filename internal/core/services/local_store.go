package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/rs/zerolog"
)

// AggregateKey is the fixed key the aggregate is stored under, locally and
// remotely.
const AggregateKey = "organizer_data"

// LocalStore persists the whole aggregate as one value of a KeyValueStore.
type LocalStore struct {
	kv     domain.KeyValueStore
	key    string
	logger zerolog.Logger
}

func NewLocalStore(kv domain.KeyValueStore, key string, logger zerolog.Logger) *LocalStore {
	if key == "" {
		key = AggregateKey
	}
	return &LocalStore{kv: kv, key: key, logger: logger}
}

// Read returns the stored aggregate. A missing or unreadable value yields the
// defaults; read errors are logged, never returned.
func (s *LocalStore) Read(ctx context.Context) *domain.Aggregate {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return domain.NewAggregate()
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("[STORE] Read failed, starting from defaults")
		return domain.NewAggregate()
	}

	agg, err := domain.DecodeAggregate(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("[STORE] Stored aggregate is malformed, starting from defaults")
		return domain.NewAggregate()
	}
	return agg
}

// Write replaces the stored aggregate in a single put.
func (s *LocalStore) Write(ctx context.Context, agg *domain.Aggregate) error {
	data, err := agg.Encode()
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("write aggregate: %w", err)
	}
	return nil
}

func (s *LocalStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear aggregate: %w", err)
	}
	return nil
}
