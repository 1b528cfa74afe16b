package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const MaxSnapshotSize = 8 << 20

var (
	ErrSnapshotTooLarge    = errors.New("snapshot exceeds the maximum size")
	ErrRealtimeUnavailable = errors.New("realtime notifications are not configured")
)

var keyRegex = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,128}$`)

// SnapshotService is the server side of the remote store: it keeps the
// latest document per owner and key and tells listeners when it changes.
type SnapshotService struct {
	repo     domain.SnapshotRepository
	notifier domain.ChangeNotifier
	logger   zerolog.Logger
}

// NewSnapshotService builds the service. notifier may be nil.
func NewSnapshotService(repo domain.SnapshotRepository, notifier domain.ChangeNotifier, logger zerolog.Logger) *SnapshotService {
	return &SnapshotService{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

func validateTarget(ownerID, key string) error {
	if ownerID == "" {
		return domain.ErrInvalidOwner
	}
	if !keyRegex.MatchString(key) {
		return domain.ErrInvalidKey
	}
	return nil
}

func (s *SnapshotService) Save(ctx context.Context, ownerID, key string, value []byte) (*domain.Snapshot, error) {
	if err := validateTarget(ownerID, key); err != nil {
		return nil, err
	}

	value = bytes.TrimSpace(value)
	if len(value) > MaxSnapshotSize {
		metrics.SnapshotWrites.WithLabelValues("rejected").Inc()
		return nil, ErrSnapshotTooLarge
	}
	if len(value) == 0 || value[0] != '{' || !json.Valid(value) {
		metrics.SnapshotWrites.WithLabelValues("rejected").Inc()
		return nil, domain.ErrInvalidSnapshot
	}

	snap, err := s.repo.Save(ctx, ownerID, key, value)
	if err != nil {
		metrics.SnapshotWrites.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	metrics.SnapshotWrites.WithLabelValues("success").Inc()

	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, ownerID, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("[REALTIME] Failed to publish change")
		}
	}

	return snap, nil
}

func (s *SnapshotService) Get(ctx context.Context, ownerID, key string) (*domain.Snapshot, error) {
	if err := validateTarget(ownerID, key); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ownerID, key)
}

func (s *SnapshotService) Delete(ctx context.Context, ownerID, key string) error {
	if err := validateTarget(ownerID, key); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, ownerID, key); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, ownerID, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("[REALTIME] Failed to publish change")
		}
	}
	return nil
}

// Watch subscribes to change notifications of one snapshot.
func (s *SnapshotService) Watch(ctx context.Context, ownerID, key string) (<-chan struct{}, func(), error) {
	if err := validateTarget(ownerID, key); err != nil {
		return nil, nil, err
	}
	if s.notifier == nil {
		return nil, nil, ErrRealtimeUnavailable
	}
	return s.notifier.Subscribe(ctx, ownerID, key)
}
