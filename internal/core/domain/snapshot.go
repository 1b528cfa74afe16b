package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidSnapshot  = errors.New("snapshot value must be a JSON object")
	ErrInvalidOwner     = errors.New("invalid owner id")
	ErrInvalidKey       = errors.New("invalid snapshot key")
	ErrSnapshotConflict = errors.New("snapshot version conflict")
)

// Snapshot is a document stored by the remote sync server for one owner.
type Snapshot struct {
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Key       string    `json:"key" db:"key"`
	Value     []byte    `json:"-" db:"value"`
	Version   int       `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type SnapshotRepository interface {
	// Save upserts the snapshot value and returns the stored row.
	Save(ctx context.Context, ownerID, key string, value []byte) (*Snapshot, error)

	// Get retrieves a snapshot, or ErrSnapshotNotFound.
	Get(ctx context.Context, ownerID, key string) (*Snapshot, error)

	// Delete removes a snapshot, or returns ErrSnapshotNotFound.
	Delete(ctx context.Context, ownerID, key string) error
}

// ChangeNotifier fans out "snapshot changed" signals to realtime listeners.
type ChangeNotifier interface {
	Publish(ctx context.Context, ownerID, key string) error

	// Subscribe returns a channel receiving one value per change and a
	// function releasing the subscription.
	Subscribe(ctx context.Context, ownerID, key string) (<-chan struct{}, func(), error)
}
