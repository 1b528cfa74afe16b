package domain

import (
	"time"

	"github.com/google/uuid"
)

type OperationType string

const OperationSnapshot OperationType = "snapshot"

type EntryStatus string

const (
	EntryPending  EntryStatus = "pending"
	EntryInFlight EntryStatus = "in_flight"
	EntryFailed   EntryStatus = "failed"
)

// SyncQueueEntry is one outbound operation waiting for delivery.
type SyncQueueEntry struct {
	ID        string        `json:"id"`
	Type      OperationType `json:"type"`
	Payload   *Aggregate    `json:"payload"`
	Retries   int           `json:"retries"`
	Status    EntryStatus   `json:"status"`
	LastError string        `json:"lastError,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

func NewSnapshotEntry(payload *Aggregate, now time.Time) *SyncQueueEntry {
	return &SyncQueueEntry{
		ID:        uuid.NewString(),
		Type:      OperationSnapshot,
		Payload:   payload,
		Status:    EntryPending,
		CreatedAt: now.UTC(),
	}
}

// SyncStatus is the advisory sync health shown to the user.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncFailed  SyncStatus = "failed"
)
