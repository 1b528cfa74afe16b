package domain

import (
	"context"
	"time"
)

// AuditRecord is one executed command, kept outside the synced aggregate.
type AuditRecord struct {
	ID        string    `json:"id" db:"id"`
	Entity    string    `json:"entity" db:"entity"`
	Action    string    `json:"action" db:"action"`
	Params    string    `json:"params" db:"params"`
	OK        bool      `json:"ok" db:"ok"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type AuditLog interface {
	Append(ctx context.Context, record AuditRecord) error

	// List returns the most recent records first.
	List(ctx context.Context, limit int) ([]AuditRecord, error)
}
