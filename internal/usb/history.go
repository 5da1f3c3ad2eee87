package usb

import (
	"context"
	"time"
)

// Mutation actions recorded in history.
const (
	ActionSet                = "set"
	ActionDisableAll         = "disable_all"
	ActionElevatedSet        = "elevated_set"
	ActionElevatedDisableAll = "elevated_disable_all"
)

// Mutation outcomes recorded in history.
const (
	OutcomeRecordSuccess        = "success"
	OutcomeRecordNeedsElevation = "needs_elevation"
	OutcomeRecordError          = "error"
	OutcomeRecordTimeout        = "timeout"
)

// MutationRecord is one row of the mutation audit trail. KeyPath is "*"
// for bulk operations. Token correlates elevated operations with their
// coordinator run; empty for direct writes.
type MutationRecord struct {
	ID        int64     `json:"id"`
	KeyPath   string    `json:"key_path"`
	Action    string    `json:"action"`
	Disable   bool      `json:"disable"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	Token     string    `json:"token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository persists mutation records.
type HistoryRepository interface {
	// Record inserts one mutation record. CreatedAt is assigned by the
	// store if zero.
	Record(ctx context.Context, rec MutationRecord) error

	// Recent returns the newest records first, capped at limit.
	Recent(ctx context.Context, limit int) ([]MutationRecord, error)

	// Prune deletes records older than the given duration and returns
	// the number removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
