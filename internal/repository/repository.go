package repository

import (
	"context"
	"time"

	"github.com/akave-ai/servicelogs/internal/model"
)

// Filter selects log entries. AppID is always applied; empty strings and nil
// bounds are ignored. The created bounds are exclusive.
type Filter struct {
	AppID         string
	Level         string
	Module        string
	RequestID     string
	VisitorID     string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// FindOptions paginates a Find. Results are always sorted by created, newest
// first. Callers pass Limit > 0.
type FindOptions struct {
	Limit  int
	Offset int
}

// LogRepository is the storage contract for log entries. Lookups by id are
// always scoped to the owning app. A missing record is reported as nil with a
// nil error, never as an error.
type LogRepository interface {
	Find(ctx context.Context, f Filter, opts FindOptions) ([]model.LogEntry, error)
	FindByID(ctx context.Context, appID, id string) (*model.LogEntry, error)
	// Insert stores e and returns it with Received populated.
	Insert(ctx context.Context, e *model.LogEntry) (*model.LogEntry, error)
	// UpdateByID merges ch into the record and returns its state before the update.
	UpdateByID(ctx context.Context, appID, id string, ch model.Changes) (*model.LogEntry, error)
	// DeleteByID removes the record and returns its last state.
	DeleteByID(ctx context.Context, appID, id string) (*model.LogEntry, error)
	Ping(ctx context.Context) error
}
