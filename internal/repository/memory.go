package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/akave-ai/servicelogs/internal/model"
)

// MemoryRepository keeps log entries in process memory. It backs the
// "memory" database driver and the tests. Meta values are copied on the way
// in and out, so callers never share maps or slices with the store.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]model.LogEntry
	now     func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[string]model.LogEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Find(ctx context.Context, f Filter, opts FindOptions) ([]model.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	matched := make([]model.LogEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if matches(e, f) {
			matched = append(matched, cloneEntry(e))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Created.Equal(matched[j].Created) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Created.After(matched[j].Created)
	})

	if opts.Offset >= len(matched) {
		return []model.LogEntry{}, nil
	}
	matched = matched[opts.Offset:]
	if opts.Limit >= 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, appID, id string) (*model.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.AppID != appID {
		return nil, nil
	}
	e = cloneEntry(e)
	return &e, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, e *model.LogEntry) (*model.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.ID]; exists {
		return nil, fmt.Errorf("duplicate log id %s", e.ID)
	}
	stored := cloneEntry(*e)
	stored.Received = r.now()
	r.entries[stored.ID] = stored
	out := cloneEntry(stored)
	return &out, nil
}

func (r *MemoryRepository) UpdateByID(ctx context.Context, appID, id string, ch model.Changes) (*model.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.entries[id]
	if !ok || prev.AppID != appID {
		return nil, nil
	}
	next := prev
	next.Apply(ch)
	next.Meta = cloneMeta(next.Meta)
	r.entries[id] = next
	prev = cloneEntry(prev)
	return &prev, nil
}

func (r *MemoryRepository) DeleteByID(ctx context.Context, appID, id string) (*model.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.entries[id]
	if !ok || prev.AppID != appID {
		return nil, nil
	}
	delete(r.entries, id)
	return &prev, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored entries.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func cloneEntry(e model.LogEntry) model.LogEntry {
	e.Meta = cloneMeta(e.Meta)
	return e
}

// cloneMeta deep-copies the maps and slices a decoded JSON value is built from.
func cloneMeta(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = cloneMeta(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneMeta(item)
		}
		return out
	default:
		return v
	}
}

func matches(e model.LogEntry, f Filter) bool {
	if e.AppID != f.AppID {
		return false
	}
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if f.Module != "" && e.Module != f.Module {
		return false
	}
	if f.RequestID != "" && e.RequestID != f.RequestID {
		return false
	}
	if f.VisitorID != "" && e.VisitorID != f.VisitorID {
		return false
	}
	if f.CreatedAfter != nil && !e.Created.After(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !e.Created.Before(*f.CreatedBefore) {
		return false
	}
	return true
}
