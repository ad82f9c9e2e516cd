package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/servicelogs/internal/model"
)

func seed(t *testing.T, r *MemoryRepository, entries ...model.LogEntry) {
	t.Helper()
	for i := range entries {
		_, err := r.Insert(context.Background(), &entries[i])
		require.NoError(t, err)
	}
}

func TestMemoryRepository_FindFiltersAndSorts(t *testing.T) {
	r := NewMemoryRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, r,
		model.LogEntry{ID: "a", AppID: "svc1", Level: "info", Module: "auth", Created: base},
		model.LogEntry{ID: "b", AppID: "svc1", Level: "error", Module: "auth", RequestID: "r1", Created: base.Add(time.Hour)},
		model.LogEntry{ID: "c", AppID: "svc1", Level: "error", Module: "db", VisitorID: "v1", Created: base.Add(2 * time.Hour)},
		model.LogEntry{ID: "d", AppID: "svc2", Level: "error", Created: base.Add(3 * time.Hour)},
	)

	got, err := r.Find(context.Background(), Filter{AppID: "svc1"}, FindOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(got))

	got, err = r.Find(context.Background(), Filter{AppID: "svc1", Level: "error", Module: "auth"}, FindOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))

	got, err = r.Find(context.Background(), Filter{AppID: "svc1", RequestID: "r1"}, FindOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))

	got, err = r.Find(context.Background(), Filter{AppID: "svc1", VisitorID: "v1"}, FindOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(got))

	after, before := base, base.Add(2*time.Hour)
	got, err = r.Find(context.Background(), Filter{AppID: "svc1", CreatedAfter: &after, CreatedBefore: &before}, FindOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))

	got, err = r.Find(context.Background(), Filter{AppID: "svc1"}, FindOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))

	got, err = r.Find(context.Background(), Filter{AppID: "svc1"}, FindOptions{Limit: 5, Offset: 9})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryRepository_InsertSetsReceived(t *testing.T) {
	r := NewMemoryRepository()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	in := &model.LogEntry{ID: "x", AppID: "svc1", Received: time.Unix(0, 0)}
	out, err := r.Insert(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, fixed, out.Received)

	_, err = r.Insert(context.Background(), in)
	assert.Error(t, err, "duplicate ids are rejected")
}

func TestMemoryRepository_UpdateAndDeleteAreScoped(t *testing.T) {
	r := NewMemoryRepository()
	seed(t, r, model.LogEntry{ID: "x", AppID: "svc1", Message: "old"})

	prev, err := r.UpdateByID(context.Background(), "other", "x", model.Changes{model.FieldMessage: "new"})
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = r.UpdateByID(context.Background(), "svc1", "x", model.Changes{model.FieldMessage: "new"})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "old", prev.Message)

	cur, err := r.FindByID(context.Background(), "svc1", "x")
	require.NoError(t, err)
	assert.Equal(t, "new", cur.Message)

	gone, err := r.DeleteByID(context.Background(), "other", "x")
	require.NoError(t, err)
	assert.Nil(t, gone)

	gone, err = r.DeleteByID(context.Background(), "svc1", "x")
	require.NoError(t, err)
	require.NotNil(t, gone)
	assert.Equal(t, "new", gone.Message)
	assert.Equal(t, 0, r.Len())
}

func TestMemoryRepository_CancelledContext(t *testing.T) {
	r := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Find(ctx, Filter{AppID: "svc1"}, FindOptions{Limit: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, r.Ping(ctx), context.Canceled)
}

func ids(entries []model.LogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestMemoryRepository_MetaIsNotShared(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	meta := map[string]any{"ip": "10.0.0.1", "tags": []any{"a"}}
	inserted, err := r.Insert(ctx, &model.LogEntry{ID: "1", AppID: "svc1", Meta: meta})
	require.NoError(t, err)

	meta["ip"] = "changed by caller"
	inserted.Meta.(map[string]any)["ip"] = "changed via result"

	found, err := r.FindByID(ctx, "svc1", "1")
	require.NoError(t, err)
	found.Meta.(map[string]any)["tags"].([]any)[0] = "changed via find"

	logs, err := r.Find(ctx, Filter{AppID: "svc1"}, FindOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	logs[0].Meta.(map[string]any)["ip"] = "changed via search"

	prev, err := r.UpdateByID(ctx, "svc1", "1", model.Changes{model.FieldMessage: "x"})
	require.NoError(t, err)
	prev.Meta.(map[string]any)["ip"] = "changed via update"

	stored, err := r.FindByID(ctx, "svc1", "1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ip": "10.0.0.1", "tags": []any{"a"}}, stored.Meta)
}
