package repository

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/servicelogs/internal/model"
)

func TestBuildFindQuery_AppOnly(t *testing.T) {
	query, args := buildFindQuery(Filter{AppID: "svc1"}, FindOptions{Limit: 10, Offset: 0})
	assert.Equal(t,
		"SELECT "+logColumns+" FROM logs WHERE app_id = $1 ORDER BY created DESC LIMIT $2 OFFSET $3",
		query)
	assert.Equal(t, []any{"svc1", 10, 0}, args)
}

func TestBuildFindQuery_AllFilters(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildFindQuery(Filter{
		AppID:         "svc1",
		Level:         "error",
		Module:        "auth",
		RequestID:     "r1",
		VisitorID:     "v1",
		CreatedAfter:  &start,
		CreatedBefore: &end,
	}, FindOptions{Limit: 5, Offset: 20})

	assert.Contains(t, query, "WHERE app_id = $1 AND level = $2 AND module = $3 AND request_id = $4 AND visitor_id = $5 AND created > $6 AND created < $7")
	assert.True(t, strings.HasSuffix(query, "ORDER BY created DESC LIMIT $8 OFFSET $9"))
	assert.Equal(t, []any{"svc1", "error", "auth", "r1", "v1", start, end, 5, 20}, args)
}

func TestBuildUpdateQuery(t *testing.T) {
	id := uuid.New()
	query, args, err := buildUpdateQuery(id, "svc1", model.Changes{
		model.FieldMessage: "new",
		model.FieldLevel:   "warn",
		model.FieldMeta:    map[string]any{"k": "v"},
	})
	require.NoError(t, err)

	// keys are sorted: level, message, meta
	assert.Contains(t, query, "SET level = $3, message = $4, meta = $5")
	assert.Contains(t, query, "WHERE id = $1 AND app_id = $2 FOR UPDATE")
	assert.Contains(t, query, "RETURNING prev.id, prev.app_id, prev.level")
	require.Len(t, args, 5)
	assert.Equal(t, id, args[0])
	assert.Equal(t, "svc1", args[1])
	assert.Equal(t, "warn", args[2])
	assert.Equal(t, "new", args[3])
	assert.JSONEq(t, `{"k":"v"}`, string(args[4].([]byte)))
}

func TestBuildUpdateQuery_ClearMeta(t *testing.T) {
	_, args, err := buildUpdateQuery(uuid.New(), "svc1", model.Changes{model.FieldMeta: nil})
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Nil(t, args[2])
}

func TestBuildUpdateQuery_Rejects(t *testing.T) {
	_, _, err := buildUpdateQuery(uuid.New(), "svc1", model.Changes{})
	assert.Error(t, err)

	_, _, err = buildUpdateQuery(uuid.New(), "svc1", model.Changes{"received": time.Now()})
	assert.Error(t, err)

	_, _, err = buildUpdateQuery(uuid.New(), "svc1", model.Changes{"app_id": "other"})
	assert.Error(t, err)
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = r.values[i].(uuid.UUID)
		case *string:
			*p = r.values[i].(string)
		case *[]byte:
			if r.values[i] != nil {
				*p = r.values[i].([]byte)
			}
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			return errors.New("unexpected scan target")
		}
	}
	return nil
}

func TestScanOne(t *testing.T) {
	id := uuid.New()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))
	received := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)

	e, err := scanOne(fakeRow{values: []any{
		id, "svc1", "error", "auth", "r1", "v1", "boom", []byte(`{"n":1}`), created, received,
	}}, "find log")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, id.String(), e.ID)
	assert.Equal(t, "svc1", e.AppID)
	assert.Equal(t, "boom", e.Message)
	assert.Equal(t, map[string]any{"n": float64(1)}, e.Meta)
	assert.Equal(t, time.UTC, e.Created.Location())
	assert.True(t, created.Equal(e.Created))

	e, err = scanOne(fakeRow{values: []any{
		id, "svc1", "", "", "", "", "", nil, created, received,
	}}, "find log")
	require.NoError(t, err)
	assert.Nil(t, e.Meta)

	e, err = scanOne(fakeRow{err: pgx.ErrNoRows}, "find log")
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = scanOne(fakeRow{err: errors.New("conn reset")}, "find log")
	assert.ErrorContains(t, err, "find log: conn reset")
}

func TestEncodeMeta(t *testing.T) {
	b, err := encodeMeta(nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = encodeMeta([]any{"a", 1})
	require.NoError(t, err)
	assert.JSONEq(t, `["a",1]`, string(b))

	_, err = encodeMeta(func() {})
	assert.Error(t, err)
}
