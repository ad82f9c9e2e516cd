package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akave-ai/servicelogs/internal/model"
)

const logColumns = "id, app_id, level, module, request_id, visitor_id, message, meta, created, received"

// PostgresRepository stores log entries in the logs table; meta is jsonb.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a PostgresRepository using the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Find returns matching entries ordered by created descending.
func (r *PostgresRepository) Find(ctx context.Context, f Filter, opts FindOptions) ([]model.LogEntry, error) {
	query, args := buildFindQuery(f, opts)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find logs: %w", err)
	}
	defer rows.Close()

	logs := []model.LogEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *e)
	}
	return logs, rows.Err()
}

// FindByID returns one entry by id, or nil if not found.
func (r *PostgresRepository) FindByID(ctx context.Context, appID, id string) (*model.LogEntry, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	row := r.pool.QueryRow(ctx, `SELECT `+logColumns+` FROM logs WHERE id = $1 AND app_id = $2`, uid, appID)
	return scanOne(row, "find log")
}

// Insert writes e; received comes from the column default.
func (r *PostgresRepository) Insert(ctx context.Context, e *model.LogEntry) (*model.LogEntry, error) {
	uid, ok := parseID(e.ID)
	if !ok {
		return nil, fmt.Errorf("insert log: invalid id %q", e.ID)
	}
	meta, err := encodeMeta(e.Meta)
	if err != nil {
		return nil, fmt.Errorf("insert log: %w", err)
	}
	query := `
		INSERT INTO logs (id, app_id, level, module, request_id, visitor_id, message, meta, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created, received`
	stored := *e
	err = r.pool.QueryRow(ctx, query,
		uid,
		e.AppID,
		e.Level,
		e.Module,
		e.RequestID,
		e.VisitorID,
		e.Message,
		meta,
		e.Created,
	).Scan(&stored.Created, &stored.Received)
	if err != nil {
		return nil, fmt.Errorf("insert log: %w", err)
	}
	stored.Created = stored.Created.UTC()
	stored.Received = stored.Received.UTC()
	return &stored, nil
}

// UpdateByID locks the row, applies ch and returns the row as it was before.
func (r *PostgresRepository) UpdateByID(ctx context.Context, appID, id string, ch model.Changes) (*model.LogEntry, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	query, args, err := buildUpdateQuery(uid, appID, ch)
	if err != nil {
		return nil, fmt.Errorf("update log: %w", err)
	}
	return scanOne(r.pool.QueryRow(ctx, query, args...), "update log")
}

// DeleteByID removes the row and returns it.
func (r *PostgresRepository) DeleteByID(ctx context.Context, appID, id string) (*model.LogEntry, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	row := r.pool.QueryRow(ctx, `DELETE FROM logs WHERE id = $1 AND app_id = $2 RETURNING `+logColumns, uid, appID)
	return scanOne(row, "delete log")
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func buildFindQuery(f Filter, opts FindOptions) (string, []any) {
	conds := []string{"app_id = $1"}
	args := []any{f.AppID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Level != "" {
		add("level = $%d", f.Level)
	}
	if f.Module != "" {
		add("module = $%d", f.Module)
	}
	if f.RequestID != "" {
		add("request_id = $%d", f.RequestID)
	}
	if f.VisitorID != "" {
		add("visitor_id = $%d", f.VisitorID)
	}
	if f.CreatedAfter != nil {
		add("created > $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		add("created < $%d", *f.CreatedBefore)
	}
	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf("SELECT %s FROM logs WHERE %s ORDER BY created DESC LIMIT $%d OFFSET $%d",
		logColumns, strings.Join(conds, " AND "), len(args)-1, len(args))
	return query, args
}

// updatable maps change keys to columns; nothing else may be written.
var updatable = map[string]string{
	model.FieldLevel:     "level",
	model.FieldModule:    "module",
	model.FieldRequestID: "request_id",
	model.FieldVisitorID: "visitor_id",
	model.FieldMessage:   "message",
	model.FieldMeta:      "meta",
	model.FieldCreated:   "created",
}

func buildUpdateQuery(id uuid.UUID, appID string, ch model.Changes) (string, []any, error) {
	keys := make([]string, 0, len(ch))
	for k := range ch {
		if _, ok := updatable[k]; !ok {
			return "", nil, fmt.Errorf("field %q cannot be updated", k)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return "", nil, errors.New("no fields to update")
	}
	sort.Strings(keys)

	args := []any{id, appID}
	sets := make([]string, 0, len(keys))
	for _, k := range keys {
		v := ch[k]
		if k == model.FieldMeta {
			meta, err := encodeMeta(v)
			if err != nil {
				return "", nil, err
			}
			v = meta
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", updatable[k], len(args)))
	}

	prevColumns := "prev." + strings.ReplaceAll(logColumns, ", ", ", prev.")
	query := fmt.Sprintf(`
		WITH prev AS (
			SELECT %s FROM logs WHERE id = $1 AND app_id = $2 FOR UPDATE
		)
		UPDATE logs AS l SET %s
		FROM prev
		WHERE l.id = prev.id
		RETURNING %s`, logColumns, strings.Join(sets, ", "), prevColumns)
	return query, args, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row rowScanner, op string) (*model.LogEntry, error) {
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

func scanEntry(row rowScanner) (*model.LogEntry, error) {
	var (
		e    model.LogEntry
		id   uuid.UUID
		meta []byte
	)
	if err := row.Scan(
		&id,
		&e.AppID,
		&e.Level,
		&e.Module,
		&e.RequestID,
		&e.VisitorID,
		&e.Message,
		&meta,
		&e.Created,
		&e.Received,
	); err != nil {
		return nil, err
	}
	e.ID = id.String()
	e.Created = e.Created.UTC()
	e.Received = e.Received.UTC()
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Meta); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
	}
	return &e, nil
}

// encodeMeta returns nil (SQL NULL) for a nil meta value.
func encodeMeta(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	return b, nil
}

func parseID(id string) (uuid.UUID, bool) {
	uid, err := uuid.Parse(id)
	return uid, err == nil
}
