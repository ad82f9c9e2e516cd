package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akave-ai/servicelogs/internal/metrics"
	"github.com/akave-ai/servicelogs/internal/model"
	"github.com/akave-ai/servicelogs/internal/repository"
)

// Operation names, also used as metric labels.
const (
	OpSearch   = "search"
	OpCreate   = "create"
	OpRetrieve = "retrieve"
	OpUpdate   = "update"
	OpRemove   = "remove"
)

// LogService validates requests and delegates them to the repository. It
// holds no per-request state and is safe for concurrent use.
type LogService struct {
	repo     repository.LogRepository
	logger   zerolog.Logger
	timeout  time.Duration
	validate *validator.Validate
	newID    func() string
}

// NewLogService returns a LogService. A non-positive timeout disables the
// per-operation deadline.
func NewLogService(repo repository.LogRepository, logger zerolog.Logger, timeout time.Duration) *LogService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &LogService{
		repo:     repo,
		logger:   logger.With().Str("component", "logs").Logger(),
		timeout:  timeout,
		validate: v,
		newID:    uuid.NewString,
	}
}

// Search returns entries of appID matching p, newest first. The result is
// never nil.
func (s *LogService) Search(ctx context.Context, appID string, p SearchParams) (logs []model.LogEntry, err error) {
	defer s.observe(OpSearch, time.Now(), true, &err)

	if appID, err = checkAppID(appID); err != nil {
		return nil, err
	}
	filter, opts, err := BuildQuery(appID, p)
	if err != nil {
		return nil, err
	}
	// storage drivers read a zero limit as "no limit"
	if opts.Limit == 0 {
		return []model.LogEntry{}, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	logs, err = s.repo.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []model.LogEntry{}
	}
	s.logger.Debug().Str("app_id", appID).Int("limit", opts.Limit).Int("offset", opts.Offset).Int("count", len(logs)).Msg("search")
	return logs, nil
}

// Create stores a new entry for appID under a server-generated id.
func (s *LogService) Create(ctx context.Context, appID string, data *model.LogData) (entry *model.LogEntry, err error) {
	defer s.observe(OpCreate, time.Now(), true, &err)

	if appID, err = checkAppID(appID); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, invalid("data", "required")
	}
	if err = s.validateStruct(data); err != nil {
		return nil, err
	}

	entry = &model.LogEntry{
		ID:        s.newID(),
		AppID:     appID,
		Level:     data.Level,
		Module:    data.Module,
		RequestID: data.RequestID,
		VisitorID: data.VisitorID,
		Message:   data.Message,
		Meta:      data.Meta,
		Created:   data.Created.UTC(),
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	entry, err = s.repo.Insert(ctx, entry)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("app_id", appID).Str("log_id", entry.ID).Msg("created")
	return entry, nil
}

// Retrieve returns the entry, or nil when appID owns no entry with that id.
func (s *LogService) Retrieve(ctx context.Context, appID, logID string) (entry *model.LogEntry, err error) {
	start := time.Now()
	defer func() { s.observe(OpRetrieve, start, entry != nil, &err) }()

	if appID, logID, err = checkIDs(appID, logID); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.FindByID(ctx, appID, logID)
}

// Update merges patch into the entry and returns the entry as it was before
// the update. It returns nil when nothing matches; no entry is created.
func (s *LogService) Update(ctx context.Context, appID, logID string, patch *model.LogPatch) (prev *model.LogEntry, err error) {
	start := time.Now()
	defer func() { s.observe(OpUpdate, start, prev != nil, &err) }()

	if appID, logID, err = checkIDs(appID, logID); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, invalid("data", "no updatable fields")
	}
	changes, err := patch.Changes()
	if err != nil {
		return nil, invalid("meta", err.Error())
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	prev, err = s.repo.UpdateByID(ctx, appID, logID, changes)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		s.logger.Debug().Str("app_id", appID).Str("log_id", logID).Int("fields", len(changes)).Msg("updated")
	}
	return prev, nil
}

// Remove deletes the entry and returns its last state, or nil when absent.
func (s *LogService) Remove(ctx context.Context, appID, logID string) (prev *model.LogEntry, err error) {
	start := time.Now()
	defer func() { s.observe(OpRemove, start, prev != nil, &err) }()

	if appID, logID, err = checkIDs(appID, logID); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	prev, err = s.repo.DeleteByID(ctx, appID, logID)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		s.logger.Debug().Str("app_id", appID).Str("log_id", logID).Msg("removed")
	}
	return prev, nil
}

// Ping checks that storage is reachable.
func (s *LogService) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.Ping(ctx)
}

func (s *LogService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *LogService) observe(op string, start time.Time, found bool, errp *error) {
	err := *errp
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, ErrInvalidInput):
		outcome = metrics.OutcomeInvalid
	case err != nil:
		outcome = metrics.OutcomeError
		s.logger.Error().Err(err).Str("operation", op).Msg("storage operation failed")
	case !found:
		outcome = metrics.OutcomeNotFound
	}
	metrics.Observe(op, outcome, start)
}

func (s *LogService) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return invalid(fieldErrs[0].Field(), fieldErrs[0].Tag())
	}
	return invalid("data", err.Error())
}

func checkAppID(appID string) (string, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return "", invalid("app_id", "required")
	}
	return appID, nil
}

func checkIDs(appID, logID string) (string, string, error) {
	appID, err := checkAppID(appID)
	if err != nil {
		return "", "", err
	}
	if _, err := uuid.Parse(logID); err != nil {
		return "", "", invalid("log_id", "must be a UUID")
	}
	return appID, logID, nil
}
