package database

import (
	"context"
	"fmt"
	"time"

	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5/multitracer"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/akave-ai/servicelogs/internal/config"
	"github.com/akave-ai/servicelogs/internal/repository"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Database owns the single storage handle shared by all requests. Exactly one
// of Pool and Mongo is set, matching Driver; both are nil for the memory driver.
type Database struct {
	Driver string
	Pool   *pgxpool.Pool
	Mongo  *mongo.Client

	cfg    config.DatabaseConfig
	logger zerolog.Logger
	memory *repository.MemoryRepository
}

// New connects to the configured backend and verifies it with a ping.
func New(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Database, error) {
	db := &Database{Driver: cfg.Driver, cfg: cfg, logger: logger}

	connectCtx, cancel := context.WithTimeout(ctx, seconds(cfg.ConnectTimeout))
	defer cancel()

	var err error
	switch cfg.Driver {
	case DriverPostgres:
		db.Pool, err = NewPool(connectCtx, cfg, logger)
	case DriverMongo:
		db.Mongo, err = NewMongoClient(connectCtx, cfg)
	case DriverMemory:
		db.memory = repository.NewMemoryRepository()
	default:
		err = fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	logger.Info().Str("driver", cfg.Driver).Msg("database connected")
	return db, nil
}

// NewPool opens a pgx pool whose queries are logged through zerolog and
// traced by New Relic.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pcfg.MaxConns = int32(cfg.MaxOpenConns)
	pcfg.MinConns = int32(cfg.MinConns)
	pcfg.MaxConnLifetime = seconds(cfg.ConnMaxLifetime)
	pcfg.MaxConnIdleTime = seconds(cfg.ConnMaxIdleTime)
	pcfg.ConnConfig.ConnectTimeout = seconds(cfg.ConnectTimeout)
	pcfg.ConnConfig.Tracer = multitracer.New(
		&tracelog.TraceLog{
			Logger:   zerologadapter.NewLogger(logger.With().Str("component", "pgx").Logger()),
			LogLevel: tracelog.LogLevelWarn,
		},
		nrpgx5.NewTracer(),
	)

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewMongoClient connects to Mongo. Nested documents decode into maps so
// meta values round-trip as plain JSON objects.
func NewMongoClient(ctx context.Context, cfg config.DatabaseConfig) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.URL).
		SetMaxPoolSize(uint64(cfg.MaxOpenConns)).
		SetMinPoolSize(uint64(cfg.MinConns)).
		SetMaxConnIdleTime(seconds(cfg.ConnMaxIdleTime)).
		SetConnectTimeout(seconds(cfg.ConnectTimeout)).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Logs returns the log repository backed by this database.
func (d *Database) Logs() repository.LogRepository {
	switch d.Driver {
	case DriverPostgres:
		return repository.NewPostgresRepository(d.Pool)
	case DriverMongo:
		return repository.NewMongoRepository(d.collection())
	default:
		return d.memory
	}
}

// Close releases the storage handle.
func (d *Database) Close(ctx context.Context) error {
	switch {
	case d.Pool != nil:
		d.Pool.Close()
	case d.Mongo != nil:
		if err := d.Mongo.Disconnect(ctx); err != nil {
			return fmt.Errorf("disconnect mongo: %w", err)
		}
	}
	d.logger.Info().Str("driver", d.Driver).Msg("database closed")
	return nil
}

func (d *Database) collection() *mongo.Collection {
	return d.Mongo.Database(d.cfg.Name).Collection(d.cfg.Collection)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
