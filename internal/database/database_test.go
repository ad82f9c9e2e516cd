package database

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/jackc/tern/v2/migrate"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/akave-ai/servicelogs/internal/config"
	"github.com/akave-ai/servicelogs/internal/model"
	"github.com/akave-ai/servicelogs/internal/repository"
)

func memoryConfig() config.DatabaseConfig {
	cfg := config.Default().Database
	cfg.Driver = DriverMemory
	cfg.URL = ""
	return cfg
}

func TestNew_MemoryDriver(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx, memoryConfig(), zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, db.Pool)
	assert.Nil(t, db.Mongo)

	logs, ok := db.Logs().(*repository.MemoryRepository)
	require.True(t, ok, "memory driver must hand out the memory repository")

	_, err = logs.Insert(ctx, &model.LogEntry{ID: "1", AppID: "svc1"})
	require.NoError(t, err)
	assert.Equal(t, 1, db.Logs().(*repository.MemoryRepository).Len(), "every call must share one store")

	assert.NoError(t, db.Migrate(ctx))
	assert.NoError(t, db.Close(ctx))
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Driver = "sqlite"
	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, `unknown database driver "sqlite"`)
}

func TestNew_PostgresBadURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.Driver = DriverPostgres
	cfg.URL = "postgres://user@localhost:notaport/logs"
	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "parse database url")
}

func TestNew_MongoUnreachable(t *testing.T) {
	cfg := memoryConfig()
	cfg.Driver = DriverMongo
	cfg.URL = "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200"
	cfg.ConnectTimeout = 1

	start := time.Now()
	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "ping mongo")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLogs_SelectsRepositoryByDriver(t *testing.T) {
	pg := &Database{Driver: DriverPostgres, logger: zerolog.Nop()}
	_, ok := pg.Logs().(*repository.PostgresRepository)
	assert.True(t, ok)
	assert.NoError(t, pg.Close(context.Background()), "closing without a pool is a no-op")

	// Connect does not dial; the client is usable for handle wiring offline.
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)
	cfg := memoryConfig()
	cfg.Name = "service-logs"
	cfg.Collection = "logs"
	mdb := &Database{Driver: DriverMongo, Mongo: client, cfg: cfg, logger: zerolog.Nop()}

	_, ok = mdb.Logs().(*repository.MongoRepository)
	assert.True(t, ok)
	assert.Equal(t, "logs", mdb.collection().Name())
	assert.Equal(t, "service-logs", mdb.collection().Database().Name())
	assert.NoError(t, mdb.Close(context.Background()))
}

func TestMigrations_Embedded(t *testing.T) {
	sub, err := fs.Sub(migrations, "migrations")
	require.NoError(t, err)

	names, err := migrate.FindMigrations(sub)
	require.NoError(t, err)
	require.Equal(t, []string{"001_create_logs.sql"}, names)

	body, err := fs.ReadFile(sub, names[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE logs")
	assert.Contains(t, string(body), "---- create above / drop below ----")
}
