package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/tern/v2/migrate"

	"github.com/akave-ai/servicelogs/internal/repository"
)

//go:embed migrations/*.sql
var migrations embed.FS

const versionTable = "schema_version"

// Migrate brings the storage schema up to date: tern migrations for postgres,
// indexes for mongo. It is a no-op for the memory driver.
func (d *Database) Migrate(ctx context.Context) error {
	switch d.Driver {
	case DriverPostgres:
		return d.migratePostgres(ctx)
	case DriverMongo:
		names, err := d.collection().Indexes().CreateMany(ctx, repository.MongoIndexes())
		if err != nil {
			return fmt.Errorf("create indexes: %w", err)
		}
		d.logger.Info().Strs("indexes", names).Msg("mongo indexes ensured")
	}
	return nil
}

func (d *Database) migratePostgres(ctx context.Context) error {
	conn, err := d.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	m, err := migrate.NewMigrator(ctx, conn.Conn(), versionTable)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	if err := m.LoadMigrations(sub); err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m.OnStart = func(seq int32, name, direction, _ string) {
		d.logger.Info().Int32("sequence", seq).Str("name", name).Str("direction", direction).Msg("running migration")
	}
	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	version, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	d.logger.Info().Int32("version", version).Msg("postgres schema up to date")
	return nil
}
