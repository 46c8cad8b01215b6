package auth

import (
	"embed"
	"io/fs"

	"github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

const migrationsDir = "data/sql/migrations"

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// RegisterMigrations adds the users schema to the client migrations.
// The client tracks applied versions so Migrate can run on every boot.
func RegisterMigrations(client *persistence.Client) (*persistence.Migrations, error) {
	if client == nil {
		return nil, errors.New("persistence client is required", errors.CategoryInternal)
	}

	migrations, err := fs.Sub(GetMigrationsFS(), migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read migrations")
	}

	return client.RegisterSQLMigrations(migrations), nil
}
