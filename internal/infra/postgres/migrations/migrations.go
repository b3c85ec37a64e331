package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the Postgres schema migrations, one registration per file.
var Migrations = migrate.NewMigrations()
