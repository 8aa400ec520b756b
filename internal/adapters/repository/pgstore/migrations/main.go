// Package migrations holds the judgeboard Postgres schema history.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the ordered set registered by the files in this package.
var Migrations = migrate.NewMigrations()

func init() {
	if err := Migrations.DiscoverCaller(); err != nil {
		panic(err)
	}
}
