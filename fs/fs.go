// Package appfs embeds the database migrations and the static assets.
package appfs

import "embed"

//go:embed migrations all:assets
var FS embed.FS

const MigrationsDir = "migrations"
