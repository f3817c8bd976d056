package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docvault/internal/logging"
)

type migrationStep struct {
	Name string
	SQL  string
}

// Dialect is the schema for one database engine plus the query that tells whether it is already applied.
type Dialect struct {
	Name          string
	SentinelQuery string
	Steps         []migrationStep
}

// SQLite creates the schema in an embedded SQLite file.
var SQLite = Dialect{
	Name:          "sqlite",
	SentinelQuery: `SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'usuarios'`,
	Steps: []migrationStep{
		{
			Name: "create_table_documentos",
			SQL: `CREATE TABLE IF NOT EXISTS documentos (
  id           INTEGER   PRIMARY KEY AUTOINCREMENT,
  titulo       TEXT      NOT NULL,
  filename     TEXT      NOT NULL UNIQUE,
  url          TEXT      NOT NULL,
  estado       TEXT      NOT NULL,
  fecha_subida TIMESTAMP NOT NULL
);`,
		},
		{
			Name: "create_index_documentos_fecha_subida",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_documentos_fecha_subida ON documentos (fecha_subida);`,
		},
		{
			Name: "create_table_imagenes",
			SQL: `CREATE TABLE IF NOT EXISTS imagenes (
  id           INTEGER   PRIMARY KEY AUTOINCREMENT,
  nombre       TEXT      NOT NULL,
  filename     TEXT      NOT NULL UNIQUE,
  url          TEXT      NOT NULL,
  fecha_subida TIMESTAMP NOT NULL
);`,
		},
		{
			Name: "create_index_imagenes_fecha_subida",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_imagenes_fecha_subida ON imagenes (fecha_subida);`,
		},
		{
			Name: "create_table_usuarios",
			SQL: `CREATE TABLE IF NOT EXISTS usuarios (
  id       INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT    NOT NULL UNIQUE,
  password TEXT    NOT NULL
);`,
		},
	},
}

// Postgres creates the schema in PostgreSQL.
var Postgres = Dialect{
	Name:          "postgres",
	SentinelQuery: `SELECT to_regclass('public.usuarios') IS NOT NULL`,
	Steps: []migrationStep{
		{
			Name: "create_table_documentos",
			SQL: `CREATE TABLE IF NOT EXISTS documentos (
  id           BIGINT      GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
  titulo       TEXT        NOT NULL CHECK (char_length(titulo) BETWEEN 1 AND 200),
  filename     TEXT        NOT NULL UNIQUE,
  url          TEXT        NOT NULL,
  estado       TEXT        NOT NULL,
  fecha_subida TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
		},
		{
			Name: "create_index_documentos_fecha_subida",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_documentos_fecha_subida ON documentos (fecha_subida DESC);`,
		},
		{
			Name: "create_table_imagenes",
			SQL: `CREATE TABLE IF NOT EXISTS imagenes (
  id           BIGINT      GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
  nombre       TEXT        NOT NULL,
  filename     TEXT        NOT NULL UNIQUE,
  url          TEXT        NOT NULL,
  fecha_subida TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
		},
		{
			Name: "create_index_imagenes_fecha_subida",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_imagenes_fecha_subida ON imagenes (fecha_subida DESC);`,
		},
		{
			Name: "create_table_usuarios",
			SQL: `CREATE TABLE IF NOT EXISTS usuarios (
  id       BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
  username TEXT   NOT NULL UNIQUE,
  password TEXT   NOT NULL
);`,
		},
	},
}

// ForDriver returns the dialect for a config.DatabaseConfig driver name.
func ForDriver(driver string) (Dialect, error) {
	switch driver {
	case SQLite.Name:
		return SQLite, nil
	case Postgres.Name:
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("no migrations for driver %q", driver)
	}
}

// EnsureMigrated checks the sentinel table and runs the dialect's steps if it is missing.
// target identifies the database in logs (host or file path).
func EnsureMigrated(ctx context.Context, db *sql.DB, d Dialect, target string) error {
	start := time.Now()
	logger := logging.Component("database").With("db_target", target, "dialect", d.Name)

	logger.Info("db_migration_check", "status", "starting")

	var exists bool
	if err := db.QueryRowContext(ctx, d.SentinelQuery).Scan(&exists); err != nil {
		logger.Error("db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logger.Info("db_migration_skip",
			"status", "success",
			"detail", "schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	logger.Info("db_migration_start", "status", "in_progress")

	for _, step := range d.Steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			logger.Error("db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logger.Info("db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	logger.Info("db_migration_success",
		"status", "success",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
