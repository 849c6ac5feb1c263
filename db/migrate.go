package db

import (
	"database/sql"
	"embed"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/promanage/errors"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

// Migration is one embedded schema file
type Migration struct {
	Version string `json:"version"`
	File    string `json:"file"`
	Applied bool   `json:"applied"`
}

func migrationFiles() ([]string, error) {
	entries, err := migrations.ReadDir("sqlite/migrations")
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	// 000_create_schema_migrations.sql sorts first
	sort.Strings(files)
	return files, nil
}

func versionOf(filename string) string {
	return strings.Split(filename, "_")[0]
}

// Migrate applies every pending migration, each inside its own transaction.
// A nil logger keeps it silent.
func Migrate(db *sql.DB, logger *zap.SugaredLogger) error {
	files, err := migrationFiles()
	if err != nil {
		return err
	}

	applied := 0
	for _, filename := range files {
		version := versionOf(filename)

		var exists bool
		err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&exists)
		if err != nil {
			// Table doesn't exist yet, so this has to be 000
			if version != "000" {
				return errors.Newf("schema_migrations table missing, but migration is not 000: %s", filename)
			}
		} else if exists {
			if logger != nil {
				logger.Debugw("Skipping migration (already applied)", "migration", filename)
			}
			continue
		}

		sqlBytes, err := migrations.ReadFile(filepath.Join("sqlite/migrations", filename))
		if err != nil {
			return errors.Wrapf(err, "read %s", filename)
		}

		if logger != nil {
			logger.Infow("Applying migration", "migration", filename, "version", version)
		}

		tx, err := db.Begin()
		if err != nil {
			return errors.Wrapf(err, "begin tx for %s", filename)
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "execute %s", filename)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "record %s", filename)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit %s", filename)
		}
		applied++
	}

	if logger != nil {
		logger.Infow("Migrations complete",
			"total_migrations", len(files),
			"applied", applied,
		)
	}
	return nil
}

// Status lists every embedded migration and whether it has been applied
func Status(db *sql.DB) ([]Migration, error) {
	files, err := migrationFiles()
	if err != nil {
		return nil, err
	}

	done := map[string]bool{}
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				return nil, errors.Wrap(err, "scan migration version")
			}
			done[v] = true
		}
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, "iterate migration versions")
		}
	}

	out := make([]Migration, len(files))
	for i, f := range files {
		v := versionOf(f)
		out[i] = Migration{Version: v, File: f, Applied: done[v]}
	}
	return out, nil
}
