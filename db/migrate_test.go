package db

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/promanage/errors"
	internaltesting "github.com/teranos/promanage/internal/testing"
)

func TestMigrate(t *testing.T) {
	t.Run("creates every table", func(t *testing.T) {
		db := internaltesting.CreateTestDB(t)

		require.NoError(t, Migrate(db, zaptest.NewLogger(t).Sugar()))

		for _, table := range []string{"schema_migrations", "work_items", "schedule_runs"} {
			var n int
			err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
			require.NoError(t, err)
			assert.Equal(t, 1, n, "table %s", table)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		db := internaltesting.CreateTestDB(t)

		require.NoError(t, Migrate(db, nil))
		require.NoError(t, Migrate(db, nil))

		var applied int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
		files, err := migrationFiles()
		require.NoError(t, err)
		assert.Equal(t, len(files), applied)
	})

	t.Run("status check constraint", func(t *testing.T) {
		db := internaltesting.CreateTestDB(t)
		require.NoError(t, Migrate(db, nil))

		_, err := db.Exec("INSERT INTO work_items (title, created_at, status) VALUES ('x', '2026-10-19', 'DONE')")
		assert.Error(t, err)
	})

	t.Run("closed database fails", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		db.Close()

		assert.Error(t, Migrate(db, nil))
	})
}

func TestStatus(t *testing.T) {
	db := internaltesting.CreateTestDB(t)

	before, err := Status(db)
	require.NoError(t, err)
	require.NotEmpty(t, before)
	assert.Equal(t, "000", before[0].Version)
	for _, m := range before {
		assert.False(t, m.Applied, m.File)
	}

	require.NoError(t, Migrate(db, nil))

	after, err := Status(db)
	require.NoError(t, err)
	for _, m := range after {
		assert.True(t, m.Applied, m.File)
	}
}

func TestOpenWithMigrations(t *testing.T) {
	t.Run("migrates on open", func(t *testing.T) {
		db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM work_items").Scan(&n))
		assert.Zero(t, n)
	})

	t.Run("open errors keep their stack", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores directory permissions")
		}
		dir := t.TempDir()
		path := filepath.Join(dir, "test.db")
		first, err := Open(path, nil)
		require.NoError(t, err)
		first.Close()

		require.NoError(t, os.Chmod(dir, 0555))
		defer os.Chmod(dir, 0755)

		db, err := OpenWithMigrations(path, nil)
		require.Error(t, err)
		assert.Nil(t, db)
		assert.NotNil(t, errors.GetStack(err))
		assert.Contains(t, fmt.Sprintf("%+v", err), "connection.go")
	})
}
