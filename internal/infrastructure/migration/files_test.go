package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrations(t *testing.T) {
	t.Run("lists up migrations in order", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{
			"20260301090100_b.up.sql",
			"20260301090100_b.down.sql",
			"20260301090000_a.up.sql",
			"20260301090000_a.down.sql",
			"README.md",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
		}
		require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.up.sql"), 0o755))

		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"20260301090000_a", "20260301090100_b"}, migrations)
	})

	t.Run("missing directory is empty", func(t *testing.T) {
		migrations, err := ListMigrations(filepath.Join(t.TempDir(), "absent"))
		require.NoError(t, err)
		assert.Empty(t, migrations)
	})

	t.Run("repository migrations come in pairs", func(t *testing.T) {
		dir := filepath.Join("..", "..", "..", "migrations")
		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		require.NotEmpty(t, migrations)
		for _, m := range migrations {
			_, err := os.Stat(filepath.Join(dir, m+".down.sql"))
			assert.NoError(t, err, "missing down migration for %s", m)
		}
	})
}
