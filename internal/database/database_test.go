package database

import (
	"context"
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/aidoctor/internal/config"
	"github.com/nikhilbhutani/aidoctor/migrations"
)

func TestPendingMigrations_Sorted(t *testing.T) {
	fsys := fstest.MapFS{
		"010_later.sql":  {Data: []byte("SELECT 1")},
		"002_second.sql": {Data: []byte("SELECT 1")},
		"001_first.sql":  {Data: []byte("SELECT 1")},
		"README.md":      {Data: []byte("docs")},
	}
	files, err := PendingMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_first.sql", "002_second.sql", "010_later.sql"}, files)
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := PendingMigrations(migrations.FS)
	require.NoError(t, err)
	assert.Contains(t, files, "001_analyses.sql")
}

func TestMigrationSource(t *testing.T) {
	assert.Equal(t, migrations.FS, MigrationSource(""))
	assert.Equal(t, migrations.FS, MigrationSource("/does/not/exist"))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/001_x.sql", []byte("SELECT 1"), 0o644))
	files, err := PendingMigrations(MigrationSource(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{"001_x.sql"}, files)
}

func TestRunMigrations(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, config.DatabaseConfig{URL: url, MaxConns: 2})
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, RunMigrations(ctx, pool, migrations.FS))
	require.NoError(t, RunMigrations(ctx, pool, migrations.FS), "second run is a no-op")
}
