package migration

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	for _, version := range []string{"000001_collections", "000002_ledger_rls"} {
		assert.True(t, names[version+".up.sql"], version)
		assert.True(t, names[version+".down.sql"], version)
	}
}

func TestSourceReadsFirstVersion(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	next, err := src.Next(version)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)
}

func TestRunMigrationsRequiresHandle(t *testing.T) {
	assert.Error(t, RunMigrations(nil))
}
