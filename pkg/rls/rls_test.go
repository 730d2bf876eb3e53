package rls

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWithTenantIsNoopOutsidePostgres(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, WithTenant(conn, 42))
	require.NoError(t, WithTenant(nil, 42))
}
