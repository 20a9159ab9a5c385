package repository

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newPostgresRepository(t *testing.T) store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URI")
	if !strings.HasPrefix(dsn, "postgres") {
		t.Skip("DATABASE_URI is not set to a postgres database")
	}

	repo, err := NewPostgresRepository(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	_, err = repo.pool.Exec(context.Background(),
		`TRUNCATE withdrawals, referrals, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return repo
}

func TestPostgresRepository(t *testing.T) {
	runStoreSuite(t, newPostgresRepository)
}
