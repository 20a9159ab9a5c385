package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

func newMemoryRepository(t *testing.T) store {
	t.Helper()

	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

// newFileRepository открывает базу в файле: несколько соединений, WAL и BEGIN IMMEDIATE.
func newFileRepository(t *testing.T) store {
	t.Helper()

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func TestSQLiteRepository(t *testing.T) {
	runStoreSuite(t, newMemoryRepository)
}

func TestSQLiteRepository_FileStore(t *testing.T) {
	runStoreSuite(t, newFileRepository)
}

func TestSQLiteRepository_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bot.db")

	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)

	_, _, err = repo.CreateUser(context.Background(), model.NewUser{ID: 7, FirstName: "Vali"})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	u, err := repo.GetUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Vali", u.FirstName)
}

func TestPathFromURI(t *testing.T) {
	assert.Equal(t, "bot.db", PathFromURI("sqlite://bot.db"))
	assert.Equal(t, "/var/lib/bot.db", PathFromURI("sqlite:///var/lib/bot.db"))
	assert.Equal(t, ":memory:", PathFromURI("sqlite://"))
}
