// Package storagetest runs test suites against every storage backend.
package storagetest

import (
	"path/filepath"
	"testing"

	"repertoire/internal/storage"
	"repertoire/internal/storage/badger"
	"repertoire/internal/storage/sqlite"

	"github.com/stretchr/testify/require"
)

// Factory opens an empty, initialized store for one test
type Factory func(t *testing.T) storage.Store

func SQLite(t *testing.T) storage.Store {
	t.Helper()
	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "repertoire.db"), true, nil)
	require.NoError(t, err)
	require.NoError(t, s.InitDB())
	t.Cleanup(func() { s.Close() })
	return s
}

func Badger(t *testing.T) storage.Store {
	t.Helper()
	s, err := badger.Open(badger.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func Factories() map[string]Factory {
	return map[string]Factory{
		"SQLite": SQLite,
		"Badger": Badger,
	}
}

// RunForAllStores runs fn once per backend, each with a fresh store
func RunForAllStores(t *testing.T, testName string, fn func(t *testing.T, s storage.Store)) {
	for name, factory := range Factories() {
		t.Run(name+"/"+testName, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}
