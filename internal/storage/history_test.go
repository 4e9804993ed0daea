package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmload/internal/stats"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndList(t *testing.T) {
	store := openTestStore(t)

	older := RunRecord{
		ID:        "run-a",
		Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		BaseURL:   "http://localhost:3333",
		Total:     100, Success: 98, Errors: 2, SuccessRate: 98.0,
		Latency: stats.Summary{Count: 98, MeanMs: 12.5},
		Passed:  true,
	}
	newer := RunRecord{
		ID:        "run-b",
		Timestamp: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		BaseURL:   "http://localhost:3333",
		Total:     50, Success: 10, Errors: 40, SuccessRate: 20.0,
	}

	require.NoError(t, store.Save(older))
	require.NoError(t, store.Save(newer))

	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// newest first
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, "run-a", runs[1].ID)
	assert.Equal(t, 98, runs[1].Success)
	assert.True(t, runs[1].Passed)
}

func TestGet(t *testing.T) {
	store := openTestStore(t)

	rec := RunRecord{ID: "abc123", Timestamp: time.Now(), BaseURL: "http://x", Total: 7}
	require.NoError(t, store.Save(rec))

	got, err := store.Get("abc123")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Total)

	_, err = store.Get("missing")
	assert.Error(t, err)
}

func TestListEmpty(t *testing.T) {
	store := openTestStore(t)

	runs, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}
