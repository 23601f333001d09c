package walstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type artifact struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T) *WALStore {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save("ledger_state", artifact{Name: "run-1", Count: 42}))

	var got artifact
	found, err := store.Load("ledger_state", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, artifact{Name: "run-1", Count: 42}, got)
}

func TestLoadReturnsLatestSave(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save("tax_rows", artifact{Count: 1}))
	require.NoError(t, store.Save("warnings", artifact{Count: 10}))
	require.NoError(t, store.Save("tax_rows", artifact{Count: 2}))

	var got artifact
	found, err := store.Load("tax_rows", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, got.Count)

	found, err = store.Load("warnings", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 10, got.Count)
}

func TestLoadMissingKeyIsNotAnError(t *testing.T) {
	store := newTestStore(t)

	var got artifact
	found, err := store.Load("never_saved", &got)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSaveRequiresKey(t *testing.T) {
	store := newTestStore(t)
	require.Error(t, store.Save("", artifact{}))
}

func TestUninitializedStoreErrors(t *testing.T) {
	var store *WALStore
	require.Error(t, store.Save("x", artifact{}))
	_, err := store.Load("x", &artifact{})
	require.Error(t, err)
	require.Error(t, store.Close())
}
