package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type artifact struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save("ledger_state", artifact{Name: "run-1", Count: 42}))

	var got artifact
	found, err := store.Load("ledger_state", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, artifact{Name: "run-1", Count: 42}, got)
}

func TestLoadMissingKeyIsNotAnError(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	var got artifact
	found, err := store.Load("never_saved", &got)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSaveOverwritesPreviousValue(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("tax_rows", artifact{Count: 1}))
	require.NoError(t, store.Save("tax_rows", artifact{Count: 2}))

	var got artifact
	found, err := store.Load("tax_rows", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, got.Count)
}

func TestKeysWithSeparatorsStayInsideDir(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("tax_rows/2024", artifact{Count: 7}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, filepath.Base(entries[0].Name()), entries[0].Name())

	var got artifact
	found, err := store.Load("tax_rows/2024", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 7, got.Count)
}

func TestSaveRequiresKey(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	require.Error(t, store.Save("", artifact{}))
}
