package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStoreWriteAndRemove(t *testing.T) {
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "attachments"))
	require.NoError(t, err)

	path, err := store.Write("1_1700000000_report.pdf", []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(store.Root(), "1_1700000000_report.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)

	require.NoError(t, store.Remove(path))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestLocalStoreRemoveMissingFile(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Remove(filepath.Join(store.Root(), "never-written.bin")))
}

func TestNewLocalStoreRequiresRoot(t *testing.T) {
	_, err := NewLocalStore("")
	require.Error(t, err)
}

func TestNewLocalStoreCreatesNestedDirs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b", "c")
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	info, err := os.Stat(store.Root())
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
