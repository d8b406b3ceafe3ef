package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ArtifactStore {
	t.Helper()
	store, err := NewArtifactStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return store
}

func writeArtifact(t *testing.T, store *ArtifactStore, path, content string) {
	t.Helper()
	full, err := store.Resolve(path)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func TestNewArtifactStoreCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "uploads")
	_, err := NewArtifactStore(root)
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveRejectsEscapes(t *testing.T) {
	store := newTestStore(t)

	for _, path := range []string{"/etc/passwd", "../outside.pdf", "a/../../outside.pdf"} {
		_, err := store.Resolve(path)
		assert.Error(t, err, path)
	}

	full, err := store.Resolve("shop1/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root(), "shop1", "doc.pdf"), full)
}

func TestRemove(t *testing.T) {
	store := newTestStore(t)
	writeArtifact(t, store, "shop1/doc.pdf", "content")

	require.NoError(t, store.Remove("shop1/doc.pdf"))
	assert.False(t, store.Exists("shop1/doc.pdf"))

	// Removing again is not an error; the file is simply already gone.
	assert.NoError(t, store.Remove("shop1/doc.pdf"))
}

func TestExists(t *testing.T) {
	store := newTestStore(t)
	writeArtifact(t, store, "shop1/doc.pdf", "content")

	assert.True(t, store.Exists("shop1/doc.pdf"))
	assert.False(t, store.Exists("shop1/other.pdf"))
	assert.False(t, store.Exists("shop1"))
	assert.False(t, store.Exists("../doc.pdf"))
}

func TestOpenStreamsContent(t *testing.T) {
	store := newTestStore(t)
	writeArtifact(t, store, "shop1/doc.pdf", "hello world")

	rc, err := store.Open("shop1/doc.pdf")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}
