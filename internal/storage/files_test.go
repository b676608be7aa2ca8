package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://files.local/")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "chat_files", ".pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://files.local/uploads/chat_files/"), url)
	assert.True(t, strings.HasSuffix(url, ".pdf"))

	name := filepath.Base(url)
	body, err := os.ReadFile(filepath.Join(dir, "chat_files", name))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
}

func TestLocalStoreKeepsFolderInsideRoot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "../../etc", ".png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/etc/"), url)

	_, err = os.Stat(filepath.Join(dir, "etc", filepath.Base(url)))
	assert.NoError(t, err)
}

func TestLocalStoreHonoursCancelledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Save(ctx, "chat_files", ".pdf", strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStoreDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://files.local")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "chat-files", ".pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	path := filepath.Join(dir, "chat-files", filepath.Base(url))
	require.FileExists(t, path)

	require.NoError(t, store.Delete(context.Background(), url))
	assert.NoFileExists(t, path)

	// already gone
	assert.NoError(t, store.Delete(context.Background(), url))
}

func TestLocalStoreDeleteRejectsForeignURLs(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://files.local")
	require.NoError(t, err)

	for _, url := range []string{
		"https://elsewhere.example/uploads/chat-files/a.pdf",
		"http://files.local/uploads/../secret.txt",
		"http://files.local/uploads/chat-files/../../x",
		"http://files.local/uploads/a.pdf",
	} {
		assert.ErrorIs(t, store.Delete(context.Background(), url), ErrForeignURL, url)
	}
}
