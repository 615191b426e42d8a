package reference

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0600))
}

func TestLibrary_LoadsTextAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "ingestion.md", "Every document MUST have a content hash.")
	writeDoc(t, dir, "api.txt", "The API SHALL return JSON.")
	writeDoc(t, dir, "notes.yaml", "ignored: true")

	lib, err := NewLibrary(dir, nil)
	require.NoError(t, err)

	docs := lib.Documents()
	require.Len(t, docs, 2)
	// Name order, not filesystem order.
	assert.Equal(t, "api.txt", docs[0].Name)
	assert.Equal(t, "ingestion.md", docs[1].Name)

	texts := lib.Texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "content hash")
}

func TestLibrary_EmptyDirIsEmptyLibrary(t *testing.T) {
	lib, err := NewLibrary("", nil)
	require.NoError(t, err)
	assert.Empty(t, lib.Texts())
	assert.NoError(t, lib.Reload())
}

func TestLibrary_MissingDirFails(t *testing.T) {
	_, err := NewLibrary(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestLibrary_ReloadReplacesSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "first")

	lib, err := NewLibrary(dir, nil)
	require.NoError(t, err)
	require.Len(t, lib.Texts(), 1)

	writeDoc(t, dir, "b.txt", "second")
	require.NoError(t, lib.Reload())
	assert.Len(t, lib.Texts(), 2)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "first")

	lib, err := NewLibrary(dir, nil)
	require.NoError(t, err)

	w, err := NewWatcher(lib, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	writeDoc(t, dir, "b.txt", "second")

	require.Eventually(t, func() bool {
		return len(lib.Texts()) == 2
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}

func TestWatcher_RequiresDirectory(t *testing.T) {
	lib, err := NewLibrary("", nil)
	require.NoError(t, err)
	_, err = NewWatcher(lib, nil)
	assert.Error(t, err)
}
