package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.JPG", "c.jpeg", "d.bmp", "notes.txt", "README"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o755))

	images, err := ListImages(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "a.JPG"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "c.jpeg"),
		filepath.Join(dir, "d.bmp"),
	}, images)
}

func TestListImages_Empty(t *testing.T) {
	images, err := ListImages(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestListImages_MissingDir(t *testing.T) {
	_, err := ListImages(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("class/room.JPG"))
	assert.True(t, IsImage("a.bmp"))
	assert.False(t, IsImage("notes.txt"))
	assert.False(t, IsImage("noext"))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "reports")
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
