package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandGlobs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.webm", "b.wav", "nested/c.webm", "notes.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}

	files, err := expandGlobs([]string{
		filepath.Join(dir, "**", "*.webm"),
		filepath.Join(dir, "a.webm"),
		filepath.Join(dir, "missing.wav"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "a.webm"),
		filepath.Join(dir, "missing.wav"),
		filepath.Join(dir, "nested", "c.webm"),
	}, files)
}

func TestExpandGlobs_BadPattern(t *testing.T) {
	_, err := expandGlobs([]string{"[unclosed"})
	assert.Error(t, err)
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
	assert.Equal(t, "2.0 MiB", humanBytes(2<<20))
}
