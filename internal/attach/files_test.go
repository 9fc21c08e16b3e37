package attach

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zeta.pdf", "alpha.docx", ".DS_Store", "middle.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	files, err := ListFiles(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "alpha.docx"),
		filepath.Join(dir, "middle.png"),
		filepath.Join(dir, "zeta.pdf"),
	}, files)
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f))
	}
}

func TestListFiles_MissingDirectory(t *testing.T) {
	_, err := ListFiles(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestListFiles_Empty(t *testing.T) {
	files, err := ListFiles(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}
