package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exercise runs the same behavioural checks against any FileSystem rooted
// at dir.
func exercise(t *testing.T, fsys FileSystem, dir string) {
	t.Helper()

	out := filepath.Join(dir, "out")
	require.NoError(t, fsys.MkdirAll(out, 0o755))

	require.NoError(t, fsys.WriteFile(filepath.Join(out, "s2.csv"), []byte("b"), 0o644))
	w, err := fsys.Create(filepath.Join(out, "s1.csv"))
	require.NoError(t, err)
	_, err = io.WriteString(w, "X_centroid,Y_centroid\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, fsys.WriteFile(filepath.Join(out, "notes.txt"), []byte("n"), 0o644))

	names, err := fsys.ListFiles(out, ".csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1.csv", "s2.csv"}, names)

	all, err := fsys.ListFiles(out, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	data, err := fsys.ReadFile(filepath.Join(out, "s1.csv"))
	require.NoError(t, err)
	assert.Equal(t, "X_centroid,Y_centroid\n", string(data))

	f, err := fsys.Open(filepath.Join(out, "s2.csv"))
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "b", string(got))
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Size())
	require.NoError(t, f.Close())

	st, err := fsys.Stat(out)
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	_, err = fsys.ReadFile(filepath.Join(out, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = fsys.Open(filepath.Join(out, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = fsys.Stat(filepath.Join(out, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = fsys.ListFiles(filepath.Join(dir, "nowhere"), ".csv")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOSFileSystem(t *testing.T) {
	exercise(t, OSFileSystem{}, t.TempDir())
}

func TestMemoryFileSystem(t *testing.T) {
	exercise(t, NewMemoryFileSystem(), "/data")
}

func TestMemoryFileSystem_ImplicitParents(t *testing.T) {
	m := NewMemoryFileSystem()
	require.NoError(t, m.WriteFile("/a/b/c.csv", []byte("x"), 0o644))
	for _, dir := range []string{"/a", "/a/b"} {
		st, err := m.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, st.IsDir())
	}
	names, err := m.ListFiles("/a", "")
	require.NoError(t, err)
	assert.Empty(t, names, "ListFiles is not recursive")
}

func TestMemoryFileSystem_DataIsolation(t *testing.T) {
	m := NewMemoryFileSystem()
	data := []byte("abc")
	require.NoError(t, m.WriteFile("f", data, 0o644))
	data[0] = 'z'

	got, err := m.ReadFile("f")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	got[0] = 'q'
	again, _ := m.ReadFile("./f")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	m := NewMemoryFileSystem()
	w, err := m.Create("/out/m.csv")
	require.NoError(t, err)
	_, _ = w.Write([]byte("partial"))

	data, err := m.ReadFile("/out/m.csv")
	require.NoError(t, err)
	assert.Empty(t, data, "writes are published on Close")

	require.NoError(t, w.Close())
	data, err = m.ReadFile("/out/m.csv")
	require.NoError(t, err)
	assert.Equal(t, "partial", string(data))
}
