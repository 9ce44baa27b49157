package hostfs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackb/modload/pkg/hostfs"
)

func TestOSRealpath(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real.star")
	require.NoError(t, os.WriteFile(real, []byte("x = 1\n"), 0o644))
	link := filepath.Join(dir, "link.star")
	require.NoError(t, os.Symlink(real, link))

	wantReal, err := filepath.EvalSymlinks(real)
	require.NoError(t, err)

	got, err := hostfs.OS{}.Realpath(link)
	require.NoError(t, err)
	assert.Equal(t, wantReal, got)
}

func TestOSRealpathMissing(t *testing.T) {
	_, err := hostfs.OS{}.Realpath(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	var ioErr *hostfs.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "stat", ioErr.Op)
	assert.True(t, hostfs.IsNotExist(err))
}

func TestIsFileIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o644))

	fsys := hostfs.OS{}
	assert.True(t, hostfs.IsFile(fsys, file))
	assert.False(t, hostfs.IsDir(fsys, file))
	assert.True(t, hostfs.IsDir(fsys, dir))
	assert.False(t, hostfs.IsFile(fsys, dir))
	assert.False(t, hostfs.IsFile(fsys, filepath.Join(dir, "nope")))
}
