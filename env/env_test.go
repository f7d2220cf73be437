package env

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ls4154/chunklog/base"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, e base.Env, name string) []byte {
	t.Helper()
	f, err := e.NewSequentialFile(name)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

func TestGenericEnvAppend(t *testing.T) {
	e := DefaultEnv()
	name := filepath.Join(t.TempDir(), "file")
	require.False(t, e.FileExists(name))

	f, err := e.NewAppendableFile(name)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello "))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = e.NewAppendableFile(name)
	require.NoError(t, err)
	_, err = f.Write([]byte("world"))
	require.NoError(t, err)

	// buffered until flushed
	size, err := e.GetFileSize(name)
	require.NoError(t, err)
	require.Equal(t, uint64(6), size)

	require.NoError(t, f.Flush())
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	require.True(t, e.FileExists(name))
	require.Equal(t, []byte("hello world"), readAll(t, e, name))

	f, err = e.NewWritableFile(name)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Empty(t, readAll(t, e, name))

	target := name + ".moved"
	require.NoError(t, e.RenameFile(name, target))
	require.False(t, e.FileExists(name))
	require.NoError(t, e.RemoveFile(target))
	require.False(t, e.FileExists(target))
}

func TestMemEnvBuffersUntilFlush(t *testing.T) {
	e := NewMemEnv()

	f, err := e.NewAppendableFile("f")
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)

	data, ok := e.Contents("f")
	require.True(t, ok)
	require.Empty(t, data)

	require.NoError(t, f.Flush())
	data, _ = e.Contents("f")
	require.Equal(t, []byte("abc"), data)

	_, err = f.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.ErrorIs(t, f.Close(), os.ErrClosed)

	require.Equal(t, []byte("abcdef"), readAll(t, e, "f"))

	require.NoError(t, e.Truncate("f", 2))
	size, err := e.GetFileSize("f")
	require.NoError(t, err)
	require.Equal(t, uint64(2), size)
}

func TestMemEnvWriteError(t *testing.T) {
	e := NewMemEnv()
	injected := os.ErrPermission
	e.SetWriteError(injected)

	f, err := e.NewAppendableFile("f")
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)
	require.ErrorIs(t, f.Flush(), injected)
	require.ErrorIs(t, f.Close(), injected)

	data, ok := e.Contents("f")
	require.True(t, ok)
	require.Empty(t, data)
}

func TestMemEnvMissingFile(t *testing.T) {
	e := NewMemEnv()

	_, err := e.NewSequentialFile("missing")
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = e.GetFileSize("missing")
	require.ErrorIs(t, err, os.ErrNotExist)
	require.ErrorIs(t, e.RemoveFile("missing"), os.ErrNotExist)
	require.ErrorIs(t, e.RenameFile("missing", "other"), os.ErrNotExist)
	require.ErrorIs(t, e.Truncate("missing", 0), os.ErrNotExist)
}

func TestMemEnvOpenFileInUse(t *testing.T) {
	e := NewMemEnv()
	e.SetContents("f", []byte("old"))
	e.SetContents("f.tmp", []byte("new"))

	f, err := e.NewSequentialFile("f")
	require.NoError(t, err)

	require.Error(t, e.RenameFile("f.tmp", "f"))
	require.Error(t, e.RemoveFile("f"))

	require.NoError(t, f.Close())
	require.NoError(t, e.RenameFile("f.tmp", "f"))
	require.Equal(t, []byte("new"), readAll(t, e, "f"))
}
