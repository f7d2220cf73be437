package state

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ls4154/chunklog/base"
	"github.com/ls4154/chunklog/chunk"
	"github.com/ls4154/chunklog/env"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu   sync.Mutex
	logs []string
}

func (l *recordingLogger) Printf(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, fmt.Sprintf(format, v...))
}

func (l *recordingLogger) Contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.logs {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func memOptions(e *env.MemEnv) *base.Options {
	opt := base.DefaultOptions()
	opt.Env = e
	return opt
}

func TestStorePersists(t *testing.T) {
	for _, compression := range []base.CompressionType{base.NoCompression, base.SnappyCompression} {
		t.Run(fmt.Sprintf("compression=%d", compression), func(t *testing.T) {
			name := filepath.Join(t.TempDir(), "STATE")
			opt := base.DefaultOptions()
			opt.Compression = compression

			s, err := Open(name, opt)
			require.NoError(t, err)
			require.Zero(t, s.Len())

			require.NoError(t, s.Put("installed", []byte("true")))
			require.NoError(t, s.Put("version", []byte("4.2")))
			require.NoError(t, s.Put("empty", nil))
			require.True(t, s.Dirty())
			require.NoError(t, s.Save())
			require.False(t, s.Dirty())

			require.NoError(t, s.Delete("installed"))
			require.NoError(t, s.Put("version", []byte("4.3")))
			require.NoError(t, s.Save())
			require.NoError(t, s.Close())

			s, err = Open(name, opt)
			require.NoError(t, err)
			defer s.Close()

			require.Equal(t, []string{"empty", "version"}, s.Keys())
			require.Equal(t, 2, s.Snapshots())

			v, err := s.Get("version")
			require.NoError(t, err)
			require.Equal(t, []byte("4.3"), v)

			v, err = s.Get("empty")
			require.NoError(t, err)
			require.Empty(t, v)

			_, err = s.Get("installed")
			require.ErrorIs(t, err, base.ErrNotFound)
		})
	}
}

func TestStoreMissingFile(t *testing.T) {
	e := env.NewMemEnv()

	s, err := Open("STATE", memOptions(e))
	require.NoError(t, err)
	require.Zero(t, s.Len())
	require.Zero(t, s.Snapshots())
	require.False(t, e.FileExists("STATE"))

	require.NoError(t, s.Save())
	require.True(t, e.FileExists("STATE"))
}

func TestStoreSkipsCorruptSnapshot(t *testing.T) {
	e := env.NewMemEnv()
	logs := &recordingLogger{}
	opt := memOptions(e)
	opt.Logger = logs

	s, err := Open("STATE", opt)
	require.NoError(t, err)
	require.NoError(t, s.Put("k", []byte("old")))
	require.NoError(t, s.Save())
	require.NoError(t, s.Put("k", []byte("new")))
	require.NoError(t, s.Save())
	require.NoError(t, s.Close())

	raw, ok := e.Contents("STATE")
	require.True(t, ok)
	raw[len(raw)-chunk.DelimiterSize-1] ^= 0x01 // last byte of the newest snapshot
	e.SetContents("STATE", raw)

	s, err = Open("STATE", opt)
	require.NoError(t, err)
	v, err := s.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("old"), v)
	require.Equal(t, 2, s.Snapshots())
	require.True(t, logs.Contains("skipping snapshot 2"))
}

func TestStoreIgnoresTornSave(t *testing.T) {
	e := env.NewMemEnv()
	opt := memOptions(e)

	s, err := Open("STATE", opt)
	require.NoError(t, err)
	require.NoError(t, s.Put("k", []byte("committed")))
	require.NoError(t, s.Save())
	committedSize, err := e.GetFileSize("STATE")
	require.NoError(t, err)

	require.NoError(t, s.Put("k", []byte("torn")))
	require.NoError(t, s.Save())
	require.NoError(t, e.Truncate("STATE", int(committedSize)+chunk.DelimiterSize+3))

	s, err = Open("STATE", opt)
	require.NoError(t, err)
	v, err := s.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("committed"), v)
	require.Equal(t, 1, s.Snapshots())

	// the next save lands after the torn one and wins
	require.NoError(t, s.Put("k", []byte("again")))
	require.NoError(t, s.Save())

	s, err = Open("STATE", opt)
	require.NoError(t, err)
	v, err = s.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("again"), v)
}

func TestStoreCompact(t *testing.T) {
	e := env.NewMemEnv()
	opt := memOptions(e)
	opt.Compression = base.SnappyCompression

	s, err := Open("STATE", opt)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Put(fmt.Sprintf("key%02d", i), []byte(strings.Repeat("v", i))))
		require.NoError(t, s.Save())
	}
	before, err := e.GetFileSize("STATE")
	require.NoError(t, err)
	require.Equal(t, 10, s.Snapshots())

	require.NoError(t, s.Compact())
	require.Equal(t, 1, s.Snapshots())
	require.False(t, e.FileExists("STATE.tmp"))

	after, err := e.GetFileSize("STATE")
	require.NoError(t, err)
	require.Less(t, after, before)

	s, err = Open("STATE", opt)
	require.NoError(t, err)
	require.Equal(t, 10, s.Len())
	require.Equal(t, 1, s.Snapshots())
	v, err := s.Get("key09")
	require.NoError(t, err)
	require.Equal(t, []byte("vvvvvvvvv"), v)
}

func TestStoreClosed(t *testing.T) {
	s, err := Open("STATE", memOptions(env.NewMemEnv()))
	require.NoError(t, err)
	require.NoError(t, s.Put("k", []byte("v")))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Get("k")
	require.ErrorIs(t, err, base.ErrClosed)
	require.ErrorIs(t, s.Put("k", nil), base.ErrClosed)
	require.ErrorIs(t, s.Delete("k"), base.ErrClosed)
	require.ErrorIs(t, s.Save(), base.ErrClosed)
	require.ErrorIs(t, s.Compact(), base.ErrClosed)
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s, err := Open("STATE", memOptions(env.NewMemEnv()))
	require.NoError(t, err)

	value := []byte("abc")
	require.NoError(t, s.Put("k", value))
	value[0] = 'x'

	v, err := s.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), v)
	v[0] = 'y'

	v, err = s.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), v)
}

func TestStoreRejectsDelimiterInValue(t *testing.T) {
	markers := map[string][]byte{
		"begin": chunk.BeginMarker(),
		"end":   chunk.EndMarker(),
	}

	for name, marker := range markers {
		for _, compression := range []base.CompressionType{base.NoCompression, base.SnappyCompression} {
			t.Run(fmt.Sprintf("%s/compression=%d", name, compression), func(t *testing.T) {
				e := env.NewMemEnv()
				opt := memOptions(e)
				opt.Compression = compression

				s, err := Open("STATE", opt)
				require.NoError(t, err)
				require.NoError(t, s.Put("k", []byte("old")))
				require.NoError(t, s.Save())
				size, err := e.GetFileSize("STATE")
				require.NoError(t, err)

				require.NoError(t, s.Put("k", append([]byte("x"), marker...)))
				require.ErrorIs(t, s.Save(), base.ErrInvalidArgument)
				require.ErrorIs(t, s.Compact(), base.ErrInvalidArgument)
				require.True(t, s.Dirty())

				after, err := e.GetFileSize("STATE")
				require.NoError(t, err)
				require.Equal(t, size, after)
				require.False(t, e.FileExists(chunk.TempFileName("STATE")))

				// the store stays usable once the value is replaced
				require.NoError(t, s.Put("k", []byte("new")))
				require.NoError(t, s.Save())

				s, err = Open("STATE", opt)
				require.NoError(t, err)
				v, err := s.Get("k")
				require.NoError(t, err)
				require.Equal(t, []byte("new"), v)
			})
		}
	}
}
