package env

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/ls4154/chunklog/base"
)

var errFileInUse = errors.New("file in use")

// MemEnv is an in-memory Env. Writable files buffer writes until Flush,
// Sync, or Close, so dropping a writer without closing it behaves like a
// killed process. Like Windows, a file open for reading cannot be renamed
// over or removed.
type MemEnv struct {
	mu       sync.Mutex
	files    map[string][]byte
	readers  map[string]int // open sequential files per name
	writeErr error
}

var _ base.Env = (*MemEnv)(nil)

func NewMemEnv() *MemEnv {
	return &MemEnv{
		files:   make(map[string][]byte),
		readers: make(map[string]int),
	}
}

// SetContents replaces the contents of name, creating it if needed.
func (e *MemEnv) SetContents(name string, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = append([]byte(nil), data...)
}

// Contents returns a copy of the flushed contents of name.
func (e *MemEnv) Contents(name string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.files[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Truncate cuts name down to size bytes.
func (e *MemEnv) Truncate(name string, size int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.files[name]
	if !ok {
		return os.ErrNotExist
	}
	if size < len(data) {
		e.files[name] = data[:size]
	}
	return nil
}

// SetWriteError makes every subsequent flush fail with err. nil clears it.
func (e *MemEnv) SetWriteError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writeErr = err
}

func (e *MemEnv) NewSequentialFile(name string) (base.SequentialFile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.files[name]; !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	e.readers[name]++
	return &memSequentialFile{env: e, name: name}, nil
}

func (e *MemEnv) NewWritableFile(name string) (base.WritableFile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = nil
	return &memWritableFile{env: e, name: name}, nil
}

func (e *MemEnv) NewAppendableFile(name string) (base.WritableFile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.files[name]; !ok {
		e.files[name] = nil
	}
	return &memWritableFile{env: e, name: name}, nil
}

func (e *MemEnv) RemoveFile(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.files[name]; !ok {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrNotExist}
	}
	if e.readers[name] > 0 {
		return &os.PathError{Op: "remove", Path: name, Err: errFileInUse}
	}
	delete(e.files, name)
	return nil
}

func (e *MemEnv) RenameFile(src, target string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.files[src]
	if !ok {
		return &os.LinkError{Op: "rename", Old: src, New: target, Err: os.ErrNotExist}
	}
	if e.readers[src] > 0 || e.readers[target] > 0 {
		return &os.LinkError{Op: "rename", Old: src, New: target, Err: errFileInUse}
	}
	e.files[target] = data
	delete(e.files, src)
	return nil
}

func (e *MemEnv) FileExists(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.files[name]
	return ok
}

func (e *MemEnv) GetFileSize(name string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.files[name]
	if !ok {
		return 0, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	return uint64(len(data)), nil
}

type memSequentialFile struct {
	env    *MemEnv
	name   string
	offset int
	closed bool
}

func (f *memSequentialFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	f.env.mu.Lock()
	data := f.env.files[f.name]
	f.env.mu.Unlock()

	if f.offset >= len(data) {
		return 0, io.EOF
	}
	n := copy(p, data[f.offset:])
	f.offset += n
	return n, nil
}

func (f *memSequentialFile) Close() error {
	if f.closed {
		return os.ErrClosed
	}
	f.closed = true
	f.env.mu.Lock()
	f.env.readers[f.name]--
	f.env.mu.Unlock()
	return nil
}

type memWritableFile struct {
	env     *MemEnv
	name    string
	pending []byte
	closed  bool
}

func (f *memWritableFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	f.pending = append(f.pending, p...)
	return len(p), nil
}

func (f *memWritableFile) Flush() error {
	if f.closed {
		return os.ErrClosed
	}
	f.env.mu.Lock()
	defer f.env.mu.Unlock()
	if f.env.writeErr != nil {
		return f.env.writeErr
	}
	f.env.files[f.name] = append(f.env.files[f.name], f.pending...)
	f.pending = f.pending[:0]
	return nil
}

func (f *memWritableFile) Sync() error {
	return f.Flush()
}

func (f *memWritableFile) Close() error {
	if f.closed {
		return os.ErrClosed
	}
	err := f.Flush()
	f.closed = true
	return err
}
