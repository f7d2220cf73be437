package env

import (
	"bufio"
	"os"

	"github.com/ls4154/chunklog/base"
)

const writableFileBufferSize = 64 * 1024

type GenericEnv struct{}

var globalEnv *GenericEnv

func init() {
	globalEnv = &GenericEnv{}
}

func DefaultEnv() *GenericEnv {
	return globalEnv
}

var _ base.Env = (*GenericEnv)(nil)

func (e *GenericEnv) NewSequentialFile(name string) (base.SequentialFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (e *GenericEnv) NewWritableFile(name string) (base.WritableFile, error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return newPosixWritableFile(f), nil
}

func (e *GenericEnv) NewAppendableFile(name string) (base.WritableFile, error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return newPosixWritableFile(f), nil
}

func (e *GenericEnv) RemoveFile(name string) error {
	return os.Remove(name)
}

func (e *GenericEnv) RenameFile(src, target string) error {
	return os.Rename(src, target)
}

func (e *GenericEnv) FileExists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func (e *GenericEnv) GetFileSize(name string) (uint64, error) {
	stat, err := os.Stat(name)
	if err != nil {
		return 0, err
	}
	return uint64(stat.Size()), nil
}

type posixWritableFile struct {
	f  *os.File
	bw *bufio.Writer
}

func newPosixWritableFile(f *os.File) *posixWritableFile {
	return &posixWritableFile{
		f:  f,
		bw: bufio.NewWriterSize(f, writableFileBufferSize),
	}
}

func (w *posixWritableFile) Write(p []byte) (int, error) {
	return w.bw.Write(p)
}

func (w *posixWritableFile) Flush() error {
	return w.bw.Flush()
}

func (w *posixWritableFile) Sync() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	return w.f.Sync()
}

// Close flushes buffered bytes before closing. The descriptor is released
// even when the flush fails.
func (w *posixWritableFile) Close() error {
	ferr := w.bw.Flush()
	cerr := w.f.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}
