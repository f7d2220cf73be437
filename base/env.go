package base

import "io"

type Env interface {
	NewSequentialFile(name string) (SequentialFile, error)
	NewWritableFile(name string) (WritableFile, error)
	NewAppendableFile(name string) (WritableFile, error)
	RemoveFile(name string) error
	RenameFile(src, target string) error
	FileExists(name string) bool
	GetFileSize(name string) (uint64, error)
}

type SequentialFile interface {
	io.Reader
	io.Closer
}

// WritableFile buffers writes; Flush hands buffered bytes to the OS and Sync
// additionally forces them to stable storage.
type WritableFile interface {
	io.Writer
	io.Closer
	Flush() error
	Sync() error
}
