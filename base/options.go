package base

import (
	"errors"
)

type CompressionType uint8

const (
	NoCompression CompressionType = iota
	SnappyCompression
)

type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// NopLogger discards everything.
var NopLogger Logger = nopLogger{}

type Options struct {
	// Env defaults to the OS environment when nil.
	Env Env

	// ReadBufferSize is the size of the reader's fixed read-ahead buffer.
	ReadBufferSize int

	// SyncOnCommit fsyncs the log file on every commit, not just flushes it.
	SyncOnCommit bool

	// Compression applies to state snapshots. Raw chunks are never compressed.
	Compression CompressionType

	Logger Logger
}

func DefaultOptions() *Options {
	return &Options{
		ReadBufferSize: 32 * 1024,
		SyncOnCommit:   false,
		Compression:    NoCompression,
	}
}

var (
	ErrNotFound        = errors.New("not found")
	ErrCorruption      = errors.New("corrupted")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrIO              = errors.New("io error")
	ErrClosed          = errors.New("closed")
)
