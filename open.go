package chunklog

import (
	"errors"
	"io"

	"github.com/ls4154/chunklog/base"
	"github.com/ls4154/chunklog/chunk"
)

// NewWriter opens name for append and starts a chunk.
func NewWriter(name string, options *base.Options) (*chunk.Writer, error) {
	return chunk.NewWriter(name, options)
}

// NewReader opens name for reading its well-formed chunks.
func NewReader(name string, options *base.Options) (*chunk.Reader, error) {
	return chunk.NewReader(name, options)
}

// ReadAll returns the payloads of every well-formed chunk in name.
func ReadAll(name string, options *base.Options) ([][]byte, error) {
	r, err := chunk.NewReader(name, options)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var records [][]byte
	for {
		record, err := r.ReadChunk()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
}

// AppendChunks commits each record as its own chunk.
func AppendChunks(name string, options *base.Options, records ...[]byte) error {
	if len(records) == 0 {
		return nil
	}

	w, err := chunk.NewWriter(name, options)
	if err != nil {
		return err
	}
	for _, record := range records {
		if _, err := w.Write(record); err != nil {
			return err
		}
		if err := w.Commit(); err != nil {
			return err
		}
	}
	return nil
}
