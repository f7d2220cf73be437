package chunklog

import (
	"errors"
	"fmt"
	"io"

	"github.com/ls4154/chunklog/base"
	"github.com/ls4154/chunklog/chunk"
)

// Repair rewrites name so that it holds only its well-formed chunks,
// dropping garbage, torn chunks and bytes before embedded chunk starts.
// The rewrite goes through a temporary file renamed over name.
func Repair(name string, options *base.Options) (chunk.ReaderStats, error) {
	opt, err := chunk.SanitizeOptions(options)
	if err != nil {
		return chunk.ReaderStats{}, err
	}

	r, err := chunk.NewReader(name, opt)
	if err != nil {
		return chunk.ReaderStats{}, err
	}
	defer r.Close()

	tmp := chunk.TempFileName(name)
	out, err := opt.Env.NewWritableFile(tmp)
	if err != nil {
		return chunk.ReaderStats{}, fmt.Errorf("%w: create %s: %v", base.ErrIO, tmp, err)
	}
	if err := out.Close(); err != nil {
		return chunk.ReaderStats{}, fmt.Errorf("%w: create %s: %v", base.ErrIO, tmp, err)
	}

	if err := copyChunks(r, tmp, opt); err != nil {
		_ = opt.Env.RemoveFile(tmp)
		return chunk.ReaderStats{}, err
	}

	// release name before replacing it
	stats := r.Stats()
	_ = r.Close()

	if err := opt.Env.RenameFile(tmp, name); err != nil {
		_ = opt.Env.RemoveFile(tmp)
		return chunk.ReaderStats{}, fmt.Errorf("%w: rename %s: %v", base.ErrIO, tmp, err)
	}

	opt.Logger.Printf("chunklog: repaired %s: kept %d chunks, dropped %d bytes",
		name, stats.Chunks, stats.GarbageBytes+stats.RefinedBytes+stats.TornBytes)
	return stats, nil
}

func copyChunks(r *chunk.Reader, dest string, opt *base.Options) error {
	var w *chunk.Writer
	for {
		record, err := r.ReadChunk()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if w == nil {
			w, err = chunk.NewWriter(dest, opt)
			if err != nil {
				return err
			}
		}
		if _, err := w.Write(record); err != nil {
			return err
		}
		if err := w.Commit(); err != nil {
			return err
		}
	}
}
