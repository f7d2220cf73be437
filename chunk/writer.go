package chunk

import (
	"fmt"

	"github.com/ls4154/chunklog/base"
	"github.com/ls4154/chunklog/util"
)

// Writer appends chunks to a single log file. It is not safe for
// concurrent use.
type Writer struct {
	name string
	opt  *base.Options
	dest base.WritableFile // nil when no chunk is open
}

// NewWriter opens name for append, creating it if needed, and starts a
// chunk.
func NewWriter(name string, options *base.Options) (*Writer, error) {
	opt, err := SanitizeOptions(options)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		name: name,
		opt:  opt,
	}
	if err := w.begin(); err != nil {
		return nil, err
	}
	return w, nil
}

// Name returns the path of the log file.
func (w *Writer) Name() string {
	return w.name
}

// IsOpen reports whether a chunk has been started and not yet committed.
func (w *Writer) IsOpen() bool {
	return w.dest != nil
}

// Write appends p to the open chunk. After a Commit the file is reopened
// and a new chunk is started first.
func (w *Writer) Write(p []byte) (int, error) {
	if w.dest == nil {
		if err := w.begin(); err != nil {
			return 0, err
		}
	}

	n, err := w.dest.Write(p)
	if err != nil {
		w.abandon()
		return n, fmt.Errorf("%w: write %s: %v", base.ErrIO, w.name, err)
	}
	util.Assert(n == len(p))
	return n, nil
}

// Commit terminates the open chunk and closes the file. Calling Commit
// with no open chunk does nothing.
func (w *Writer) Commit() error {
	if w.dest == nil {
		return nil
	}

	if _, err := w.dest.Write(endMarker[:]); err != nil {
		w.abandon()
		return fmt.Errorf("%w: write %s: %v", base.ErrIO, w.name, err)
	}

	var err error
	if w.opt.SyncOnCommit {
		err = w.dest.Sync()
	} else {
		err = w.dest.Flush()
	}
	if err != nil {
		w.abandon()
		return fmt.Errorf("%w: flush %s: %v", base.ErrIO, w.name, err)
	}

	dest := w.dest
	w.dest = nil
	if err := dest.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", base.ErrIO, w.name, err)
	}
	return nil
}

// Abandon releases the file without committing. Bytes already written
// stay behind as a torn chunk that readers skip. It does nothing when no
// chunk is open, so it can be deferred next to Commit.
func (w *Writer) Abandon() {
	w.abandon()
}

func (w *Writer) begin() error {
	util.Assert(w.dest == nil)

	f, err := w.opt.Env.NewAppendableFile(w.name)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", base.ErrIO, w.name, err)
	}
	w.dest = f

	if _, err := w.dest.Write(beginMarker[:]); err != nil {
		w.abandon()
		return fmt.Errorf("%w: write %s: %v", base.ErrIO, w.name, err)
	}
	return nil
}

// abandon releases the file after a failure. The chunk stays torn on disk
// and the close error is dropped since the caller already has the
// primary one.
func (w *Writer) abandon() {
	if w.dest == nil {
		return
	}
	_ = w.dest.Close()
	w.dest = nil
}
