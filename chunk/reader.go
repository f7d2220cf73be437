package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ls4154/chunklog/base"
	"github.com/ls4154/chunklog/util"
)

type readerState uint8

const (
	stateSeeking readerState = iota
	stateServing
	stateExhausted
)

// ReaderStats counts what the reader served and what it skipped.
type ReaderStats struct {
	Chunks       int   // well-formed chunks served
	PayloadBytes int64 // bytes in served chunks
	GarbageBytes int64 // bytes skipped while looking for BEGIN
	RefinedBytes int64 // bytes dropped in front of an embedded BEGIN
	TornBytes    int64 // bytes of a trailing chunk with no END
}

// Reader yields the payloads of the well-formed chunks of a log file in
// file order. Damaged regions are skipped without error. It is not safe for
// concurrent use.
type Reader struct {
	name   string
	logger base.Logger
	src    base.SequentialFile

	backingStore []byte // fixed read-ahead buffer
	buf          []byte // unprocessed slice into backingStore
	eof          bool

	chunk   []byte // accumulated body of the current chunk
	payload []byte // refined suffix of chunk being served
	pos     int

	state  readerState
	closed bool
	stats  ReaderStats
}

func NewReader(name string, options *base.Options) (*Reader, error) {
	opt, err := SanitizeOptions(options)
	if err != nil {
		return nil, err
	}

	src, err := opt.Env.NewSequentialFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", base.ErrIO, name, err)
	}

	r := &Reader{
		name:         name,
		logger:       opt.Logger,
		src:          src,
		backingStore: make([]byte, opt.ReadBufferSize),
		state:        stateSeeking,
	}
	r.buf = r.backingStore[:0]
	return r, nil
}

// ReadByte returns the next payload byte, or io.EOF once every chunk has
// been served.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.fillPayload(); err != nil {
		return 0, err
	}
	c := r.payload[r.pos]
	r.pos++
	return c, nil
}

// Read copies payload bytes into p. A single call never spans two chunks.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		if r.closed {
			return 0, base.ErrClosed
		}
		return 0, nil
	}
	if err := r.fillPayload(); err != nil {
		return 0, err
	}
	n := copy(p, r.payload[r.pos:])
	r.pos += n
	return n, nil
}

// ReadChunk returns the next chunk payload. If part of the current chunk
// was already consumed through Read or ReadByte, the rest of it is
// returned. An empty chunk yields an empty, non-nil slice.
func (r *Reader) ReadChunk() ([]byte, error) {
	if r.closed {
		return nil, base.ErrClosed
	}
	if r.state != stateServing || r.pos >= len(r.payload) {
		ok, err := r.nextChunk()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, io.EOF
		}
	}

	result := make([]byte, len(r.payload)-r.pos)
	copy(result, r.payload[r.pos:])
	r.pos = len(r.payload)
	return result, nil
}

// Available returns how many bytes can be read without touching the file.
func (r *Reader) Available() int {
	if r.closed || r.state != stateServing {
		return 0
	}
	return len(r.payload) - r.pos
}

func (r *Reader) Stats() ReaderStats {
	return r.stats
}

// Close releases the file. Further reads fail with base.ErrClosed.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.state = stateExhausted
	r.chunk = nil
	r.payload = nil
	r.buf = nil
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", base.ErrIO, r.name, err)
	}
	return nil
}

// fillPayload makes sure at least one unread payload byte is buffered,
// skipping empty chunks.
func (r *Reader) fillPayload() error {
	if r.closed {
		return base.ErrClosed
	}
	for r.state != stateServing || r.pos >= len(r.payload) {
		ok, err := r.nextChunk()
		if err != nil {
			return err
		}
		if !ok {
			return io.EOF
		}
	}
	return nil
}

// nextChunk locates, accumulates and refines the next well-formed chunk.
// It returns false once the log is exhausted.
func (r *Reader) nextChunk() (bool, error) {
	if r.state == stateExhausted {
		return false, nil
	}
	r.state = stateSeeking
	r.payload = nil
	r.pos = 0

	found, err := r.seekBegin()
	if err != nil {
		return false, err
	}
	if !found {
		r.state = stateExhausted
		return false, nil
	}

	complete, err := r.accumulate()
	if err != nil {
		return false, err
	}
	if !complete {
		r.logger.Printf("chunk: %s: dropped torn chunk of %d bytes at end of log", r.name, len(r.chunk))
		r.stats.TornBytes += int64(len(r.chunk))
		r.chunk = r.chunk[:0]
		r.state = stateExhausted
		return false, nil
	}

	r.payload = Refine(r.chunk)
	if dropped := len(r.chunk) - len(r.payload); dropped > 0 {
		r.logger.Printf("chunk: %s: dropped %d bytes before embedded chunk start", r.name, dropped)
		r.stats.RefinedBytes += int64(dropped)
	}
	r.stats.Chunks++
	r.stats.PayloadBytes += int64(len(r.payload))
	r.state = stateServing
	return true, nil
}

// seekBegin consumes input up to and including the next BEGIN marker.
func (r *Reader) seekBegin() (bool, error) {
	var skipped int64
	defer func() {
		if skipped > 0 {
			r.logger.Printf("chunk: %s: skipped %d bytes of garbage", r.name, skipped)
			r.stats.GarbageBytes += skipped
		}
	}()

	for {
		if i := bytes.Index(r.buf, beginMarker[:]); i >= 0 {
			skipped += int64(i)
			r.buf = r.buf[i+DelimiterSize:]
			return true, nil
		}

		// keep a possible partial marker at the tail
		if keep := DelimiterSize - 1; len(r.buf) > keep {
			skipped += int64(len(r.buf) - keep)
			r.buf = r.buf[len(r.buf)-keep:]
		}

		if r.eof {
			skipped += int64(len(r.buf))
			r.buf = r.buf[:0]
			return false, nil
		}
		if err := r.fill(); err != nil {
			return false, err
		}
	}
}

// accumulate collects the chunk body up to the next END marker into
// r.chunk. It returns false if the input ends first.
func (r *Reader) accumulate() (bool, error) {
	r.chunk = r.chunk[:0]

	for {
		if i := bytes.Index(r.buf, endMarker[:]); i >= 0 {
			r.chunk = append(r.chunk, r.buf[:i]...)
			r.buf = r.buf[i+DelimiterSize:]
			return true, nil
		}

		if keep := DelimiterSize - 1; len(r.buf) > keep {
			r.chunk = append(r.chunk, r.buf[:len(r.buf)-keep]...)
			r.buf = r.buf[len(r.buf)-keep:]
		}

		if r.eof {
			r.chunk = append(r.chunk, r.buf...)
			r.buf = r.buf[:0]
			return false, nil
		}
		if err := r.fill(); err != nil {
			return false, err
		}
	}
}

// fill moves unprocessed bytes to the front of the backing store and reads
// more after them.
func (r *Reader) fill() error {
	util.Assert(!r.eof)

	tail := copy(r.backingStore, r.buf)
	util.Assert(tail < len(r.backingStore))

	for {
		n, err := r.src.Read(r.backingStore[tail:])
		r.buf = r.backingStore[:tail+n]
		if errors.Is(err, io.EOF) {
			r.eof = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", base.ErrIO, r.name, err)
		}
		if n > 0 {
			return nil
		}
	}
}
