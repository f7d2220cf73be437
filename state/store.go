// Package state keeps a small key/value map durable in a chunk log. Every
// Save appends a full snapshot as one chunk; Open adopts the newest
// snapshot that decodes cleanly.
package state

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ls4154/chunklog/base"
	"github.com/ls4154/chunklog/chunk"
)

// Store is not safe for concurrent use.
type Store struct {
	name    string
	opt     *base.Options
	entries map[string][]byte
	dirty   bool
	closed  bool

	snapshots int // snapshots present in the log file
}

// Open loads the newest intact snapshot from name. A missing file yields
// an empty store; the file is created on the first Save.
func Open(name string, options *base.Options) (*Store, error) {
	opt, err := chunk.SanitizeOptions(options)
	if err != nil {
		return nil, err
	}

	s := &Store{
		name:    name,
		opt:     opt,
		entries: make(map[string][]byte),
	}
	if !opt.Env.FileExists(name) {
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	r, err := chunk.NewReader(s.name, s.opt)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		data, err := r.ReadChunk()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		s.snapshots++

		entries, err := decodeSnapshot(data)
		if err != nil {
			s.opt.Logger.Printf("state: %s: skipping snapshot %d: %v", s.name, s.snapshots, err)
			continue
		}
		s.entries = entries
	}
}

func (s *Store) Get(key string) ([]byte, error) {
	if s.closed {
		return nil, base.ErrClosed
	}
	v, ok := s.entries[key]
	if !ok {
		return nil, base.ErrNotFound
	}
	return append([]byte{}, v...), nil
}

func (s *Store) Put(key string, value []byte) error {
	if s.closed {
		return base.ErrClosed
	}
	s.entries[key] = append([]byte{}, value...)
	s.dirty = true
	return nil
}

func (s *Store) Delete(key string) error {
	if s.closed {
		return base.ErrClosed
	}
	if _, ok := s.entries[key]; ok {
		delete(s.entries, key)
		s.dirty = true
	}
	return nil
}

// Keys returns all keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) Len() int {
	return len(s.entries)
}

// Dirty reports whether there are changes not yet saved.
func (s *Store) Dirty() bool {
	return s.dirty
}

// Save appends the current contents as a new snapshot.
func (s *Store) Save() error {
	if s.closed {
		return base.ErrClosed
	}

	snapshot, err := s.encode()
	if err != nil {
		return err
	}

	w, err := chunk.NewWriter(s.name, s.opt)
	if err != nil {
		return err
	}
	if _, err := w.Write(snapshot); err != nil {
		return err
	}
	if err := w.Commit(); err != nil {
		return err
	}

	s.snapshots++
	s.dirty = false
	return nil
}

// Compact replaces the log with one holding only the current contents.
func (s *Store) Compact() error {
	if s.closed {
		return base.ErrClosed
	}

	snapshot, err := s.encode()
	if err != nil {
		return err
	}

	tmp := chunk.TempFileName(s.name)
	if s.opt.Env.FileExists(tmp) {
		if err := s.opt.Env.RemoveFile(tmp); err != nil {
			return fmt.Errorf("%w: remove %s: %v", base.ErrIO, tmp, err)
		}
	}

	w, err := chunk.NewWriter(tmp, s.opt)
	if err != nil {
		return err
	}
	if _, err := w.Write(snapshot); err != nil {
		return err
	}
	if err := w.Commit(); err != nil {
		return err
	}

	if err := s.opt.Env.RenameFile(tmp, s.name); err != nil {
		_ = s.opt.Env.RemoveFile(tmp)
		return fmt.Errorf("%w: rename %s: %v", base.ErrIO, tmp, err)
	}

	s.opt.Logger.Printf("state: %s: compacted %d snapshots into 1", s.name, s.snapshots)
	s.snapshots = 1
	s.dirty = false
	return nil
}

// encode builds a snapshot of the current contents. The chunk log cannot
// carry a delimiter inside a payload, so such a snapshot is refused rather
// than written and silently dropped on the next Open.
func (s *Store) encode() ([]byte, error) {
	snapshot := encodeSnapshot(s.entries, s.opt.Compression)
	if chunk.ContainsDelimiter(snapshot) {
		return nil, fmt.Errorf("%w: snapshot contains a chunk delimiter", base.ErrInvalidArgument)
	}
	return snapshot, nil
}

// Snapshots returns the number of snapshots in the log, intact or not.
func (s *Store) Snapshots() int {
	return s.snapshots
}

// Close discards unsaved changes.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	if s.dirty {
		s.opt.Logger.Printf("state: %s: closing with unsaved changes", s.name)
	}
	s.closed = true
	s.entries = nil
	return nil
}
