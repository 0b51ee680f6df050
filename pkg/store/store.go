// Package store keeps VM snapshots in memory under short names and
// mirrors them to a host directory.
package store

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"
)

// Ext is the extension snapshot files carry on the host.
const Ext = ".snap"

// MaxBytes bounds the total size of the snapshots a Store holds.
const MaxBytes = 16 << 20

var validName = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_-]{0,31}$`)

var (
	ErrNotFound      = errors.New("snapshot not found")
	ErrInvalidName   = errors.New("invalid snapshot name")
	ErrQuotaExceeded = errors.New("snapshot store full")
)

type Entry struct {
	Data     []byte
	Source   [32]byte // fingerprint of the program the snapshot was taken from
	Modified time.Time
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	dirty   map[string]bool
	used    int
}

func New() *Store {
	return &Store{
		entries: make(map[string]*Entry),
		dirty:   make(map[string]bool),
	}
}

// Put stores a copy of data under name, replacing any previous snapshot.
func (s *Store) Put(name string, source [32]byte, data []byte) error {
	if !validName.MatchString(name) {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	oldSize := 0
	if e, ok := s.entries[name]; ok {
		oldSize = len(e.Data)
	}
	if s.used-oldSize+len(data) > MaxBytes {
		return ErrQuotaExceeded
	}
	s.entries[name] = &Entry{
		Data:     append([]byte(nil), data...),
		Source:   source,
		Modified: time.Now(),
	}
	s.used += len(data) - oldSize
	s.dirty[name] = true
	return nil
}

// Get returns the snapshot stored under name.
func (s *Store) Get(name string) (*Entry, error) {
	if !validName.MatchString(name) {
		return nil, ErrInvalidName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *Store) Delete(name string) error {
	if !validName.MatchString(name) {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return ErrNotFound
	}
	s.used -= len(e.Data)
	delete(s.entries, name)
	s.dirty[name] = true
	return nil
}

// List returns the snapshot names in order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for k := range s.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirty) > 0
}

// encode lays e out for disk: the source fingerprint, then the snapshot.
func encode(e *Entry) []byte {
	out := make([]byte, 0, len(e.Source)+len(e.Data))
	out = append(out, e.Source[:]...)
	return append(out, e.Data...)
}

// LoadFrom reads every snapshot file of dir. A missing directory is not an
// error. Files with invalid names or too short to hold a fingerprint are
// skipped.
func (s *Store) LoadFrom(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range files {
		name, ok := trimExt(f.Name())
		if f.IsDir() || !ok || !validName.MatchString(name) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil || len(raw) < 32 {
			continue
		}
		e := &Entry{Data: raw[32:], Modified: time.Now()}
		copy(e.Source[:], raw[:32])
		if info, err := f.Info(); err == nil {
			e.Modified = info.ModTime()
		}
		if old, ok := s.entries[name]; ok {
			s.used -= len(old.Data)
		}
		s.entries[name] = e
		s.used += len(e.Data)
	}
	return nil
}

func trimExt(file string) (string, bool) {
	if filepath.Ext(file) != Ext {
		return "", false
	}
	return file[:len(file)-len(Ext)], true
}

// PersistTo writes the snapshots changed since the last call to dir and
// removes the deleted ones. It returns the first error; entries that
// failed stay dirty.
func (s *Store) PersistTo(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	s.mu.Lock()
	writes := make(map[string][]byte)
	var deletes []string
	for name := range s.dirty {
		if e, ok := s.entries[name]; ok {
			writes[name] = encode(e)
		} else {
			deletes = append(deletes, name)
		}
		delete(s.dirty, name)
	}
	s.mu.Unlock()

	var firstErr error
	for _, name := range deletes {
		if err := os.Remove(filepath.Join(dir, name+Ext)); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	for name, data := range writes {
		if err := os.WriteFile(filepath.Join(dir, name+Ext), data, 0o644); err != nil {
			s.mu.Lock()
			s.dirty[name] = true
			s.mu.Unlock()
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
