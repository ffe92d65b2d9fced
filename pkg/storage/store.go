// Package storage keeps small pieces of client state on the local machine.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store is a local key/value store. Values are JSON documents.
type Store interface {
	Get(key string) (json.RawMessage, bool, error)
	Put(key string, value json.RawMessage) error
	Delete(key string) error
}

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]json.RawMessage)}
}

func (s *MemoryStore) Get(key string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}

	return clone(value), true, nil
}

func (s *MemoryStore) Put(key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("put %q: value is not valid json", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = clone(value)
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// FileStore keeps every key in a single JSON object on disk. The file is
// read on first access and rewritten in full on every change.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	values map[string]json.RawMessage
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, false, err
	}

	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}

	return clone(value), true, nil
}

func (s *FileStore) Put(key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("put %q: value is not valid json", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}

	next := maps.Clone(s.values)
	next[key] = clone(value)

	if err := s.flush(next); err != nil {
		return err
	}

	s.values = next
	return nil
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}

	if _, ok := s.values[key]; !ok {
		return nil
	}

	next := maps.Clone(s.values)
	delete(next, key)

	if err := s.flush(next); err != nil {
		return err
	}

	s.values = next
	return nil
}

func (s *FileStore) load() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.values = make(map[string]json.RawMessage)
		s.loaded = true
		return nil
	case err != nil:
		return fmt.Errorf("read store %s: %w", s.path, err)
	}

	values := make(map[string]json.RawMessage)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("decode store %s: %w", s.path, err)
		}
	}

	s.values = values
	s.loaded = true

	log.Debug().Str("path", s.path).Int("keys", len(values)).Msg("store loaded")
	return nil
}

// flush writes values next to the target and renames it into place, so a
// reader never observes a partially written file.
func (s *FileStore) flush(values map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create store dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace store %s: %w", s.path, err)
	}

	return nil
}

func clone(value json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), value...)
}
