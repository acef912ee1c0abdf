package kvcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FileStore is a Store backed by a single JSON file. Every Put performs a
// full read-modify-write cycle; the write goes through a temp file and an
// atomic rename so a failed persist leaves the previous content readable.
//
// Concurrent Puts from separate processes can lose writes (last rename
// wins); a lost write only means one future lookup pays for a repeat query.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]json.RawMessage
}

// NewFileStore loads the cache at path. A missing or corrupt file degrades
// to an empty cache; the caller is never failed by a load problem.
func NewFileStore(path string) *FileStore {
	s := &FileStore{
		path:    path,
		entries: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("kvcache: load failed, starting empty",
				zap.String("path", path), zap.Error(err))
		}
		return s
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		zap.L().Warn("kvcache: corrupt cache file, starting empty",
			zap.String("path", path), zap.Error(err))
		s.entries = make(map[string]json.RawMessage)
	}
	return s
}

func (s *FileStore) Get(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *FileStore) Put(key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = value
	if err := s.persist(); err != nil {
		return eris.Wrapf(err, "kvcache: persist %s", key)
	}
	return nil
}

// Len returns the number of cached entries.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *FileStore) persist() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal entries")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "create cache dir")
	}

	tmp, err := os.CreateTemp(dir, ".kvcache-*")
	if err != nil {
		return eris.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "close temp file")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "rename into place")
	}
	return nil
}
