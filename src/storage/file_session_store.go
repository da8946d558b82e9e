package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"socialconnect/src/models"
)

// ErrCorruptSessionFile is returned by Load when the file holds no JSON
// object. Save and Delete overwrite such a file.
var ErrCorruptSessionFile = errors.New("corrupt session file")

// FileSessionStore keeps sessions in one JSON object on disk, keyed like
// browser local storage. Writes replace the file atomically.
type FileSessionStore struct {
	path string
	mu   sync.Mutex
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

func (s *FileSessionStore) Load(_ context.Context, key string) (models.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return models.Session{}, false, err
	}
	session, ok := entries[key]
	return session, ok, nil
}

func (s *FileSessionStore) Save(_ context.Context, key string, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, _, err := s.readForWrite()
	if err != nil {
		return err
	}
	entries[key] = session
	return s.write(entries)
}

func (s *FileSessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, corrupt, err := s.readForWrite()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok && !corrupt {
		return nil
	}
	delete(entries, key)
	return s.write(entries)
}

func (s *FileSessionStore) Close() error {
	return nil
}

func (s *FileSessionStore) read() (map[string]models.Session, error) {
	entries := make(map[string]models.Session)
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(raw) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode session file %s: %w: %w", s.path, ErrCorruptSessionFile, err)
	}
	return entries, nil
}

// readForWrite is read for callers about to rewrite the file: a corrupt file
// counts as empty and is reported so it gets replaced.
func (s *FileSessionStore) readForWrite() (map[string]models.Session, bool, error) {
	entries, err := s.read()
	if errors.Is(err, ErrCorruptSessionFile) {
		return make(map[string]models.Session), true, nil
	}
	return entries, false, err
}

func (s *FileSessionStore) write(entries map[string]models.Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
