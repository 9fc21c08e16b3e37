package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/attachtimer/internal/models"
)

// ErrNoSession is returned by Load when no session artifact exists yet
var ErrNoSession = errors.New("no saved session, run login first")

// Store reads and writes the session artifact
type Store struct {
	path string
}

// NewStore creates a store for the artifact at path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the artifact location
func (s *Store) Path() string {
	return s.path
}

// Save writes state, creating parent directories. The file is replaced
// atomically so a failed write never leaves a truncated artifact.
func (s *Store) Save(state *models.StorageState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to save session to %s: %w", s.path, err)
	}
	return nil
}

// Load reads the artifact
func (s *Store) Load() (*models.StorageState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoSession, s.path)
		}
		return nil, fmt.Errorf("failed to read session %s: %w", s.path, err)
	}

	var state models.StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", s.path, err)
	}
	return &state, nil
}
