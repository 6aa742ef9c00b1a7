package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bunchim/archer/model"
)

// Store persists SavedState as a JSON file.
type Store struct {
	path string
}

// NewStore returns a Store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (st *Store) Path() string { return st.path }

// Load reads the saved state. found is false when no file exists yet.
func (st *Store) Load() (saved model.SavedState, found bool, err error) {
	b, err := os.ReadFile(st.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.SavedState{}, false, nil
		}
		return model.SavedState{}, false, err
	}
	if err := json.Unmarshal(b, &saved); err != nil {
		return model.SavedState{}, false, fmt.Errorf("decode %s: %w", st.path, err)
	}
	return saved, true, nil
}

// Save writes the saved state, replacing any previous file atomically.
func (st *Store) Save(saved model.SavedState) error {
	b, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), st.path)
}

// Suspend saves the session's persisted fields.
func (st *Store) Suspend(s *Session) error {
	return st.Save(s.SavedState())
}

// RestoreInto loads saved fields into s, if any were saved.
func (st *Store) RestoreInto(s *Session) (bool, error) {
	saved, found, err := st.Load()
	if err != nil || !found {
		return false, err
	}
	s.Restore(saved)
	return true, nil
}
