package settings

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Store reads and writes settings. Every save writes the primary file and a
// backup; loads fall back to the backup when the primary is missing or
// unreadable.
type Store struct {
	mu         sync.Mutex
	path       string
	backupPath string
}

// NewStore creates a store for path, with its backup next to it
func NewStore(path string) *Store {
	return &Store{
		path:       path,
		backupPath: path + ".bak",
	}
}

// DefaultPath returns ~/.glimpse/settings.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".glimpse", "settings.toml"), nil
}

// Path returns the primary settings file
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored settings merged over the defaults. Missing files
// yield the defaults without error. An unreadable primary file falls back to
// the backup; the error is returned only if no copy could be read.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, primaryErr := readFile(s.path)
	if primaryErr == nil {
		return st, nil
	}

	st, backupErr := readFile(s.backupPath)
	if backupErr == nil {
		return st, nil
	}

	if errors.Is(primaryErr, os.ErrNotExist) && errors.Is(backupErr, os.ErrNotExist) {
		return Default(), nil
	}
	if errors.Is(primaryErr, os.ErrNotExist) {
		return Default(), backupErr
	}
	return Default(), primaryErr
}

// Save validates st and writes it to the primary and backup files
func (s *Store) Save(st Settings) (Settings, error) {
	st.Validate()

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(st); err != nil {
		return st, fmt.Errorf("encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFile(s.path, buf.Bytes()); err != nil {
		return st, err
	}
	if err := writeFile(s.backupPath, buf.Bytes()); err != nil {
		return st, fmt.Errorf("write backup: %w", err)
	}
	return st, nil
}

// Reset saves and returns the defaults
func (s *Store) Reset() (Settings, error) {
	return s.Save(Default())
}

func readFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	st := Default()
	if _, err := toml.Decode(string(data), &st); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	st.Validate()
	return st, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}
