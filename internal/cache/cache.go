// Package cache keeps the last successfully fetched raw calendar per user.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"timetable/internal/atomicfile"
)

// ErrNotFound is returned by Load when no calendar is cached for the user.
var ErrNotFound = errors.New("cache: no cached calendar")

// ErrInvalidUsername rejects names that cannot be mapped to a single file.
var ErrInvalidUsername = errors.New("cache: invalid username")

// Store is a directory with one stundenplan_<user>.ics file per user.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Exists reports whether a cached calendar exists for username.
func (s *Store) Exists(username string) bool {
	path, err := s.pathFor(username)
	if err != nil {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Save replaces the cached calendar of username with raw.
func (s *Store) Save(username string, raw []byte) error {
	path, err := s.pathFor(username)
	if err != nil {
		return err
	}
	if err := atomicfile.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("cache: save %s: %w", username, err)
	}
	return nil
}

// Load returns the cached calendar of username, or ErrNotFound.
func (s *Store) Load(username string) ([]byte, error) {
	path, err := s.pathFor(username)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cache: load %s: %w", username, err)
	}
	return data, nil
}

func (s *Store) pathFor(username string) (string, error) {
	if username == "" || username == "." || username == ".." ||
		strings.ContainsAny(username, `/\`) || strings.ContainsRune(username, 0) {
		return "", ErrInvalidUsername
	}
	return filepath.Join(s.dir, "stundenplan_"+username+".ics"), nil
}
