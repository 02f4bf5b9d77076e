// Package userconf stores per-user display overrides such as lesson colours.
//
// Entries live in one flat YAML map keyed by username + "." + key.
package userconf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"timetable/internal/atomicfile"
)

// ColorKey returns the override key of a lesson's colour.
func ColorKey(displayName string) string {
	return "color." + displayName
}

// Store is a file-backed key/value store.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Get returns the value stored for username and key. An absent key, a
// missing file or an unreadable file all report ok=false.
func (s *Store) Get(username, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", false
	}
	v, ok := entries[username+"."+key]
	return v, ok
}

// Set stores value under username and key, replacing any previous value.
func (s *Store) Set(username, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[username+"."+key] = value

	data, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(s.path, data, 0o600)
}

func (s *Store) load() (map[string]string, error) {
	entries := make(map[string]string)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("userconf: parse %s: %w", s.path, err)
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	return entries, nil
}
