package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	s := NewStore(dir)

	assert.False(t, s.Exists("alice"))
	_, err := s.Load("alice")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save("alice", []byte("BEGIN:VCALENDAR\nv1")))
	assert.True(t, s.Exists("alice"))
	assert.False(t, s.Exists("bob"))

	got, err := s.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR\nv1", string(got))

	_, err = os.Stat(filepath.Join(dir, "stundenplan_alice.ics"))
	assert.NoError(t, err)
}

func TestSaveReplacesWholeContent(t *testing.T) {
	s := NewStore(t.TempDir())

	require.NoError(t, s.Save("alice", []byte("a much longer first calendar body")))
	require.NoError(t, s.Save("alice", []byte("short")))

	got, err := s.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, "short", string(got))
}

func TestInvalidUsernames(t *testing.T) {
	s := NewStore(t.TempDir())

	for _, name := range []string{"", ".", "..", "../etc", `a\b`, "a/b"} {
		assert.False(t, s.Exists(name), name)
		assert.ErrorIs(t, s.Save(name, []byte("x")), ErrInvalidUsername, name)
		_, err := s.Load(name)
		assert.ErrorIs(t, err, ErrInvalidUsername, name)
	}
}
