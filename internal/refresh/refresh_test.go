package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetable/internal/acquire"
	"timetable/internal/model"
)

type fakeRefresher struct {
	calls   atomic.Int32
	lessons []model.Lesson
	err     error
}

func (f *fakeRefresher) RefreshStored(_ context.Context, username string) ([]model.Lesson, error) {
	f.calls.Add(1)
	if username != "alice" {
		return nil, acquire.ErrNoStoredCredentials
	}
	return f.lessons, f.err
}

type fakeTarget struct {
	user string

	mu      sync.Mutex
	lessons []model.Lesson
	source  string
}

func (t *fakeTarget) Username() string { return t.user }

func (t *fakeTarget) Replace(lessons []model.Lesson, source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lessons = lessons
	t.source = source
}

func (t *fakeTarget) snapshot() ([]model.Lesson, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lessons, t.source
}

func sample() []model.Lesson {
	start := time.Date(2026, time.October, 13, 8, 0, 0, 0, time.UTC)
	return []model.Lesson{{Start: start, End: start.Add(time.Hour), Body: "x\nA B"}}
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("every now and then", &fakeRefresher{}, &fakeTarget{user: "alice"}, 0)
	assert.Error(t, err)
}

func TestRunOnce_ReplacesLessons(t *testing.T) {
	r := &fakeRefresher{lessons: sample()}
	target := &fakeTarget{user: "alice"}

	s, err := New("*/30 * * * *", r, target, time.Second)
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	lessons, source := target.snapshot()
	assert.Len(t, lessons, 1)
	assert.Equal(t, Source, source)
}

func TestRunOnce_ErrorsKeepLessons(t *testing.T) {
	for _, tc := range []struct {
		name string
		user string
		err  error
	}{
		{"offline", "alice", acquire.ErrOffline},
		{"no stored credentials", "bob", nil},
		{"transport", "alice", errors.New("boom")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRefresher{lessons: sample(), err: tc.err}
			target := &fakeTarget{user: tc.user}

			s, err := New("@hourly", r, target, 0)
			require.NoError(t, err)

			assert.Error(t, s.RunOnce(context.Background()))
			lessons, source := target.snapshot()
			assert.Nil(t, lessons)
			assert.Empty(t, source)
		})
	}
}

func TestStart_RunsOnSchedule(t *testing.T) {
	r := &fakeRefresher{lessons: sample()}
	target := &fakeTarget{user: "alice"}

	s, err := New("@every 1s", r, target, time.Second)
	require.NoError(t, err)

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		_, source := target.snapshot()
		return source == Source
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, r.calls.Load(), int32(1))
}
