// Package session holds the timetable of the logged-in user between
// acquisitions and answers week queries against it.
package session

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"timetable/internal/grid"
	"timetable/internal/lesson"
	"timetable/internal/model"
	"timetable/internal/userconf"
	"timetable/internal/week"
)

// DefaultRows is the number of block rows shown per day (08:00 to 16:45).
const DefaultRows = 10

// OverrideStore is the per-user configuration used for colours.
type OverrideStore interface {
	Get(username, key string) (string, bool)
	Set(username, key, value string) error
}

// View is one laid out week.
type View struct {
	Window  week.Window
	Lessons []model.Lesson
	Cells   []grid.Cell
	Rows    []grid.Row

	// NowY is the current-time line, valid when ShowNow is set: the week is
	// the current one, today is a weekday and the day has started.
	NowY    int
	ShowNow bool
}

// Session is safe for concurrent use.
type Session struct {
	username  string
	geometry  grid.Geometry
	overrides OverrideStore
	now       func() time.Time

	mu      sync.RWMutex
	lessons []model.Lesson
	offset  int
	source  string
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithGeometry sets the grid sizes.
func WithGeometry(g grid.Geometry) Option {
	return func(s *Session) { s.geometry = g.Normalize() }
}

// New starts a session for username with the lessons of an acquisition.
// source describes where they came from, e.g. the acquisition outcome.
func New(username string, lessons []model.Lesson, source string, overrides OverrideStore, opts ...Option) *Session {
	s := &Session{
		username:  username,
		geometry:  grid.DefaultGeometry(),
		overrides: overrides,
		now:       time.Now,
		lessons:   slices.Clone(lessons),
		source:    source,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Username() string { return s.username }

// Source reports where the current lessons came from.
func (s *Session) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Offset is the week offset last navigated to.
func (s *Session) Offset() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// Replace swaps in a freshly acquired lesson set, e.g. after a background
// refresh. The navigation offset is kept.
func (s *Session) Replace(lessons []model.Lesson, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons = slices.Clone(lessons)
	s.source = source
}

// Week lays out the week offset weeks from today without moving the
// session's own offset.
func (s *Session) Week(offset int) View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view(offset)
}

// Current lays out the week last navigated to.
func (s *Session) Current() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view(s.offset)
}

// Navigate moves the current week by delta, which may be any signed value.
func (s *Session) Navigate(delta int) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset += delta
	return s.view(s.offset)
}

// SetColor stores an override for every lesson shown as displayName and
// recolours the loaded lessons.
func (s *Session) SetColor(displayName string, c model.RGB) error {
	if s.overrides == nil {
		return fmt.Errorf("session: no override store")
	}
	if err := s.overrides.Set(s.username, userconf.ColorKey(displayName), c.Hex()); err != nil {
		return fmt.Errorf("session: save colour: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lesson.AssignColors(s.lessons, s.username, s.overrides)
	return nil
}

// view must be called with mu held.
func (s *Session) view(offset int) View {
	now := s.now()
	w := week.For(now, offset)
	lessons := week.Select(s.lessons, w)

	v := View{
		Window:  w,
		Lessons: lessons,
		Cells:   s.geometry.LayoutWeek(lessons),
		Rows:    s.geometry.Rows(DefaultRows),
	}

	m := grid.MinutesSinceDayStart(now)
	wd := now.Weekday()
	if w.Contains(now) && wd != time.Saturday && wd != time.Sunday && m >= 0 {
		v.NowY = s.geometry.NowOffset(m)
		v.ShowNow = true
	}
	return v
}
