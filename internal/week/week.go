// Package week selects the lessons of one Monday-Friday window relative to today.
package week

import (
	"sort"
	"time"

	"timetable/internal/model"
)

// Window is the range of one school week. It is derived from "now" on every
// query and never stored.
type Window struct {
	// Offset is the signed number of weeks from the current week.
	Offset int
	// Start is Monday 00:00.
	Start time.Time
	// End is Start + 5 days (Saturday 00:00); lessons starting exactly at
	// End still belong to the window.
	End time.Time
}

// For returns the window offset weeks away from the week containing now.
// Any signed offset is valid.
func For(now time.Time, offset int) Window {
	// Days since Monday, with Sunday counted as 6.
	sinceMonday := (int(now.Weekday()) + 6) % 7

	y, m, d := now.Date()
	start := time.Date(y, m, d-sinceMonday+offset*7, 0, 0, 0, 0, now.Location())
	end := time.Date(start.Year(), start.Month(), start.Day()+5, 0, 0, 0, 0, now.Location())

	return Window{Offset: offset, Start: start, End: end}
}

// Contains reports whether t lies within [Start, End], both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Select returns the lessons of w ordered by start time. A week without
// lessons yields a single model.EmptyWeek marker anchored at w.Start, never
// an empty slice.
func Select(lessons []model.Lesson, w Window) []model.Lesson {
	out := make([]model.Lesson, 0)
	for _, l := range lessons {
		if l.IsEmptyWeek() {
			continue
		}
		if w.Contains(l.Start) {
			out = append(out, l)
		}
	}

	if len(out) == 0 {
		return []model.Lesson{model.EmptyWeek(w.Start)}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Get is Select over the window offset weeks from now.
func Get(lessons []model.Lesson, now time.Time, offset int) []model.Lesson {
	return Select(lessons, For(now, offset))
}
