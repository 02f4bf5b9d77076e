package week

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetable/internal/model"
)

var berlin = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return time.UTC
	}
	return loc
}()

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, berlin)
}

func lessonAt(start time.Time, d time.Duration) model.Lesson {
	return model.Lesson{Start: start, End: start.Add(d), Body: "x\nM N"}
}

func TestFor_MondayFromEveryWeekday(t *testing.T) {
	monday := at(2026, time.October, 12, 0, 0)
	for i := 0; i < 7; i++ {
		now := monday.AddDate(0, 0, i).Add(13 * time.Hour)
		w := For(now, 0)
		assert.Equal(t, monday, w.Start, "weekday %s", now.Weekday())
		assert.Equal(t, at(2026, time.October, 17, 0, 0), w.End)
	}
}

func TestFor_SignedOffsets(t *testing.T) {
	now := at(2026, time.October, 14, 9, 0) // Wednesday

	assert.Equal(t, at(2026, time.October, 19, 0, 0), For(now, 1).Start)
	assert.Equal(t, at(2026, time.October, 5, 0, 0), For(now, -1).Start)
	assert.Equal(t, at(2025, time.October, 13, 0, 0), For(now, -52).Start)
	assert.Equal(t, at(2027, time.October, 11, 0, 0), For(now, 52).Start)
	assert.Equal(t, -3, For(now, -3).Offset)
}

func TestFor_AcrossDSTChange(t *testing.T) {
	// Europe/Berlin leaves summer time on 2026-10-25.
	now := at(2026, time.October, 28, 10, 0)
	w := For(now, 0)
	assert.Equal(t, at(2026, time.October, 26, 0, 0), w.Start)
	assert.Equal(t, 0, w.Start.Hour())

	prev := For(now, -1)
	assert.Equal(t, at(2026, time.October, 19, 0, 0), prev.Start)
	assert.Equal(t, at(2026, time.October, 24, 0, 0), prev.End)
}

func TestSelect_BoundsInclusiveAndSorted(t *testing.T) {
	now := at(2026, time.October, 14, 9, 0)
	lessons := []model.Lesson{
		lessonAt(at(2026, time.October, 16, 10, 0), 90*time.Minute),
		lessonAt(at(2026, time.October, 11, 23, 59), time.Minute),  // Sunday before: out
		lessonAt(at(2026, time.October, 12, 0, 0), 90*time.Minute), // Monday 00:00: in
		lessonAt(at(2026, time.October, 17, 0, 0), 90*time.Minute), // End bound: in
		lessonAt(at(2026, time.October, 17, 0, 1), 90*time.Minute), // after: out
		lessonAt(at(2026, time.October, 13, 8, 0), 90*time.Minute),
	}

	got := Get(lessons, now, 0)
	require.Len(t, got, 4)
	assert.Equal(t, at(2026, time.October, 12, 0, 0), got[0].Start)
	assert.Equal(t, at(2026, time.October, 13, 8, 0), got[1].Start)
	assert.Equal(t, at(2026, time.October, 16, 10, 0), got[2].Start)
	assert.Equal(t, at(2026, time.October, 17, 0, 0), got[3].Start)

	w := For(now, 0)
	for _, l := range got {
		assert.True(t, w.Contains(l.Start))
	}
}

func TestSelect_EmptyWeekMarker(t *testing.T) {
	now := at(2026, time.October, 14, 9, 0)
	lessons := []model.Lesson{lessonAt(at(2026, time.October, 13, 8, 0), time.Hour)}

	got := Get(lessons, now, 3)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsEmptyWeek())
	assert.True(t, got[0].End.IsZero())
	assert.Equal(t, at(2026, time.November, 2, 0, 0), got[0].Start)

	none := Get(nil, now, -2)
	require.Len(t, none, 1)
	assert.True(t, none[0].IsEmptyWeek())
}

func TestSelect_NonOverlappingWeeksAreDisjoint(t *testing.T) {
	now := at(2026, time.October, 14, 9, 0)

	var lessons []model.Lesson
	start := at(2026, time.September, 1, 8, 0)
	for d := 0; d < 120; d++ {
		lessons = append(lessons, lessonAt(start.AddDate(0, 0, d), 90*time.Minute))
	}

	seen := make(map[time.Time]int)
	for k := -6; k <= 10; k++ {
		for _, l := range Get(lessons, now, k) {
			if l.IsEmptyWeek() {
				continue
			}
			prev, dup := seen[l.Start]
			assert.False(t, dup, "lesson %s in week %d and %d", l.Start, prev, k)
			seen[l.Start] = k
		}
	}
}
