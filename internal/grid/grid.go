// Package grid maps lessons onto the weekly timetable grid.
//
// A teaching day starts at 08:00 and is divided into 45 minute blocks. A
// 15 minute break follows every second block, and one extra break follows
// the third pair (the midday break). All conversions go through Map so that
// lesson cells, row labels and the current-time line agree.
package grid

import (
	"fmt"
	"time"

	"timetable/internal/model"
)

const (
	// DayStartHour is the hour the first block begins.
	DayStartHour = 8
	// BlockMinutes is the length of one teaching block.
	BlockMinutes = 45
	// BreakMinutes is the length of a regular and of the extra midday break.
	BreakMinutes = 15
	// CycleMinutes is one pair of blocks plus its break.
	CycleMinutes = 2*BlockMinutes + BreakMinutes
	// MiddayBlock is the block index from which the extra break applies.
	MiddayBlock = 6
	// Weekdays is the number of grid columns, Monday to Friday.
	Weekdays = 5
)

// Geometry holds the pixel sizes of the grid.
type Geometry struct {
	HeaderHeight int
	RowHeight    int
	BreakHeight  int
	ColumnWidth  int
	// Gutter is the width of the time label column left of Monday.
	Gutter int
}

// DefaultGeometry returns the sizes of the classic layout.
func DefaultGeometry() Geometry {
	return Geometry{
		HeaderHeight: 30,
		RowHeight:    55,
		BreakHeight:  15,
		ColumnWidth:  90,
		Gutter:       50,
	}
}

// Normalize replaces non-positive sizes with defaults.
func (g Geometry) Normalize() Geometry {
	d := DefaultGeometry()
	if g.HeaderHeight <= 0 {
		g.HeaderHeight = d.HeaderHeight
	}
	if g.RowHeight <= 0 {
		g.RowHeight = d.RowHeight
	}
	if g.BreakHeight <= 0 {
		g.BreakHeight = d.BreakHeight
	}
	if g.ColumnWidth <= 0 {
		g.ColumnWidth = d.ColumnWidth
	}
	if g.Gutter <= 0 {
		g.Gutter = d.Gutter
	}
	return g
}

// compensate removes 15 minutes per complete 135 minute cycle from m and
// floors the result to whole blocks, in minutes.
func compensate(m int) int {
	return ((m - (m/CycleMinutes)*BreakMinutes) / BlockMinutes) * BlockMinutes
}

// blockIndex is the number of whole blocks elapsed after m minutes.
func blockIndex(m int) int {
	return compensate(m) / BlockMinutes
}

// breakCount is the number of breaks that precede block i.
func breakCount(i int) int {
	n := i / 2
	if i >= MiddayBlock {
		n++
	}
	return n
}

// BlockStart is the minute offset from 08:00 at which block i begins.
func BlockStart(i int) int {
	return i*BlockMinutes + breakCount(i)*BreakMinutes
}

func (g Geometry) rowY(i int) int {
	return g.HeaderHeight + i*g.RowHeight + breakCount(i)*g.BreakHeight
}

// Map converts a lesson's minute offset from 08:00 and its duration into a
// vertical offset and a height. Negative inputs are treated as zero.
func (g Geometry) Map(offsetMinutes, durationMinutes int) (y, height int) {
	if offsetMinutes < 0 {
		offsetMinutes = 0
	}
	if durationMinutes < 0 {
		durationMinutes = 0
	}

	y = g.rowY(blockIndex(offsetMinutes))

	whole := compensate(durationMinutes)
	height = (whole/BlockMinutes)*g.RowHeight + (durationMinutes - whole)
	return y, height
}

// Map applies DefaultGeometry.
func Map(offsetMinutes, durationMinutes int) (y, height int) {
	return DefaultGeometry().Map(offsetMinutes, durationMinutes)
}

// MinutesSinceDayStart returns the minutes between 08:00 of t's day and t.
// Times before 08:00 yield negative values.
func MinutesSinceDayStart(t time.Time) int {
	return (t.Hour()-DayStartHour)*60 + t.Minute()
}

// Cell is a laid out lesson.
type Cell struct {
	Lesson model.Lesson
	// Column is 0 for Monday through 4 for Friday.
	Column int
	X      int
	Y      int
	Width  int
	Height int
}

// Layout places l on the grid. It reports false for the empty-week marker
// and for lessons on Saturday or Sunday.
func (g Geometry) Layout(l model.Lesson) (Cell, bool) {
	if l.IsEmptyWeek() {
		return Cell{}, false
	}

	// ISO weekday minus one: Monday=0 ... Sunday=6.
	col := (int(l.Start.Weekday()) + 6) % 7
	if col >= Weekdays {
		return Cell{}, false
	}

	y, h := g.Map(MinutesSinceDayStart(l.Start), int(l.Duration()/time.Minute))
	return Cell{
		Lesson: l,
		Column: col,
		X:      g.Gutter + col*g.ColumnWidth,
		Y:      y,
		Width:  g.ColumnWidth,
		Height: h,
	}, true
}

// LayoutWeek lays out every placeable lesson, keeping input order.
func (g Geometry) LayoutWeek(lessons []model.Lesson) []Cell {
	cells := make([]Cell, 0, len(lessons))
	for _, l := range lessons {
		if c, ok := g.Layout(l); ok {
			cells = append(cells, c)
		}
	}
	return cells
}

// Row is one labelled block row of the grid.
type Row struct {
	Index int
	Y     int
	// Start and End are "H:MM" wall clock labels.
	Start string
	End   string
}

// Rows returns the first n block rows with their time labels.
func (g Geometry) Rows(n int) []Row {
	rows := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		start := DayStartHour*60 + BlockStart(i)
		rows = append(rows, Row{
			Index: i,
			Y:     g.rowY(i),
			Start: clock(start),
			End:   clock(start + BlockMinutes),
		})
	}
	return rows
}

func clock(minutes int) string {
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// NowOffset returns the y of the current-time line for a time m minutes
// after 08:00. Inside a break the line rests at the top of the next row.
//
// Map buckets by the 135 minute cycle, which is exact at block starts only,
// so the line looks up the block containing m directly.
func (g Geometry) NowOffset(m int) int {
	if m < 0 {
		m = 0
	}
	i := 0
	for BlockStart(i+1) <= m {
		i++
	}
	into := m - BlockStart(i)
	if into > BlockMinutes {
		// In the break after block i.
		return g.rowY(i + 1)
	}
	return g.rowY(i) + into*g.RowHeight/BlockMinutes
}
