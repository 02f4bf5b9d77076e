package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RGB is a 24-bit display colour.
type RGB struct {
	R, G, B uint8
}

// Hex formats the colour as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseRGB accepts "#rrggbb" or a decimal (A)RGB integer as written by
// older override files, e.g. "-16711936". The alpha byte is ignored.
func ParseRGB(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		if len(s) != 7 {
			return RGB{}, fmt.Errorf("model: invalid colour %q", s)
		}
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return RGB{}, fmt.Errorf("model: invalid colour %q: %w", s, err)
		}
		return fromInt(uint32(v)), nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return RGB{}, fmt.Errorf("model: invalid colour %q: %w", s, err)
	}
	return fromInt(uint32(v)), nil
}

func fromInt(v uint32) RGB {
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// Lesson is a single teaching event extracted from the calendar.
//
// A Lesson with a zero End and an empty Body is the empty-week marker
// produced by the week window; see EmptyWeek.
type Lesson struct {
	Start time.Time
	End   time.Time
	Body  string

	// Color is assigned after extraction and before layout.
	Color RGB

	Module      string
	DisplayName string
	Room        string
	Instructor  string
}

// EmptyWeek returns the marker for a week without lessons, anchored at the
// Monday start of that week.
func EmptyWeek(start time.Time) Lesson {
	return Lesson{Start: start}
}

// IsEmptyWeek reports whether l is the empty-week marker rather than a real lesson.
func (l Lesson) IsEmptyWeek() bool {
	return l.End.IsZero() && l.Body == ""
}

// Duration is End-Start, or zero for the empty-week marker.
func (l Lesson) Duration() time.Duration {
	if l.End.IsZero() {
		return 0
	}
	return l.End.Sub(l.Start)
}
