// Package lesson turns raw calendar records into model.Lesson values.
package lesson

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"timetable/internal/ics"
	appLog "timetable/internal/log"
	"timetable/internal/model"
)

// TimestampLayout is the compact local DTSTART/DTEND form, YYYYMMDD'T'HHMMSS.
const TimestampLayout = "20060102T150405"

var (
	// ErrMalformedTimestamp aborts extraction of the whole calendar.
	ErrMalformedTimestamp = errors.New("lesson: malformed timestamp")

	// ErrMalformedDescription is returned for a description with fewer than
	// two lines, which carries no module line.
	ErrMalformedDescription = errors.New("lesson: malformed description")
)

// ParseTimestamp parses v in TimestampLayout within loc.
func ParseTimestamp(v string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(TimestampLayout, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, v)
	}
	return t, nil
}

// Details are the fields carried inside a lesson description.
type Details struct {
	Module      string
	DisplayName string
	Room        string
	Instructor  string
}

// SplitDescription applies the upstream portal's description format:
//
//	line 0: free text (ignored)
//	line 1: "<module> <display name>", split at the first space; the display
//	        name keeps its leading space
//	line 2: room (optional)
//	line 3: instructor (optional)
//
// This is a contract with the portal's export, not a general parser. A line 1
// without a space is taken as the module with an empty display name.
func SplitDescription(desc string) (Details, error) {
	parts := strings.Split(desc, "\n")
	for i := range parts {
		parts[i] = strings.TrimSuffix(parts[i], "\r")
	}
	if len(parts) < 2 {
		return Details{}, fmt.Errorf("%w: %d line(s)", ErrMalformedDescription, len(parts))
	}

	var d Details
	if i := strings.IndexByte(parts[1], ' '); i >= 0 {
		d.Module = parts[1][:i]
		d.DisplayName = parts[1][i:]
	} else {
		d.Module = parts[1]
	}
	if len(parts) > 2 {
		d.Room = parts[2]
	}
	if len(parts) > 3 {
		d.Instructor = parts[3]
	}
	return d, nil
}

// Extract maps records to lessons in record order. Records lacking a start,
// end or description are skipped, as are records whose end is not after their
// start. Any malformed timestamp or description fails the whole extraction;
// there are no partial calendars.
func Extract(records []ics.Record, loc *time.Location) ([]model.Lesson, error) {
	lessons := make([]model.Lesson, 0, len(records))

	for _, rec := range records {
		if rec.Start == "" || rec.End == "" || rec.Description == "" {
			continue
		}

		start, err := ParseTimestamp(rec.Start, loc)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", rec.UID, err)
		}
		end, err := ParseTimestamp(rec.End, loc)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", rec.UID, err)
		}
		if !end.After(start) {
			appLog.Warn("skipping event with empty time range", "uid", rec.UID, "start", rec.Start, "end", rec.End)
			continue
		}

		d, err := SplitDescription(rec.Description)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", rec.UID, err)
		}

		lessons = append(lessons, model.Lesson{
			Start:       start,
			End:         end,
			Body:        rec.Description,
			Module:      d.Module,
			DisplayName: d.DisplayName,
			Room:        d.Room,
			Instructor:  d.Instructor,
		})
	}

	return lessons, nil
}
