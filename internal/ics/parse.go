package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "timetable/internal/log"
)

// ErrMalformedCalendar is returned when the payload is not a readable calendar.
var ErrMalformedCalendar = errors.New("ics: malformed calendar")

// Record is one VEVENT reduced to the raw values lesson extraction needs.
// Absent properties are empty strings; nothing is interpreted here.
type Record struct {
	UID string

	// Start and End are the raw DTSTART / DTEND values, e.g. "20251013T080000".
	Start string
	End   string

	// Description is the DESCRIPTION text; golang-ical has already resolved
	// its TEXT escapes.
	Description string
}

// Parser turns raw calendar text into records.
type Parser struct{}

// Parse implements the calendar parser contract; see ParseRecords.
func (Parser) Parse(body []byte) ([]Record, error) {
	return ParseRecords(body)
}

// ParseRecords parses a single ICS payload into its VEVENT records, keeping
// document order. Recurrence rules are not expanded; the source delivers
// single events.
func ParseRecords(body []byte) ([]Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedCalendar)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "bytes", len(body))
		return nil, fmt.Errorf("%w: %v", ErrMalformedCalendar, err)
	}

	events := cal.Events()
	records := make([]Record, 0, len(events))
	for _, ve := range events {
		records = append(records, Record{
			UID:         propertyValue(ve, ical.ComponentPropertyUniqueId),
			Start:       strings.TrimSpace(propertyValue(ve, ical.ComponentPropertyDtStart)),
			End:         strings.TrimSpace(propertyValue(ve, ical.ComponentPropertyDtEnd)),
			Description: propertyValue(ve, ical.ComponentPropertyDescription),
		})
	}

	appLog.Debug("ics parse completed", "event_count", len(records))
	return records, nil
}

func propertyValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}
