package ics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calendar(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR")
	return []byte(strings.Join(all, "\r\n") + "\r\n")
}

func TestParseRecords_KeepsOrderAndValues(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:b",
		"DTSTART:20261013T080000",
		"DTEND:20261013T093000",
		`DESCRIPTION:Vorlesung\nINF123 Algorithms\nRoom 4.12\nDr. Smith`,
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:a",
		"DTSTART:20261012T100000",
		"DTEND:20261012T113000",
		`DESCRIPTION:Seminar\nMAT7 Analysis\, Teil 2`,
		"END:VEVENT",
	)

	recs, err := ParseRecords(body)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, Record{
		UID:         "b",
		Start:       "20261013T080000",
		End:         "20261013T093000",
		Description: "Vorlesung\nINF123 Algorithms\nRoom 4.12\nDr. Smith",
	}, recs[0])
	assert.Equal(t, "a", recs[1].UID, "document order is preserved")
	assert.Equal(t, "Seminar\nMAT7 Analysis, Teil 2", recs[1].Description)
}

func TestParseRecords_MissingPropertiesAreEmpty(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:x",
		"DTSTART:20261013T080000",
		"END:VEVENT",
	)

	recs, err := ParseRecords(body)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].End)
	assert.Empty(t, recs[0].Description)
}

func TestParseRecords_Malformed(t *testing.T) {
	_, err := ParseRecords(nil)
	assert.ErrorIs(t, err, ErrMalformedCalendar)

	_, err = ParseRecords([]byte("   \n"))
	assert.ErrorIs(t, err, ErrMalformedCalendar)

	_, err = Parser{}.Parse([]byte("END:VCALENDAR\r\nBEGIN:VCALENDAR\r\n"))
	assert.ErrorIs(t, err, ErrMalformedCalendar)
}

func TestParseRecords_EscapedBackslashStaysLiteral(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:path",
		"DTSTART:20261013T080000",
		"DTEND:20261013T093000",
		`DESCRIPTION:Vorlesung\nINF1 Pfad C:\\new\nRaum 1`,
		"END:VEVENT",
	)

	recs, err := ParseRecords(body)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Vorlesung\nINF1 Pfad C:\\new\nRaum 1", recs[0].Description)
	assert.Len(t, strings.Split(recs[0].Description, "\n"), 3)
}
