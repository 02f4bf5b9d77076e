package lesson

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetable/internal/ics"
)

func TestSplitDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Details
	}{
		{
			name: "full",
			in:   "Vorlesung\nINF123 Algorithms\nRoom 4.12\nDr. Smith",
			want: Details{Module: "INF123", DisplayName: " Algorithms", Room: "Room 4.12", Instructor: "Dr. Smith"},
		},
		{
			name: "no instructor",
			in:   "x\nMAT7 Lineare Algebra\nH1",
			want: Details{Module: "MAT7", DisplayName: " Lineare Algebra", Room: "H1"},
		},
		{
			name: "module line only",
			in:   "x\nMAT7 Analysis",
			want: Details{Module: "MAT7", DisplayName: " Analysis"},
		},
		{
			name: "no space in module line",
			in:   "x\nMAT7",
			want: Details{Module: "MAT7"},
		},
		{
			name: "crlf",
			in:   "x\r\nINF1 Netze\r\nR2\r\n",
			want: Details{Module: "INF1", DisplayName: " Netze", Room: "R2"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitDescription(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSplitDescription_SingleLineIsMalformed(t *testing.T) {
	_, err := SplitDescription("INF123 Algorithms")
	assert.ErrorIs(t, err, ErrMalformedDescription)
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("20261013T081500", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 13, 8, 15, 0, 0, time.UTC), got)

	for _, bad := range []string{"", "2026-10-13T08:15:00", "20261013T081500Z", "20261313T081500"} {
		_, err := ParseTimestamp(bad, time.UTC)
		assert.ErrorIs(t, err, ErrMalformedTimestamp, bad)
	}
}

func TestExtract(t *testing.T) {
	records := []ics.Record{
		{UID: "2", Start: "20261014T100000", End: "20261014T113000", Description: "v\nINF123 Algorithms\nRoom 4.12\nDr. Smith"},
		{UID: "skip-no-desc", Start: "20261014T080000", End: "20261014T093000"},
		{UID: "skip-no-end", Start: "20261014T080000", Description: "v\nA B"},
		{UID: "1", Start: "20261013T080000", End: "20261013T093000", Description: "v\nMAT7 Analysis"},
	}

	lessons, err := Extract(records, time.UTC)
	require.NoError(t, err)
	require.Len(t, lessons, 2)

	first := lessons[0]
	assert.Equal(t, time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC), first.Start)
	assert.Equal(t, time.Date(2026, 10, 14, 11, 30, 0, 0, time.UTC), first.End)
	assert.Equal(t, "INF123", first.Module)
	assert.Equal(t, " Algorithms", first.DisplayName)
	assert.Equal(t, "Room 4.12", first.Room)
	assert.Equal(t, "Dr. Smith", first.Instructor)
	assert.Equal(t, records[0].Description, first.Body)

	assert.Equal(t, "MAT7", lessons[1].Module, "record order is kept, not re-sorted")
}

func TestExtract_FatalErrors(t *testing.T) {
	tests := []struct {
		name string
		rec  ics.Record
		want error
	}{
		{"bad start", ics.Record{Start: "garbage", End: "20261013T093000", Description: "v\nA B"}, ErrMalformedTimestamp},
		{"bad end", ics.Record{Start: "20261013T080000", End: "20261013", Description: "v\nA B"}, ErrMalformedTimestamp},
		{"one line description", ics.Record{Start: "20261013T080000", End: "20261013T093000", Description: "A B"}, ErrMalformedDescription},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			good := ics.Record{Start: "20261012T080000", End: "20261012T093000", Description: "v\nOK Fine"}
			lessons, err := Extract([]ics.Record{good, tc.rec}, time.UTC)
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, lessons, "no partial calendars")
		})
	}
}

func TestExtract_SkipsEmptyTimeRange(t *testing.T) {
	records := []ics.Record{
		{UID: "backwards", Start: "20261013T093000", End: "20261013T080000", Description: "v\nA B"},
		{UID: "zero", Start: "20261013T080000", End: "20261013T080000", Description: "v\nC D"},
		{UID: "ok", Start: "20261012T080000", End: "20261012T093000", Description: "v\nOK Fine"},
	}

	lessons, err := Extract(records, time.UTC)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "OK", lessons[0].Module)
}
