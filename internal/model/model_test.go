package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRGB(t *testing.T) {
	tests := []struct {
		in   string
		want RGB
	}{
		{"#ff8000", RGB{255, 128, 0}},
		{"#FFFFFF", RGB{255, 255, 255}},
		{"-16711936", RGB{0, 255, 0}}, // opaque green as a signed ARGB int
		{"255", RGB{0, 0, 255}},
	}
	for _, tc := range tests {
		got, err := ParseRGB(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "#fff", "#gggggg", "red"} {
		_, err := ParseRGB(bad)
		assert.Error(t, err, bad)
	}
}

func TestRGBHexRoundTrip(t *testing.T) {
	c := RGB{R: 1, G: 171, B: 205}
	assert.Equal(t, "#01abcd", c.Hex())

	back, err := ParseRGB(c.Hex())
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestEmptyWeek(t *testing.T) {
	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.Local)

	marker := EmptyWeek(monday)
	assert.True(t, marker.IsEmptyWeek())
	assert.Equal(t, monday, marker.Start)
	assert.Zero(t, marker.Duration())

	lesson := Lesson{Start: monday.Add(8 * time.Hour), End: monday.Add(9*time.Hour + 30*time.Minute), Body: "x\nINF1 A"}
	assert.False(t, lesson.IsEmptyWeek())
	assert.Equal(t, 90*time.Minute, lesson.Duration())
}
