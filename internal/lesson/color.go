package lesson

import (
	"hash/fnv"

	appLog "timetable/internal/log"
	"timetable/internal/model"
	"timetable/internal/userconf"
)

// Overrides is the read side of the per-user configuration.
type Overrides interface {
	Get(username, key string) (string, bool)
}

// DefaultColor returns a muted pastel for displayName: one channel at 255,
// the other two in 190..250. The same name always gets the same colour.
func DefaultColor(displayName string) model.RGB {
	h := fnv.New32a()
	_, _ = h.Write([]byte(displayName))
	sum := h.Sum32()

	const lowest, span = 190, 61
	ch := [3]uint8{
		uint8(lowest + (sum>>2)%span),
		uint8(lowest + (sum>>10)%span),
		uint8(lowest + (sum>>18)%span),
	}
	ch[sum%3] = 255

	return model.RGB{R: ch[0], G: ch[1], B: ch[2]}
}

// AssignColors sets each lesson's colour from the user's override for its
// display name, falling back to DefaultColor. Unparseable overrides are
// logged and ignored.
func AssignColors(lessons []model.Lesson, username string, overrides Overrides) {
	for i := range lessons {
		l := &lessons[i]
		l.Color = DefaultColor(l.DisplayName)

		if overrides == nil {
			continue
		}
		raw, ok := overrides.Get(username, userconf.ColorKey(l.DisplayName))
		if !ok {
			continue
		}
		c, err := model.ParseRGB(raw)
		if err != nil {
			appLog.Warn("ignoring invalid colour override", "user", username, "display_name", l.DisplayName, "value", raw)
			continue
		}
		l.Color = c
	}
}
