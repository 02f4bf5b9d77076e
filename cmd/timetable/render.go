package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"timetable/internal/session"
)

var weekdayNames = [...]string{"Mo", "Di", "Mi", "Do", "Fr"}

// printWeek writes v as a table, one line per lesson in start order.
func printWeek(out io.Writer, title string, v session.View) {
	end := v.Window.End.AddDate(0, 0, -1)
	fmt.Fprintf(out, "%s: %s - %s (Woche %+d)\n",
		title, v.Window.Start.Format("02.01.2006"), end.Format("02.01.2006"), v.Window.Offset)

	if len(v.Cells) == 0 {
		fmt.Fprintln(out, "  keine Lehrveranstaltungen")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range v.Cells {
		l := c.Lesson
		fmt.Fprintf(tw, "  %s\t%s-%s\t%s\t%s\t%s\t%s\t%s\n",
			weekdayNames[c.Column],
			l.Start.Format("15:04"),
			l.End.Format("15:04"),
			l.Module,
			strings.TrimSpace(l.DisplayName),
			l.Room,
			l.Instructor,
			l.Color.Hex(),
		)
	}
	_ = tw.Flush()

	if v.ShowNow {
		fmt.Fprintf(out, "  jetzt: %s\n", time.Now().Format("15:04"))
	}
}
