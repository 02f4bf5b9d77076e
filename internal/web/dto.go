package web

import (
	"time"

	"timetable/internal/model"
	"timetable/internal/session"
)

type lessonDTO struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Module      string    `json:"module"`
	DisplayName string    `json:"display_name"`
	Room        string    `json:"room,omitempty"`
	Instructor  string    `json:"instructor,omitempty"`
	Color       string    `json:"color"`
}

type cellDTO struct {
	lessonDTO
	Column int `json:"column"`
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type rowDTO struct {
	Index int    `json:"index"`
	Y     int    `json:"y"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type weekResponse struct {
	User   string `json:"user"`
	Source string `json:"source"`
	Offset int    `json:"offset"`
	// Start and End are dates (YYYY-MM-DD); End is the Saturday bound.
	Start string `json:"start"`
	End   string `json:"end"`
	Empty bool   `json:"empty"`

	Lessons []lessonDTO `json:"lessons"`
	Cells   []cellDTO   `json:"cells"`
	Rows    []rowDTO    `json:"rows"`
	// NowY is omitted outside the current school day.
	NowY *int `json:"now_y,omitempty"`
}

func toLessonDTO(l model.Lesson) lessonDTO {
	return lessonDTO{
		Start:       l.Start,
		End:         l.End,
		Module:      l.Module,
		DisplayName: l.DisplayName,
		Room:        l.Room,
		Instructor:  l.Instructor,
		Color:       l.Color.Hex(),
	}
}

func (s *Server) buildWeek(v session.View) weekResponse {
	resp := weekResponse{
		User:    s.sess.Username(),
		Source:  s.sess.Source(),
		Offset:  v.Window.Offset,
		Start:   v.Window.Start.Format(time.DateOnly),
		End:     v.Window.End.Format(time.DateOnly),
		Lessons: make([]lessonDTO, 0, len(v.Lessons)),
		Cells:   make([]cellDTO, 0, len(v.Cells)),
		Rows:    make([]rowDTO, 0, len(v.Rows)),
	}

	for _, l := range v.Lessons {
		if l.IsEmptyWeek() {
			resp.Empty = true
			continue
		}
		resp.Lessons = append(resp.Lessons, toLessonDTO(l))
	}
	for _, c := range v.Cells {
		resp.Cells = append(resp.Cells, cellDTO{
			lessonDTO: toLessonDTO(c.Lesson),
			Column:    c.Column,
			X:         c.X,
			Y:         c.Y,
			Width:     c.Width,
			Height:    c.Height,
		})
	}
	for _, r := range v.Rows {
		resp.Rows = append(resp.Rows, rowDTO{Index: r.Index, Y: r.Y, Start: r.Start, End: r.End})
	}
	if v.ShowNow {
		y := v.NowY
		resp.NowY = &y
	}
	return resp
}
