package session

import (
	"math"
	"strconv"
	"time"
)

func (s *Session) IsFull() bool {
	return s.MaxStudents != nil && len(s.Roster) >= *s.MaxStudents
}

func (s *Session) CanEnroll() bool {
	return s.Status == StatusScheduled && !s.IsFull()
}

// TimeUntilStart renders the time left before the session starts, floored to its largest unit.
func (s *Session) TimeUntilStart(now time.Time) string {
	d := s.StartTime.Sub(now)
	if d <= 0 {
		return "Started"
	}
	if days := int(d / (24 * time.Hour)); days > 0 {
		return plural(days, "day")
	}
	if hours := int(d / time.Hour); hours > 0 {
		return plural(hours, "hour")
	}
	return plural(int(d/time.Minute), "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// Progress is the elapsed share of the session window, as a percentage in [0, 100].
func (s *Session) Progress(now time.Time) int {
	switch s.Status {
	case StatusCompleted:
		return 100
	case StatusCancelled, StatusPostponed:
		return 0
	}
	if !now.After(s.StartTime) {
		return 0
	}
	if !now.Before(s.EndTime) {
		return 100
	}
	total := s.EndTime.Sub(s.StartTime)
	elapsed := now.Sub(s.StartTime)
	p := int(math.Round(float64(elapsed) / float64(total) * 100))
	if p > 100 {
		p = 100
	}
	return p
}

// View is the read shape of a session, with its derived values evaluated at a given instant.
type View struct {
	Session
	IsFull         bool   `json:"is_full"`
	CanEnroll      bool   `json:"can_enroll"`
	TimeUntilStart string `json:"time_until_start"`
	Progress       int    `json:"progress"`
}

func NewView(s Session, now time.Time) View {
	return View{
		Session:        s,
		IsFull:         s.IsFull(),
		CanEnroll:      s.CanEnroll(),
		TimeUntilStart: s.TimeUntilStart(now),
		Progress:       s.Progress(now),
	}
}

func NewViews(sessions []Session, now time.Time) []View {
	views := make([]View, len(sessions))
	for i, s := range sessions {
		views[i] = NewView(s, now)
	}
	return views
}
