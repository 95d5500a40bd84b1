package session

import "math"

type Statistics struct {
	TotalEnrolled  int     `json:"total_enrolled"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	Late           int     `json:"late"`
	Excused        int     `json:"excused"`
	AttendanceRate float64 `json:"attendance_rate"` // present / enrolled, in percent
}

func (s *Session) Statistics() Statistics {
	st := Statistics{TotalEnrolled: len(s.Roster)}
	for _, a := range s.Attendance {
		switch a.Status {
		case AttendancePresent:
			st.Present++
		case AttendanceAbsent:
			st.Absent++
		case AttendanceLate:
			st.Late++
		case AttendanceExcused:
			st.Excused++
		}
	}
	if st.TotalEnrolled > 0 {
		rate := float64(st.Present) / float64(st.TotalEnrolled) * 100
		st.AttendanceRate = math.Round(rate*100) / 100
	}
	return st
}
