package session

import "time"

func (s *Session) indexOfAttendance(learnerID string) int {
	for i, a := range s.Attendance {
		if a.LearnerID == learnerID {
			return i
		}
	}
	return -1
}

// AttendanceOf returns the attendance entry of `learnerID`, if any.
func (s *Session) AttendanceOf(learnerID string) (AttendanceEntry, bool) {
	if i := s.indexOfAttendance(learnerID); i >= 0 {
		return s.Attendance[i], true
	}
	return AttendanceEntry{}, false
}

// HasParticipated reports whether the learner is or was on the roster, or already has an attendance record.
func (s *Session) HasParticipated(learnerID string) bool {
	return s.IsEnrolled(learnerID) || s.WasEnrolled(learnerID) || s.indexOfAttendance(learnerID) >= 0
}

// MarkAttendance inserts or updates the attendance entry of a learner.
// joinedAt is stamped the first time the learner is marked present.
func (s *Session) MarkAttendance(ma MarkAttendance, now time.Time) AttendanceEntry {
	i := s.indexOfAttendance(ma.LearnerID)
	if i < 0 {
		s.Attendance = append(s.Attendance, AttendanceEntry{LearnerID: ma.LearnerID})
		i = len(s.Attendance) - 1
	}

	a := &s.Attendance[i]
	a.Status = ma.Status
	a.Notes = ma.Notes
	if ma.Status == AttendancePresent && a.JoinedAt == nil {
		joined := now.UTC()
		a.JoinedAt = &joined
	}
	if ma.LeftAt != nil {
		left := ma.LeftAt.UTC()
		a.LeftAt = &left
	}
	return *a
}

// markAbsentees records every enrolled learner without an attendance entry as absent.
func (s *Session) markAbsentees() {
	for _, e := range s.Roster {
		if e.Status != RosterEnrolled || s.indexOfAttendance(e.LearnerID) >= 0 {
			continue
		}
		s.Attendance = append(s.Attendance, AttendanceEntry{
			LearnerID: e.LearnerID,
			Status:    AttendanceAbsent,
		})
	}
}
