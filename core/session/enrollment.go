package session

import "time"

func (s *Session) indexOfLearner(learnerID string) int {
	for i, e := range s.Roster {
		if e.LearnerID == learnerID {
			return i
		}
	}
	return -1
}

func (s *Session) IsEnrolled(learnerID string) bool {
	return s.indexOfLearner(learnerID) >= 0
}

// RosterEntry returns the roster entry of `learnerID`, if any.
func (s *Session) RosterEntry(learnerID string) (RosterEntry, bool) {
	if i := s.indexOfLearner(learnerID); i >= 0 {
		return s.Roster[i], true
	}
	return RosterEntry{}, false
}

// Enroll adds `learnerID` to the roster.
// Checks run in order: duplicate enrollment, session status, capacity.
func (s *Session) Enroll(learnerID string, now time.Time) error {
	if s.IsEnrolled(learnerID) {
		return ErrAlreadyEnrolled
	}
	if s.Status != StatusScheduled {
		return ErrNotEnrollable
	}
	if s.IsFull() {
		return ErrSessionFull
	}

	s.Roster = append(s.Roster, RosterEntry{
		LearnerID:  learnerID,
		EnrolledAt: now.UTC(),
		Status:     RosterEnrolled,
	})
	s.CurrentStudents = len(s.Roster)
	s.forgetFormerLearner(learnerID)
	return nil
}

// Unenroll removes `learnerID` from the roster. It is allowed only before the session starts.
// Attendance entries already recorded for the learner are kept and the learner is remembered
// in FormerLearners.
func (s *Session) Unenroll(learnerID string, now time.Time) error {
	i := s.indexOfLearner(learnerID)
	if i < 0 {
		return ErrNotEnrolled
	}
	if !now.Before(s.StartTime) {
		return ErrSessionAlreadyStarted
	}

	roster := make([]RosterEntry, 0, len(s.Roster)-1)
	roster = append(roster, s.Roster[:i]...)
	s.Roster = append(roster, s.Roster[i+1:]...)
	s.CurrentStudents = len(s.Roster)
	if !s.WasEnrolled(learnerID) {
		s.FormerLearners = append(s.FormerLearners, learnerID)
	}
	return nil
}

// WasEnrolled reports whether `learnerID` left the roster.
func (s *Session) WasEnrolled(learnerID string) bool {
	for _, id := range s.FormerLearners {
		if id == learnerID {
			return true
		}
	}
	return false
}

func (s *Session) forgetFormerLearner(learnerID string) {
	for i, id := range s.FormerLearners {
		if id == learnerID {
			s.FormerLearners = append(s.FormerLearners[:i:i], s.FormerLearners[i+1:]...)
			return
		}
	}
}

// Grade records the outcome of a learner on the roster.
func (s *Session) Grade(learnerID string, gl GradeLearner) error {
	i := s.indexOfLearner(learnerID)
	if i < 0 {
		return ErrNotEnrolled
	}
	e := &s.Roster[i]
	e.Status = gl.Status
	if gl.Grade != nil {
		g := *gl.Grade
		e.Grade = &g
	}
	if gl.Feedback != "" {
		e.Feedback = gl.Feedback
	}
	return nil
}
