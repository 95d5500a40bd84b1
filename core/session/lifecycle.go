package session

import "time"

// TransitionTable lists, for each status, the statuses a session may move to.
type TransitionTable map[Status][]Status

func (t TransitionTable) Allows(from, to Status) bool {
	for _, st := range t[from] {
		if st == to {
			return true
		}
	}
	return false
}

// PermissiveTransitions lets an instructor move a session between any two statuses.
var PermissiveTransitions = func() TransitionTable {
	t := make(TransitionTable, len(Statuses))
	for _, from := range Statuses {
		t[from] = append([]Status(nil), Statuses...)
	}
	return t
}()

// StrictTransitions only allows forward moves; completed and cancelled are terminal.
var StrictTransitions = TransitionTable{
	StatusScheduled:  {StatusInProgress, StatusCancelled, StatusPostponed},
	StatusPostponed:  {StatusScheduled, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// TransitionsFor picks the table selected by config.
func TransitionsFor(strict bool) TransitionTable {
	if strict {
		return StrictTransitions
	}
	return PermissiveTransitions
}

// Transition moves the session to `to`. Starting a scheduled session marks the
// learners who never showed up as absent.
func (s *Session) Transition(to Status, table TransitionTable) error {
	if !to.IsValid() || !table.Allows(s.Status, to) {
		return ErrInvalidTransition
	}
	if s.Status == StatusScheduled && to == StatusInProgress {
		s.markAbsentees()
	}
	s.Status = to
	return nil
}

// IsEditable reports whether schedule fields (title, times, capacity, materials) may still change.
func (s *Session) IsEditable(now time.Time) bool {
	return s.Status == StatusScheduled && now.Before(s.StartTime)
}

func (s *Session) IsDeletable(now time.Time) bool {
	return now.Before(s.StartTime)
}

// ApplyUpdate applies a patch. Recording and notes stay editable at any time.
func (s *Session) ApplyUpdate(us UpdateSession, now time.Time) error {
	if us.touchesSchedule() && !s.IsEditable(now) {
		return ErrMutationAfterStart
	}

	start, end := s.StartTime, s.EndTime
	if us.StartTime != nil {
		start = us.StartTime.UTC()
	}
	if us.EndTime != nil {
		end = us.EndTime.UTC()
	}
	if err := checkTimeRange(start, end); err != nil {
		return err
	}
	if us.MaxStudents != nil && *us.MaxStudents < len(s.Roster) {
		return ErrCapacityBelowRoster
	}

	s.StartTime, s.EndTime = start, end
	if us.Title != nil {
		s.Title = *us.Title
	}
	if us.Description != nil {
		s.Description = *us.Description
	}
	if us.MaxStudents != nil {
		max := *us.MaxStudents
		s.MaxStudents = &max
	} else if us.UnlimitedCapacity {
		s.MaxStudents = nil
	}
	if us.Materials != nil {
		s.Materials = append([]Material{}, (*us.Materials)...)
	}
	if us.RecordingURL != nil {
		s.RecordingURL = *us.RecordingURL
	}
	if us.Notes != nil {
		s.Notes = *us.Notes
	}
	s.Normalize()
	return nil
}
