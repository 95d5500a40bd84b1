package session

import "time"

type EventType string

const (
	EventCreated       EventType = "session.created"
	EventUpdated       EventType = "session.updated"
	EventDeleted       EventType = "session.deleted"
	EventEnrolled      EventType = "session.enrolled"
	EventUnenrolled    EventType = "session.unenrolled"
	EventAttendance    EventType = "session.attendance"
	EventStatusChanged EventType = "session.status"
)

// Event describes a committed change to a session.
type Event struct {
	Type            EventType `json:"type"`
	SessionID       string    `json:"session_id"`
	CourseID        string    `json:"course_id"`
	Status          Status    `json:"status"`
	CurrentStudents int       `json:"current_students"`
	LearnerID       string    `json:"learner_id,omitempty"`
	At              time.Time `json:"at"`
}

// EventPublisher fans committed changes out to live subscribers. Publish must not block.
type EventPublisher interface {
	Publish(evt Event)
}

func (svc *Service) publish(typ EventType, s Session, learnerID string) {
	if svc.events == nil {
		return
	}
	svc.events.Publish(Event{
		Type:            typ,
		SessionID:       s.ID,
		CourseID:        s.CourseID,
		Status:          s.Status,
		CurrentStudents: s.CurrentStudents,
		LearnerID:       learnerID,
		At:              s.UpdatedAt,
	})
}
