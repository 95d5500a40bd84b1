package session

import (
	"errors"
	"time"
)

var (
	ErrNotFound              = errors.New("session not found")
	ErrCourseNotFound        = errors.New("course not found")
	ErrLearnerNotFound       = errors.New("learner not found")
	ErrInstructorNotFound    = errors.New("instructor not found")
	ErrNotAnInstructor       = errors.New("sessions can only be assigned to instructors")
	ErrForbidden             = errors.New("you are not allowed to manage this session")
	ErrInvalidTimeRange      = errors.New("end time must be after start time")
	ErrAlreadyEnrolled       = errors.New("learner is already enrolled in this session")
	ErrSessionFull           = errors.New("session is full")
	ErrNotEnrollable         = errors.New("session is not open for enrollment")
	ErrNotEnrolled           = errors.New("learner is not enrolled in this session")
	ErrSessionAlreadyStarted = errors.New("session has already started")
	ErrMutationAfterStart    = errors.New("session can no longer be modified")
	ErrInvalidTransition     = errors.New("status transition is not allowed")
	ErrCapacityBelowRoster   = errors.New("max students cannot be lower than the number of enrolled learners")
	ErrStorageConflict       = errors.New("session was modified concurrently, please retry")
)

// Kind classifies engine errors for the outer surfaces.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindValidation Kind = "validation"
	KindConflict   Kind = "storage_conflict"
	KindState      Kind = "state"
	KindUnknown    Kind = ""
)

var kinds = map[error]Kind{
	ErrNotFound:              KindNotFound,
	ErrCourseNotFound:        KindNotFound,
	ErrLearnerNotFound:       KindNotFound,
	ErrInstructorNotFound:    KindNotFound,
	ErrNotAnInstructor:       KindValidation,
	ErrForbidden:             KindForbidden,
	ErrInvalidTimeRange:      KindValidation,
	ErrCapacityBelowRoster:   KindValidation,
	ErrAlreadyEnrolled:       KindState,
	ErrSessionFull:           KindState,
	ErrNotEnrollable:         KindState,
	ErrNotEnrolled:           KindState,
	ErrSessionAlreadyStarted: KindState,
	ErrMutationAfterStart:    KindState,
	ErrInvalidTransition:     KindState,
	ErrStorageConflict:       KindConflict,
}

// KindOf returns the Kind of err, looking through wrapped errors.
func KindOf(err error) Kind {
	for err != nil {
		// compare instead of indexing: err may be an unhashable type (e.g. a slice of field errors)
		for sentinel, k := range kinds {
			if err == sentinel {
				return k
			}
		}
		err = unwrap(err)
	}
	return KindUnknown
}

// unwrap handles both pkg/errors causers and stdlib wrappers.
func unwrap(err error) error {
	if c, ok := err.(interface{ Cause() error }); ok {
		return c.Cause()
	}
	return errors.Unwrap(err)
}

type invariantError string

func (e invariantError) Error() string { return "broken invariant: " + string(e) }

func errInvariant(msg string) error { return invariantError(msg) }

func checkTimeRange(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidTimeRange
	}
	return nil
}
