package session

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/coachingcentre/platform/core"
)

// NowFunc is the engine clock.
var NowFunc = time.Now // mockable

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusPostponed  Status = "postponed"
)

var Statuses = []Status{StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusPostponed}

func (s Status) IsValid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

type RosterStatus string

const (
	RosterEnrolled  RosterStatus = "enrolled"
	RosterAttended  RosterStatus = "attended"
	RosterCompleted RosterStatus = "completed"
	RosterDropped   RosterStatus = "dropped"
)

var RosterStatuses = []RosterStatus{RosterEnrolled, RosterAttended, RosterCompleted, RosterDropped}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

var AttendanceStatuses = []AttendanceStatus{AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused}

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

var Frequencies = []Frequency{Daily, Weekly, Monthly}

type RosterEntry struct {
	LearnerID  string       `json:"learner_id"`
	EnrolledAt time.Time    `json:"enrolled_at"`
	Status     RosterStatus `json:"status"`
	Grade      *float64     `json:"grade,omitempty"`
	Feedback   string       `json:"feedback,omitempty"`
}

type AttendanceEntry struct {
	LearnerID string           `json:"learner_id"`
	Status    AttendanceStatus `json:"status"`
	JoinedAt  *time.Time       `json:"joined_at,omitempty"`
	LeftAt    *time.Time       `json:"left_at,omitempty"`
	Notes     string           `json:"notes,omitempty"`
}

// Recurrence describes how sibling sessions are generated when a session is created.
// It is copied onto every generated session and never changes afterwards.
type Recurrence struct {
	Frequency      Frequency      `json:"frequency" validate:"required,frequency"`
	Interval       int            `json:"interval" validate:"min=1"`
	DaysOfWeek     []time.Weekday `json:"days_of_week,omitempty" validate:"omitempty,weekdays"`
	EndDate        *time.Time     `json:"end_date,omitempty"`
	MaxOccurrences *int           `json:"max_occurrences,omitempty" validate:"omitempty,min=1"`
}

type Material struct {
	Title string `json:"title" validate:"required,notblank,max=200"`
	URL   string `json:"url" validate:"required,url"`
	Kind  string `json:"kind,omitempty" validate:"omitempty,max=50"`
}

// Session is one scheduled teaching occurrence.
type Session struct {
	ID              string            `json:"id"`
	CourseID        string            `json:"course_id"`
	InstructorID    string            `json:"instructor_id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	Duration        int               `json:"duration"` // minutes; derived from the time window
	MaxStudents     *int              `json:"max_students"`
	CurrentStudents int               `json:"current_students"`
	Roster          []RosterEntry     `json:"roster"`
	Attendance      []AttendanceEntry `json:"attendance"`
	FormerLearners  []string          `json:"former_learners,omitempty"` // unenrolled before the start
	Status          Status            `json:"status"`
	Recurrence      *Recurrence       `json:"recurrence,omitempty"`
	Materials       []Material        `json:"materials"`
	RecordingURL    string            `json:"recording_url,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Version         int               `json:"-"`
	CreatedAt       time.Time         `json:"created_at"` // UTC
	UpdatedAt       time.Time         `json:"updated_at"` // UTC
}

// Normalize recomputes the derived fields. Every save goes through it.
func (s *Session) Normalize() {
	s.Duration = int(s.EndTime.Sub(s.StartTime) / time.Minute)
	if s.Roster == nil {
		s.Roster = []RosterEntry{}
	}
	if s.Attendance == nil {
		s.Attendance = []AttendanceEntry{}
	}
	if s.Materials == nil {
		s.Materials = []Material{}
	}
	s.CurrentStudents = len(s.Roster)
}

// CheckInvariants reports the first broken aggregate invariant, if any.
func (s *Session) CheckInvariants() error {
	if !s.EndTime.After(s.StartTime) {
		return ErrInvalidTimeRange
	}
	if s.CurrentStudents != len(s.Roster) {
		return errInvariant("current_students does not match the roster size")
	}
	if s.MaxStudents != nil && s.CurrentStudents > *s.MaxStudents {
		return errInvariant("roster exceeds max_students")
	}
	seen := make(map[string]struct{}, len(s.Roster))
	for _, e := range s.Roster {
		if _, dup := seen[e.LearnerID]; dup {
			return errInvariant("learner " + e.LearnerID + " appears twice in the roster")
		}
		seen[e.LearnerID] = struct{}{}
	}
	marked := make(map[string]struct{}, len(s.Attendance))
	for _, a := range s.Attendance {
		if _, dup := marked[a.LearnerID]; dup {
			return errInvariant("learner " + a.LearnerID + " has two attendance entries")
		}
		marked[a.LearnerID] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	c := s
	if s.MaxStudents != nil {
		max := *s.MaxStudents
		c.MaxStudents = &max
	}
	if s.Roster != nil {
		c.Roster = make([]RosterEntry, len(s.Roster))
		for i, e := range s.Roster {
			if e.Grade != nil {
				g := *e.Grade
				e.Grade = &g
			}
			c.Roster[i] = e
		}
	}
	if s.Attendance != nil {
		c.Attendance = make([]AttendanceEntry, len(s.Attendance))
		for i, a := range s.Attendance {
			a.JoinedAt = copyTime(a.JoinedAt)
			a.LeftAt = copyTime(a.LeftAt)
			c.Attendance[i] = a
		}
	}
	if s.Materials != nil {
		c.Materials = append([]Material{}, s.Materials...)
	}
	if s.FormerLearners != nil {
		c.FormerLearners = append([]string{}, s.FormerLearners...)
	}
	if s.Recurrence != nil {
		r := *s.Recurrence
		if s.Recurrence.DaysOfWeek != nil {
			r.DaysOfWeek = append([]time.Weekday{}, s.Recurrence.DaysOfWeek...)
		}
		r.EndDate = copyTime(s.Recurrence.EndDate)
		if s.Recurrence.MaxOccurrences != nil {
			n := *s.Recurrence.MaxOccurrences
			r.MaxOccurrences = &n
		}
		c.Recurrence = &r
	}
	return c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Actor is the caller an operation runs on behalf of, as established by the auth layer.
type Actor struct {
	ID           string
	IsAdmin      bool
	IsInstructor bool
	IsLearner    bool
}

// CanManage reports whether the actor is the instructor-of-record of `s` or an admin.
func (a Actor) CanManage(s Session) bool {
	return a.IsAdmin || (a.ID != "" && a.ID == s.InstructorID)
}

// CanView reports whether the session is visible to `a`: admins see every session,
// instructors their own and learners the ones they take or took part in.
func (a Actor) CanView(s Session) bool {
	if a.CanManage(s) {
		return true
	}
	return a.IsLearner && a.ID != "" && s.HasParticipated(a.ID)
}

// NewSession contains information needed to schedule a new Session (and its recurrences).
type NewSession struct {
	CourseID     string      `json:"course_id" validate:"required"`
	InstructorID string      `json:"instructor_id"` // admins only; defaults to the course instructor
	Title        string      `json:"title" validate:"required,max=200"`
	Description  string      `json:"description" validate:"max=5000"`
	StartTime    time.Time   `json:"start_time" validate:"required"`
	EndTime      time.Time   `json:"end_time" validate:"required"`
	MaxStudents  *int        `json:"max_students" validate:"omitempty,min=1"`
	Recurrence   *Recurrence `json:"recurrence"`
	Materials    []Material  `json:"materials" validate:"omitempty,dive"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.CourseID = core.CleanString(ns.CourseID)
	ns.InstructorID = core.CleanString(ns.InstructorID)
	ns.Title = core.CleanString(ns.Title)
	ns.Description = core.CleanString(ns.Description)
	if ns.Recurrence != nil && ns.Recurrence.Interval == 0 {
		ns.Recurrence.Interval = 1
	}

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return checkTimeRange(ns.StartTime, ns.EndTime)
}

// UpdateSession defines what information may be provided to modify an existing Session.
// Nil fields are left untouched.
type UpdateSession struct {
	Title             *string     `json:"title" validate:"omitempty,min=1,max=200"`
	Description       *string     `json:"description" validate:"omitempty,max=5000"`
	StartTime         *time.Time  `json:"start_time"`
	EndTime           *time.Time  `json:"end_time"`
	MaxStudents       *int        `json:"max_students" validate:"omitempty,min=1"`
	UnlimitedCapacity bool        `json:"unlimited_capacity"`
	Materials         *[]Material `json:"materials" validate:"omitempty,dive"`
	RecordingURL      *string     `json:"recording_url" validate:"omitempty,url"`
	Notes             *string     `json:"notes" validate:"omitempty,max=5000"`
}

func (us *UpdateSession) Validate(validate *validator.Validate) error {
	if us.Title != nil {
		title := core.CleanString(*us.Title)
		if title == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field cannot be blank"})
		}
		us.Title = &title
	}
	if us.MaxStudents != nil && us.UnlimitedCapacity {
		return core.NewValidationError(nil, core.FieldError{
			Field: "max_students",
			Error: "cannot be set together with unlimited_capacity",
		})
	}
	return validate.Struct(us)
}

// touchesSchedule reports whether the patch edits fields that freeze once the session starts.
func (us UpdateSession) touchesSchedule() bool {
	return us.Title != nil || us.Description != nil || us.StartTime != nil || us.EndTime != nil ||
		us.MaxStudents != nil || us.UnlimitedCapacity || us.Materials != nil
}

func (us UpdateSession) IsEmpty() bool {
	return !us.touchesSchedule() && us.RecordingURL == nil && us.Notes == nil
}

type MarkAttendance struct {
	LearnerID string           `json:"learner_id" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"required,attendancestatus"`
	Notes     string           `json:"notes" validate:"max=2000"`
	LeftAt    *time.Time       `json:"left_at"`
}

func (ma *MarkAttendance) Validate(validate *validator.Validate) error {
	ma.LearnerID = core.CleanString(ma.LearnerID)
	ma.Notes = core.CleanString(ma.Notes)
	return validate.Struct(ma)
}

type GradeLearner struct {
	Status   RosterStatus `json:"status" validate:"required,rosterstatus"`
	Grade    *float64     `json:"grade" validate:"omitempty,min=0,max=100"`
	Feedback string       `json:"feedback" validate:"max=2000"`
}

func (gl *GradeLearner) Validate(validate *validator.Validate) error {
	gl.Feedback = core.CleanString(gl.Feedback)
	return validate.Struct(gl)
}

type Transition struct {
	Status Status `json:"status" validate:"required,sessionstatus"`
}

func (t Transition) Validate(validate *validator.Validate) error { return validate.Struct(t) }

// QueryFilter applies AND operation on its set fields.
type QueryFilter struct {
	CourseID     string
	InstructorID string
	LearnerID    string // roster membership
	Status       Status
	Date         time.Time // sessions starting on that (UTC) calendar day
	UpcomingFrom time.Time // sessions still scheduled and starting after that instant
}

// DayBounds returns [Date 00:00, Date+1 00:00) in UTC.
func (qf QueryFilter) DayBounds() (time.Time, time.Time) {
	d := qf.Date.UTC()
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

// Matches evaluates the filter against a single session.
func (qf QueryFilter) Matches(s Session) bool {
	if qf.CourseID != "" && s.CourseID != qf.CourseID {
		return false
	}
	if qf.InstructorID != "" && s.InstructorID != qf.InstructorID {
		return false
	}
	if qf.LearnerID != "" && !s.IsEnrolled(qf.LearnerID) {
		return false
	}
	if qf.Status != "" && s.Status != qf.Status {
		return false
	}
	if !qf.Date.IsZero() {
		from, to := qf.DayBounds()
		if s.StartTime.Before(from) || !s.StartTime.Before(to) {
			return false
		}
	}
	if !qf.UpcomingFrom.IsZero() && !(s.StartTime.After(qf.UpcomingFrom) && s.Status == StatusScheduled) {
		return false
	}
	return true
}

// OrderingFields maps the sortable API fields to their storage columns.
var OrderingFields = map[string]string{
	"start_time":       "start_time",
	"end_time":         "end_time",
	"created_at":       "created_at",
	"title":            "title",
	"status":           "status",
	"current_students": "current_students",
}

// DefaultOrdering lists sessions chronologically.
var DefaultOrdering = []core.DBOrdering{{Field: "start_time", Ascending: true}}
