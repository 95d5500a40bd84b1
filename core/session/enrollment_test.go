package session

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monday 7 Jan 2030, 10:00 UTC
var t0 = time.Date(2030, time.January, 7, 10, 0, 0, 0, time.UTC)

func intPtr(i int) *int { return &i }

func newTestSession(max *int) Session {
	s := Session{
		ID:           "s1",
		CourseID:     "c1",
		InstructorID: "i1",
		Title:        "Algebra",
		StartTime:    t0,
		EndTime:      t0.Add(90 * time.Minute),
		MaxStudents:  max,
		Status:       StatusScheduled,
		Version:      1,
	}
	s.Normalize()
	return s
}

func TestSession_Enroll(t *testing.T) {
	before := t0.Add(-24 * time.Hour)

	tests := []struct {
		name    string
		setup   func(s *Session)
		learner string
		wantErr error
	}{
		{name: "first learner", learner: "l1"},
		{
			name:    "already enrolled",
			setup:   func(s *Session) { _ = s.Enroll("l1", before) },
			learner: "l1",
			wantErr: ErrAlreadyEnrolled,
		},
		{
			name: "already enrolled wins over full",
			setup: func(s *Session) {
				_ = s.Enroll("l1", before)
				_ = s.Enroll("l2", before)
			},
			learner: "l1",
			wantErr: ErrAlreadyEnrolled,
		},
		{
			name:    "not scheduled",
			setup:   func(s *Session) { s.Status = StatusPostponed },
			learner: "l1",
			wantErr: ErrNotEnrollable,
		},
		{
			name: "full",
			setup: func(s *Session) {
				_ = s.Enroll("l1", before)
				_ = s.Enroll("l2", before)
			},
			learner: "l3",
			wantErr: ErrSessionFull,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(intPtr(2))
			if tt.setup != nil {
				tt.setup(&s)
			}
			rosterLen := len(s.Roster)

			err := s.Enroll(tt.learner, before)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Len(t, s.Roster, rosterLen, "roster must not change on failure")
				return
			}
			require.NoError(t, err)
			entry, ok := s.RosterEntry(tt.learner)
			require.True(t, ok)
			assert.Equal(t, RosterEnrolled, entry.Status)
			assert.Equal(t, before, entry.EnrolledAt)
			assert.Equal(t, len(s.Roster), s.CurrentStudents)
		})
	}
}

func TestSession_Enroll_Unlimited(t *testing.T) {
	s := newTestSession(nil)
	for i := 0; i < 500; i++ {
		require.NoError(t, s.Enroll(fmt.Sprintf("l%d", i), t0.Add(-time.Hour)))
	}
	assert.False(t, s.IsFull())
	assert.Equal(t, 500, s.CurrentStudents)
}

func TestSession_Unenroll(t *testing.T) {
	tests := []struct {
		name    string
		learner string
		now     time.Time
		wantErr error
	}{
		{name: "before start", learner: "l1", now: t0.Add(-time.Minute)},
		{name: "not enrolled", learner: "l9", now: t0.Add(-time.Minute), wantErr: ErrNotEnrolled},
		{name: "not enrolled wins over started", learner: "l9", now: t0.Add(time.Minute), wantErr: ErrNotEnrolled},
		{name: "at start", learner: "l1", now: t0, wantErr: ErrSessionAlreadyStarted},
		{name: "after start", learner: "l1", now: t0.Add(time.Hour), wantErr: ErrSessionAlreadyStarted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(nil)
			require.NoError(t, s.Enroll("l1", t0.Add(-time.Hour)))
			require.NoError(t, s.Enroll("l2", t0.Add(-time.Hour)))

			err := s.Unenroll(tt.learner, tt.now)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Equal(t, 2, s.CurrentStudents)
				return
			}
			require.NoError(t, err)
			assert.False(t, s.IsEnrolled("l1"))
			assert.True(t, s.IsEnrolled("l2"))
			assert.Equal(t, 1, s.CurrentStudents)
		})
	}
}

func TestSession_Unenroll_KeepsAttendance(t *testing.T) {
	s := newTestSession(nil)
	require.NoError(t, s.Enroll("l1", t0.Add(-time.Hour)))
	s.MarkAttendance(MarkAttendance{LearnerID: "l1", Status: AttendanceExcused}, t0.Add(-30*time.Minute))

	require.NoError(t, s.Unenroll("l1", t0.Add(-time.Minute)))
	a, ok := s.AttendanceOf("l1")
	require.True(t, ok)
	assert.Equal(t, AttendanceExcused, a.Status)
}

func TestSession_EnrollmentInvariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	s := newTestSession(intPtr(5))
	before := t0.Add(-time.Hour)

	for i := 0; i < 1000; i++ {
		learner := fmt.Sprintf("l%d", rnd.Intn(12))
		if rnd.Intn(3) == 0 {
			_ = s.Unenroll(learner, before)
		} else {
			_ = s.Enroll(learner, before)
		}
		require.NoError(t, s.CheckInvariants(), "step %d", i)
		require.LessOrEqual(t, s.CurrentStudents, 5)
		for _, id := range s.FormerLearners {
			require.False(t, s.IsEnrolled(id), "step %d: %s is enrolled and former", i, id)
		}
	}
}

func TestSession_FormerLearners(t *testing.T) {
	s := newTestSession(nil)
	before := t0.Add(-time.Hour)
	require.NoError(t, s.Enroll("l1", before))
	assert.False(t, s.WasEnrolled("l1"))

	require.NoError(t, s.Unenroll("l1", before))
	assert.True(t, s.WasEnrolled("l1"))
	assert.True(t, s.HasParticipated("l1"))
	assert.False(t, s.HasParticipated("l2"))

	// enrolling again takes the learner off the former list
	require.NoError(t, s.Enroll("l1", before))
	require.NoError(t, s.Unenroll("l1", before))
	assert.Equal(t, []string{"l1"}, s.FormerLearners)

	c := s.Clone()
	c.FormerLearners[0] = "changed"
	assert.Equal(t, []string{"l1"}, s.FormerLearners)
}

func TestActor_CanView(t *testing.T) {
	s := newTestSession(nil)
	before := t0.Add(-time.Hour)
	require.NoError(t, s.Enroll("l1", before))
	require.NoError(t, s.Enroll("l2", before))
	require.NoError(t, s.Unenroll("l2", before))
	s.MarkAttendance(MarkAttendance{LearnerID: "l3", Status: AttendancePresent}, t0)

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{name: "admin", actor: Actor{ID: "a1", IsAdmin: true}, want: true},
		{name: "instructor of record", actor: Actor{ID: "i1", IsInstructor: true}, want: true},
		{name: "other instructor", actor: Actor{ID: "i2", IsInstructor: true}},
		{name: "enrolled learner", actor: Actor{ID: "l1", IsLearner: true}, want: true},
		{name: "former learner", actor: Actor{ID: "l2", IsLearner: true}, want: true},
		{name: "learner with attendance", actor: Actor{ID: "l3", IsLearner: true}, want: true},
		{name: "stranger", actor: Actor{ID: "l4", IsLearner: true}},
		{name: "anonymous", actor: Actor{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.actor.CanView(s))
		})
	}
}

func TestSession_Grade(t *testing.T) {
	s := newTestSession(nil)
	require.NoError(t, s.Enroll("l1", t0.Add(-time.Hour)))

	grade := 87.5
	require.NoError(t, s.Grade("l1", GradeLearner{Status: RosterCompleted, Grade: &grade, Feedback: "solid work"}))
	entry, _ := s.RosterEntry("l1")
	assert.Equal(t, RosterCompleted, entry.Status)
	assert.Equal(t, 87.5, *entry.Grade)
	assert.Equal(t, "solid work", entry.Feedback)

	assert.Equal(t, ErrNotEnrolled, s.Grade("l2", GradeLearner{Status: RosterAttended}))
}
