package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachingcentre/platform/core/session"
	"github.com/coachingcentre/platform/core/user"
	"github.com/coachingcentre/platform/tests"
)

var t0 = time.Date(2030, time.January, 7, 10, 0, 0, 0, time.UTC)

func setClock(t *testing.T, now time.Time) {
	session.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { session.NowFunc = time.Now })
}

type pageResponse struct {
	Results  []session.View `json:"results"`
	Count    int            `json:"count"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

type sessionFixture struct {
	*env
	instructor, admin string
	learners          []string
	learnerIDs        []string
	courseID          string
	instructorID      string
	otherInstructor   string
	otherInstructorID string
}

func newSessionFixture(t *testing.T) *sessionFixture {
	e := setup(t)
	instr := testutil.CreateUser(t, e.usrRepo, "Ada", "ada001", "ada@coaching.test", "", []string{user.RoleInstructor}, true)
	other := testutil.CreateUser(t, e.usrRepo, "Grace", "grace1", "grace@coaching.test", "", []string{user.RoleInstructor}, true)
	adm := testutil.CreateUser(t, e.usrRepo, "Zed", "admin1", "admin@coaching.test", "", []string{user.RoleAdmin}, true)

	f := &sessionFixture{
		env:               e,
		instructor:        e.getToken(t, instr),
		admin:             e.getToken(t, adm),
		courseID:          e.createCourse(t, instr).ID,
		instructorID:      instr.ID,
		otherInstructor:   e.getToken(t, other),
		otherInstructorID: other.ID,
	}
	for i := 0; i < 3; i++ {
		uname := fmt.Sprintf("learner%d", i)
		l := testutil.CreateUser(t, e.usrRepo, uname, uname, uname+"@coaching.test", "", []string{user.RoleLearner}, true)
		f.learners = append(f.learners, e.getToken(t, l))
		f.learnerIDs = append(f.learnerIDs, l.ID)
	}
	return f
}

func (f *sessionFixture) schedule(t *testing.T, start time.Time, maxStudents *int) session.View {
	body := marchallObj(t, session.NewSession{
		CourseID:    f.courseID,
		Title:       "Fractions",
		StartTime:   start,
		EndTime:     start.Add(90 * time.Minute),
		MaxStudents: maxStudents,
	})
	rec := f.do(http.MethodPost, "/v1/sessions", f.instructor, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var views []session.View
	decode(t, rec, &views)
	require.Len(t, views, 1)
	return views[0]
}

func intPtr(i int) *int { return &i }

func Test_sessionApi_create(t *testing.T) {
	f := newSessionFixture(t)
	setClock(t, t0.Add(-24*time.Hour))

	valid := session.NewSession{CourseID: f.courseID, Title: "Fractions", StartTime: t0, EndTime: t0.Add(time.Hour)}
	recurring := valid
	recurring.Recurrence = &session.Recurrence{Frequency: session.Weekly, Interval: 1, MaxOccurrences: intPtr(3)}
	backwards := valid
	backwards.EndTime = t0.Add(-time.Hour)
	unknownCourse := valid
	unknownCourse.CourseID = "nope"

	tests := []struct {
		name      string
		token     string
		body      session.NewSession
		wantCode  int
		wantCount int
	}{
		{name: "learner forbidden", token: f.learners[0], body: valid, wantCode: http.StatusForbidden},
		{name: "not the course instructor", token: f.otherInstructor, body: valid, wantCode: http.StatusForbidden},
		{name: "end before start", token: f.instructor, body: backwards, wantCode: http.StatusBadRequest},
		{name: "unknown course", token: f.instructor, body: unknownCourse, wantCode: http.StatusNotFound},
		{name: "single", token: f.instructor, body: valid, wantCode: http.StatusCreated, wantCount: 1},
		{name: "recurring", token: f.admin, body: recurring, wantCode: http.StatusCreated, wantCount: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/v1/sessions", tt.token, marchallObj(t, tt.body))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusCreated {
				return
			}
			var views []session.View
			decode(t, rec, &views)
			require.Len(t, views, tt.wantCount)
			assert.Equal(t, f.instructorID, views[0].InstructorID)
			assert.Equal(t, 60, views[0].Duration)
			assert.Equal(t, "1 day", views[0].TimeUntilStart)
			assert.True(t, views[0].CanEnroll)
		})
	}
}

func Test_sessionApi_enrollment(t *testing.T) {
	f := newSessionFixture(t)
	setClock(t, t0.Add(-time.Hour))
	s := f.schedule(t, t0, intPtr(1))
	path := "/v1/sessions/" + s.ID + "/enroll"

	tests := []httpTest{
		{name: "instructor cannot enroll", method: http.MethodPost, token: f.instructor, wantCode: http.StatusForbidden},
		{name: "enroll", method: http.MethodPost, token: f.learners[0], wantCode: http.StatusOK},
		{
			name: "already enrolled", method: http.MethodPost, token: f.learners[0], wantCode: http.StatusConflict,
			wantData: marchallObj(t, codedErr{Error: session.ErrAlreadyEnrolled.Error(), Code: "state"}),
		},
		{
			name: "full", method: http.MethodPost, token: f.learners[1], wantCode: http.StatusConflict,
			wantData: marchallObj(t, codedErr{Error: session.ErrSessionFull.Error(), Code: "state"}),
		},
		{
			name: "unenroll someone not enrolled", method: http.MethodDelete, token: f.learners[1], wantCode: http.StatusConflict,
			wantData: marchallObj(t, codedErr{Error: session.ErrNotEnrolled.Error(), Code: "state"}),
		},
		{name: "unenroll", method: http.MethodDelete, token: f.learners[0], wantCode: http.StatusOK},
		{name: "seat freed", method: http.MethodPost, token: f.learners[1], wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, path, tt.token)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec := f.do(http.MethodGet, "/v1/sessions/"+s.ID, f.learners[1])
	require.Equal(t, http.StatusOK, rec.Code)
	var view session.View
	decode(t, rec, &view)
	assert.Equal(t, 1, view.CurrentStudents)
	assert.True(t, view.IsFull)
	require.Len(t, view.Roster, 1)
	assert.Equal(t, f.learnerIDs[1], view.Roster[0].LearnerID)
}

func Test_sessionApi_update(t *testing.T) {
	f := newSessionFixture(t)
	setClock(t, t0.Add(-time.Hour))
	s := f.schedule(t, t0, nil)
	path := "/v1/sessions/" + s.ID

	tests := []httpTest{
		{name: "unknown field", body: []byte(`{"title":"Algebra","status":"completed"}`), token: f.instructor, wantCode: http.StatusBadRequest},
		{name: "empty patch", body: []byte(`{}`), token: f.instructor, wantCode: http.StatusBadRequest},
		{name: "not the instructor of record", body: []byte(`{"title":"Algebra"}`), token: f.otherInstructor, wantCode: http.StatusForbidden},
		{name: "learner", body: []byte(`{"title":"Algebra"}`), token: f.learners[0], wantCode: http.StatusForbidden},
		{name: "capacity and unlimited", body: []byte(`{"max_students":3,"unlimited_capacity":true}`), token: f.instructor, wantCode: http.StatusBadRequest},
		{name: "title", body: []byte(`{"title":"Algebra"}`), token: f.instructor, wantCode: http.StatusOK},
		{name: "admin", body: []byte(`{"notes":"bring a calculator"}`), token: f.admin, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPatch, path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec := f.do(http.MethodGet, path, f.instructor)
	var view session.View
	decode(t, rec, &view)
	assert.Equal(t, "Algebra", view.Title)
	assert.Equal(t, "bring a calculator", view.Notes)

	// schedule is frozen once started
	setClock(t, t0.Add(time.Minute))
	rec = f.do(http.MethodPatch, path, f.instructor, []byte(`{"title":"Geometry"}`))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, codedErr{Error: session.ErrMutationAfterStart.Error(), Code: "state"}),
	}, rec)
	rec = f.do(http.MethodPatch, path, f.instructor, []byte(`{"recording_url":"https://cdn.coaching.test/rec.mp4"}`))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_sessionApi_lifecycle(t *testing.T) {
	f := newSessionFixture(t)
	setClock(t, t0.Add(-time.Hour))
	s := f.schedule(t, t0, nil)
	path := "/v1/sessions/" + s.ID

	for _, token := range f.learners {
		rec := f.do(http.MethodPost, path+"/enroll", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	setClock(t, t0.Add(5*time.Minute))
	rec := f.do(http.MethodPut, path+"/attendance", f.instructor, marchallObj(t, session.MarkAttendance{
		LearnerID: f.learnerIDs[0],
		Status:    session.AttendancePresent,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPut, path+"/attendance", f.instructor, marchallObj(t, session.MarkAttendance{
		LearnerID: "stranger",
		Status:    session.AttendancePresent,
	}))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPut, path+"/status", f.instructor, []byte(`{"status":"archived"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, path+"/status", f.learners[0], []byte(`{"status":"in-progress"}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPut, path+"/status", f.instructor, []byte(`{"status":"in-progress"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view session.View
	decode(t, rec, &view)
	assert.Equal(t, session.StatusInProgress, view.Status)
	assert.Len(t, view.Attendance, 3, "learners without attendance are marked absent")
	assert.Equal(t, "Started", view.TimeUntilStart)

	grade := 92.0
	rec = f.do(http.MethodPut, path+"/roster/"+f.learnerIDs[0], f.instructor, marchallObj(t, session.GradeLearner{
		Status: session.RosterCompleted,
		Grade:  &grade,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, path+"/statistics", f.instructor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats session.Statistics
	decode(t, rec, &stats)
	assert.Equal(t, session.Statistics{TotalEnrolled: 3, Present: 1, Absent: 2, AttendanceRate: 33.33}, stats)

	rec = f.do(http.MethodDelete, path, f.instructor)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, codedErr{Error: session.ErrMutationAfterStart.Error(), Code: "state"}),
	}, rec)
}

func Test_sessionApi_delete(t *testing.T) {
	f := newSessionFixture(t)
	setClock(t, t0.Add(-time.Hour))
	s := f.schedule(t, t0, nil)
	path := "/v1/sessions/" + s.ID

	tests := []httpTest{
		{name: "learner", token: f.learners[0], wantCode: http.StatusForbidden},
		{name: "other instructor", token: f.otherInstructor, wantCode: http.StatusForbidden},
		{name: "owner", token: f.instructor, wantCode: http.StatusNoContent},
		{name: "gone", token: f.instructor, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodDelete, path, tt.token)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	t.Run("started", func(t *testing.T) {
		started := f.schedule(t, t0, nil)
		setClock(t, t0.Add(time.Minute))

		rec := f.do(http.MethodDelete, "/v1/sessions/"+started.ID, f.admin)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, codedErr{Error: session.ErrMutationAfterStart.Error(), Code: "state"}),
		}, rec)
	})
}

func Test_sessionApi_retrieve(t *testing.T) {
	f := newSessionFixture(t)
	setClock(t, t0.Add(-time.Hour))
	s := f.schedule(t, t0, nil)
	path := "/v1/sessions/" + s.ID

	rec := f.do(http.MethodPost, path+"/enroll", f.learners[0])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(http.MethodPost, path+"/enroll", f.learners[2])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(http.MethodDelete, path+"/enroll", f.learners[2])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	forbidden := marchallObj(t, codedErr{Error: session.ErrForbidden.Error(), Code: "forbidden"})
	tests := []httpTest{
		{name: "Auth required", path: path, wantCode: http.StatusUnauthorized},
		{name: "owner", path: path, token: f.instructor, wantCode: http.StatusOK},
		{name: "admin", path: path, token: f.admin, wantCode: http.StatusOK},
		{name: "rostered learner", path: path, token: f.learners[0], wantCode: http.StatusOK},
		{name: "former learner", path: path, token: f.learners[2], wantCode: http.StatusOK},
		{name: "learner not on the roster", path: path, token: f.learners[1], wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "other instructor", path: path, token: f.otherInstructor, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "events of someone else's session", path: path + "/events", token: f.learners[1], wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "unknown", path: "/v1/sessions/nope", token: f.admin, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, tt.path, tt.token)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_sessionApi_query(t *testing.T) {
	f := newSessionFixture(t)
	setClock(t, t0.Add(-time.Hour))
	first := f.schedule(t, t0, nil)
	second := f.schedule(t, t0.Add(3*time.Hour), nil)
	third := f.schedule(t, t0.AddDate(0, 0, 1), nil)

	rec := f.do(http.MethodPost, "/v1/sessions/"+second.ID+"/enroll", f.learners[0])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ids := func(views []session.View) []string {
		out := make([]string, 0, len(views))
		for _, v := range views {
			out = append(out, v.ID)
		}
		return out
	}

	tests := []struct {
		name      string
		path      string
		token     string
		wantCode  int
		wantIDs   []string
		wantCount int
	}{
		{name: "Auth required", path: "/v1/sessions", wantCode: http.StatusUnauthorized},
		{name: "instructor sees own", path: "/v1/sessions", token: f.instructor, wantIDs: []string{first.ID, second.ID, third.ID}, wantCount: 3},
		{name: "other instructor sees none", path: "/v1/sessions", token: f.otherInstructor, wantIDs: []string{}, wantCount: 0},
		{name: "learner sees rostered", path: "/v1/sessions", token: f.learners[0], wantIDs: []string{second.ID}, wantCount: 1},
		{name: "admin by date", path: "/v1/sessions?date=2030-01-07", token: f.admin, wantIDs: []string{first.ID, second.ID}, wantCount: 2},
		{name: "bad date", path: "/v1/sessions?date=07/01/2030", token: f.admin, wantCode: http.StatusBadRequest},
		{name: "bad status", path: "/v1/sessions?status=archived", token: f.admin, wantCode: http.StatusBadRequest},
		{name: "descending", path: "/v1/sessions?ordering=-start_time", token: f.admin, wantIDs: []string{third.ID, second.ID, first.ID}, wantCount: 3},
		{name: "paged", path: "/v1/sessions?page=2&page_size=2", token: f.admin, wantIDs: []string{third.ID}, wantCount: 3},
		{name: "bad page", path: "/v1/sessions?page=0", token: f.admin, wantCode: http.StatusBadRequest},
		{name: "upcoming", path: "/v1/sessions/upcoming", token: f.instructor, wantIDs: []string{first.ID, second.ID, third.ID}, wantCount: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			rec := f.do(http.MethodGet, tt.path, tt.token)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp pageResponse
			decode(t, rec, &resp)
			assert.Equal(t, tt.wantIDs, ids(resp.Results))
			assert.Equal(t, tt.wantCount, resp.Count)
		})
	}
}
