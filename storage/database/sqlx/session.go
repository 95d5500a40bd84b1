package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/session"
)

type (
	sessionRow struct {
		ID              string      `db:"id"`
		CourseID        string      `db:"course_id"`
		InstructorID    string      `db:"instructor_id"`
		Title           string      `db:"title"`
		Description     string      `db:"description"`
		StartTime       time.Time   `db:"start_time"`
		EndTime         time.Time   `db:"end_time"`
		Duration        int         `db:"duration"`
		MaxStudents     null.Int    `db:"max_students"`
		CurrentStudents int         `db:"current_students"`
		Status          string      `db:"status"`
		Recurrence      null.String `db:"recurrence"`
		Materials       string      `db:"materials"`
		FormerLearners  string      `db:"former_learners"`
		RecordingURL    string      `db:"recording_url"`
		Notes           string      `db:"notes"`
		Version         int         `db:"version"`
		CreatedAt       time.Time   `db:"created_at"`
		UpdatedAt       time.Time   `db:"updated_at"`
	}

	rosterRow struct {
		SessionID  string       `db:"session_id"`
		LearnerID  string       `db:"learner_id"`
		Position   int          `db:"position"`
		EnrolledAt time.Time    `db:"enrolled_at"`
		Status     string       `db:"status"`
		Grade      null.Float64 `db:"grade"`
		Feedback   null.String  `db:"feedback"`
	}

	attendanceRow struct {
		SessionID string    `db:"session_id"`
		LearnerID string    `db:"learner_id"`
		Position  int       `db:"position"`
		Status    string    `db:"status"`
		JoinedAt  null.Time `db:"joined_at"`
		LeftAt    null.Time `db:"left_at"`
		Notes     string    `db:"notes"`
	}
)

func newSessionRow(s session.Session) (sessionRow, error) {
	row := sessionRow{
		ID:              s.ID,
		CourseID:        s.CourseID,
		InstructorID:    s.InstructorID,
		Title:           s.Title,
		Description:     s.Description,
		StartTime:       s.StartTime.UTC(),
		EndTime:         s.EndTime.UTC(),
		Duration:        s.Duration,
		MaxStudents:     null.IntFromPtr(s.MaxStudents),
		CurrentStudents: s.CurrentStudents,
		Status:          string(s.Status),
		RecordingURL:    s.RecordingURL,
		Notes:           s.Notes,
		Version:         s.Version,
		CreatedAt:       s.CreatedAt.UTC(),
		UpdatedAt:       s.UpdatedAt.UTC(),
	}

	materials, err := json.Marshal(s.Materials)
	if err != nil {
		return row, errors.Wrap(err, "encoding materials")
	}
	row.Materials = string(materials)

	former := s.FormerLearners
	if former == nil {
		former = []string{}
	}
	formerJSON, err := json.Marshal(former)
	if err != nil {
		return row, errors.Wrap(err, "encoding former learners")
	}
	row.FormerLearners = string(formerJSON)

	if s.Recurrence != nil {
		rec, err := json.Marshal(s.Recurrence)
		if err != nil {
			return row, errors.Wrap(err, "encoding recurrence")
		}
		row.Recurrence = null.StringFrom(string(rec))
	}
	return row, nil
}

func (r sessionRow) session() (session.Session, error) {
	s := session.Session{
		ID:              r.ID,
		CourseID:        r.CourseID,
		InstructorID:    r.InstructorID,
		Title:           r.Title,
		Description:     r.Description,
		StartTime:       r.StartTime.UTC(),
		EndTime:         r.EndTime.UTC(),
		Duration:        r.Duration,
		MaxStudents:     r.MaxStudents.Ptr(),
		CurrentStudents: r.CurrentStudents,
		Status:          session.Status(r.Status),
		RecordingURL:    r.RecordingURL,
		Notes:           r.Notes,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		Roster:          []session.RosterEntry{},
		Attendance:      []session.AttendanceEntry{},
	}
	if err := json.Unmarshal([]byte(r.Materials), &s.Materials); err != nil {
		return s, errors.Wrap(err, "decoding materials")
	}
	if s.Materials == nil {
		s.Materials = []session.Material{}
	}
	if r.FormerLearners != "" {
		if err := json.Unmarshal([]byte(r.FormerLearners), &s.FormerLearners); err != nil {
			return s, errors.Wrap(err, "decoding former learners")
		}
	}
	if len(s.FormerLearners) == 0 {
		s.FormerLearners = nil
	}
	if r.Recurrence.Valid {
		s.Recurrence = new(session.Recurrence)
		if err := json.Unmarshal([]byte(r.Recurrence.String), s.Recurrence); err != nil {
			return s, errors.Wrap(err, "decoding recurrence")
		}
	}
	return s, nil
}

func (r rosterRow) entry() session.RosterEntry {
	return session.RosterEntry{
		LearnerID:  r.LearnerID,
		EnrolledAt: r.EnrolledAt.UTC(),
		Status:     session.RosterStatus(r.Status),
		Grade:      r.Grade.Ptr(),
		Feedback:   r.Feedback.String,
	}
}

func (r attendanceRow) entry() session.AttendanceEntry {
	return session.AttendanceEntry{
		LearnerID: r.LearnerID,
		Status:    session.AttendanceStatus(r.Status),
		JoinedAt:  utcPtr(r.JoinedAt),
		LeftAt:    utcPtr(r.LeftAt),
		Notes:     r.Notes,
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func timeOrNull(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

const (
	insertSessionQuery = `INSERT INTO class_session (
			id, course_id, instructor_id, title, description, start_time, end_time, duration, max_students,
			current_students, status, recurrence, materials, former_learners, recording_url, notes, version,
			created_at, updated_at
		) VALUES (
			:id, :course_id, :instructor_id, :title, :description, :start_time, :end_time, :duration, :max_students,
			:current_students, :status, :recurrence, :materials, :former_learners, :recording_url, :notes, :version,
			:created_at, :updated_at
		)`

	updateSessionQuery = `UPDATE class_session SET
			title = :title, description = :description, start_time = :start_time, end_time = :end_time,
			duration = :duration, max_students = :max_students, current_students = :current_students,
			status = :status, materials = :materials, former_learners = :former_learners, recording_url = :recording_url, notes = :notes,
			updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version`

	insertRosterQuery = `INSERT INTO class_session_roster (session_id, learner_id, position, enrolled_at, status, grade, feedback)
		VALUES (:session_id, :learner_id, :position, :enrolled_at, :status, :grade, :feedback)`

	insertAttendanceQuery = `INSERT INTO class_session_attendance (session_id, learner_id, position, status, joined_at, left_at, notes)
		VALUES (:session_id, :learner_id, :position, :status, :joined_at, :left_at, :notes)`
)

func (repo *sessionRepository) CreateSessions(ctx context.Context, sessions []session.Session) ([]session.Session, error) {
	created := make([]session.Session, 0, len(sessions))
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, s := range sessions {
			s.Version = 1
			row, err := newSessionRow(s)
			if err != nil {
				return err
			}
			if _, err = tx.NamedExecContext(ctx, insertSessionQuery, row); err != nil {
				if isUniqueViolation(err) {
					return session.ErrStorageConflict
				}
				return errors.Wrap(err, "inserting session")
			}
			if err = insertChildren(ctx, tx, s); err != nil {
				return err
			}
			created = append(created, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func insertChildren(ctx context.Context, tx *sqlx.Tx, s session.Session) error {
	for i, e := range s.Roster {
		row := rosterRow{
			SessionID:  s.ID,
			LearnerID:  e.LearnerID,
			Position:   i,
			EnrolledAt: e.EnrolledAt.UTC(),
			Status:     string(e.Status),
			Grade:      null.Float64FromPtr(e.Grade),
		}
		if e.Feedback != "" {
			row.Feedback = null.StringFrom(e.Feedback)
		}
		if _, err := tx.NamedExecContext(ctx, insertRosterQuery, row); err != nil {
			return errors.Wrap(err, "inserting roster entry")
		}
	}
	for i, a := range s.Attendance {
		row := attendanceRow{
			SessionID: s.ID,
			LearnerID: a.LearnerID,
			Position:  i,
			Status:    string(a.Status),
			JoinedAt:  timeOrNull(a.JoinedAt),
			LeftAt:    timeOrNull(a.LeftAt),
			Notes:     a.Notes,
		}
		if _, err := tx.NamedExecContext(ctx, insertAttendanceQuery, row); err != nil {
			return errors.Wrap(err, "inserting attendance entry")
		}
	}
	return nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string) (session.Session, error) {
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(`SELECT * FROM class_session WHERE id = ?`), id); err != nil {
		if err == sql.ErrNoRows {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "finding session")
	}
	sessions, err := repo.load(ctx, []sessionRow{row})
	if err != nil {
		return session.Session{}, err
	}
	return sessions[0], nil
}

func (repo *sessionRepository) QuerySessions(
	ctx context.Context,
	filter session.QueryFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]session.Session, int, error) {
	where, args := sessionWhere(filter)

	var total int
	countQuery := repo.db.Rebind("SELECT COUNT(*) FROM class_session" + where)
	if err := repo.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting sessions")
	}

	q := "SELECT * FROM class_session" + where + " ORDER BY " + orderBy(ordering, session.OrderingFields, "start_time ASC")
	if page.Size > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, page.Size, page.Offset())
	}

	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying sessions")
	}
	sessions, err := repo.load(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func sessionWhere(filter session.QueryFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.CourseID != "" {
		conds = append(conds, "course_id = ?")
		args = append(args, filter.CourseID)
	}
	if filter.InstructorID != "" {
		conds = append(conds, "instructor_id = ?")
		args = append(args, filter.InstructorID)
	}
	if filter.LearnerID != "" {
		conds = append(conds, "id IN (SELECT session_id FROM class_session_roster WHERE learner_id = ?)")
		args = append(args, filter.LearnerID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.Date.IsZero() {
		from, to := filter.DayBounds()
		conds = append(conds, "start_time >= ? AND start_time < ?")
		args = append(args, from, to)
	}
	if !filter.UpcomingFrom.IsZero() {
		conds = append(conds, "start_time > ? AND status = ?")
		args = append(args, filter.UpcomingFrom.UTC(), string(session.StatusScheduled))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// load converts rows to sessions and attaches their roster and attendance.
func (repo *sessionRepository) load(ctx context.Context, rows []sessionRow) ([]session.Session, error) {
	sessions := make([]session.Session, 0, len(rows))
	if len(rows) == 0 {
		return sessions, nil
	}

	ids := make([]string, 0, len(rows))
	byID := make(map[string]int, len(rows))
	for _, r := range rows {
		s, err := r.session()
		if err != nil {
			return nil, err
		}
		byID[s.ID] = len(sessions)
		ids = append(ids, s.ID)
		sessions = append(sessions, s)
	}

	q, args, err := sqlx.In(`SELECT * FROM class_session_roster WHERE session_id IN (?) ORDER BY session_id, position`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building roster query")
	}
	var roster []rosterRow
	if err = repo.db.SelectContext(ctx, &roster, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "loading roster")
	}
	for _, r := range roster {
		s := &sessions[byID[r.SessionID]]
		s.Roster = append(s.Roster, r.entry())
	}

	q, args, err = sqlx.In(`SELECT * FROM class_session_attendance WHERE session_id IN (?) ORDER BY session_id, position`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building attendance query")
	}
	var attendance []attendanceRow
	if err = repo.db.SelectContext(ctx, &attendance, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "loading attendance")
	}
	for _, a := range attendance {
		s := &sessions[byID[a.SessionID]]
		s.Attendance = append(s.Attendance, a.entry())
	}
	return sessions, nil
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, s session.Session) (session.Session, error) {
	row, err := newSessionRow(s)
	if err != nil {
		return session.Session{}, err
	}

	err = inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, updateSessionQuery, row)
		if err != nil {
			return errors.Wrap(err, "updating session")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "updating session")
		}
		if n == 0 {
			var found bool
			q := tx.Rebind(`SELECT COUNT(*) > 0 FROM class_session WHERE id = ?`)
			if err = tx.GetContext(ctx, &found, q, s.ID); err != nil {
				return errors.Wrap(err, "checking session")
			}
			if !found {
				return session.ErrNotFound
			}
			return session.ErrStorageConflict
		}

		for _, table := range []string{"class_session_roster", "class_session_attendance"} {
			q := tx.Rebind("DELETE FROM " + table + " WHERE session_id = ?")
			if _, err = tx.ExecContext(ctx, q, s.ID); err != nil {
				return errors.Wrapf(err, "clearing %s", table)
			}
		}
		return insertChildren(ctx, tx, s)
	})
	if err != nil {
		return session.Session{}, err
	}
	s.Version++
	return s, nil
}

func (repo *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM class_session WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}
