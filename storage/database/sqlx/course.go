package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/course"
)

type courseRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	InstructorID string    `db:"instructor_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		InstructorID: r.InstructorID,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	c.ID = uuid.New().String()
	row := courseRow{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		InstructorID: c.InstructorID,
		CreatedAt:    c.CreatedAt.UTC(),
		UpdatedAt:    c.UpdatedAt.UTC(),
	}
	q := `INSERT INTO course (id, title, description, instructor_id, created_at, updated_at)
		VALUES (:id, :title, :description, :instructor_id, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.course(), nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	q := repo.db.Rebind(`SELECT * FROM course WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	return row.course(), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Search != "" {
			where = append(where, "LOWER(title) LIKE ?")
			args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		}
		if filter.InstructorID != "" {
			where = append(where, "instructor_id = ?")
			args = append(args, filter.InstructorID)
		}
	}

	q := "SELECT * FROM course"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + orderBy(ordering, course.OrderingFields, "created_at ASC")

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

// orderBy renders a whitelisted ORDER BY clause, with `id` as the final tie-breaker.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, fallback string) string {
	parts := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(parts) == 0 {
		parts = append(parts, fallback)
	}
	return strings.Join(append(parts, "id ASC"), ", ")
}
