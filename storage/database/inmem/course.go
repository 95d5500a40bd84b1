package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = uuid.New().String()
	repo.db.table[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return *c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		if filter != nil {
			if filter.InstructorID != "" && c.InstructorID != filter.InstructorID {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(filter.Search)) {
				continue
			}
		}
		courses = append(courses, *c)
	}

	ord := core.DBOrdering{Field: "created_at", Ascending: true}
	if len(ordering) > 0 {
		ord = ordering[0]
	}
	sort.SliceStable(courses, func(i, j int) bool {
		a, b := courses[i], courses[j]
		if !ord.Ascending {
			a, b = b, a
		}
		if ord.Field == "title" {
			return a.Title < b.Title
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return courses, nil
}
