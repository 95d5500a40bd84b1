package course

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/coachingcentre/platform/core"
)

var (
	ErrNotFound           = errors.New("course not found")
	ErrInstructorNotFound = errors.New("instructor not found")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
	}

	// Instructors checks that an instructor of record exists.
	Instructors interface {
		IsInstructor(ctx context.Context, id string) (bool, error)
	}

	Service struct {
		repo        Repository
		instructors Instructors
	}
)

func NewService(repo Repository, instructors Instructors) *Service {
	return &Service{repo: repo, instructors: instructors}
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	ok, err := svc.instructors.IsInstructor(ctx, nc.InstructorID)
	if err != nil {
		return Course{}, pkgerrors.Wrap(err, "checking instructor")
	}
	if !ok {
		return Course{}, core.NewValidationError(nil, core.FieldError{Field: "instructor_id", Error: ErrInstructorNotFound.Error()})
	}

	now := NowFunc().UTC()
	return svc.repo.CreateCourse(ctx, Course{
		Title:        nc.Title,
		Description:  nc.Description,
		InstructorID: nc.InstructorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter, ordering)
}
