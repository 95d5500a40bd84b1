package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/coachingcentre/platform/core"
)

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	InstructorID string    `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=5000"`
	InstructorID string `json:"instructor_id"` // admins only; defaults to the caller
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.InstructorID = core.CleanString(nc.InstructorID)
	return validate.Struct(nc)
}

type QueryFilter struct {
	Search       string `query:"search"`
	InstructorID string `query:"instructor_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.InstructorID = core.CleanString(qf.InstructorID)
}

var OrderingFields = map[string]string{
	"title":      "title",
	"created_at": "created_at",
}
