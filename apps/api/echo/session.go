package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/session"
	eventsvc "github.com/coachingcentre/platform/services/events"
)

const dateLayout = "2006-01-02"

type sessionApi struct {
	svc      *session.Service
	hub      *eventsvc.Hub
	validate *validator.Validate
}

func registerSessionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *session.Service,
	hub *eventsvc.Hub,
	validate *validator.Validate,
) {
	api := sessionApi{svc: svc, hub: hub, validate: validate}

	sg := g.Group("/sessions", jwt)
	sg.POST("", api.create, staffMiddleware())
	sg.GET("", api.query)
	sg.GET("/upcoming", api.upcoming)

	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update, staffMiddleware())
	dg.DELETE("", api.destroy, staffMiddleware())
	dg.POST("/enroll", api.enroll)
	dg.DELETE("/enroll", api.unenroll)
	dg.PUT("/attendance", api.markAttendance, staffMiddleware())
	dg.PUT("/roster/:learnerId", api.gradeLearner, staffMiddleware())
	dg.PUT("/status", api.updateStatus, staffMiddleware())
	dg.GET("/statistics", api.statistics, staffMiddleware())
	dg.GET("/events", api.events)
}

func viewNow() time.Time { return session.NowFunc().UTC() }

// Handlers

func (api *sessionApi) create(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	sessions, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating sessions")
	}
	return ctx.JSON(http.StatusCreated, session.NewViews(sessions, viewNow()))
}

func (api *sessionApi) query(ctx echo.Context) error {
	filter, page, err := api.bindQuery(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, session.OrderingFields)

	sessions, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	return api.page(ctx, sessions, total, page)
}

func (api *sessionApi) upcoming(ctx echo.Context) error {
	filter, page, err := api.bindQuery(ctx)
	if err != nil {
		return err
	}

	sessions, total, err := api.svc.Upcoming(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying upcoming sessions")
	}
	return api.page(ctx, sessions, total, page)
}

// bindQuery reads the listing filters and scopes them to what the caller may see.
func (api *sessionApi) bindQuery(ctx echo.Context) (session.QueryFilter, core.Page, error) {
	var (
		params SessionQuery
		pg     Pagination
	)
	if err := ctx.Bind(&params); err != nil {
		return session.QueryFilter{}, core.Page{}, errors.Wrap(err, "binding to SessionQuery")
	}
	filter, err := params.Filter(api.validate)
	if err != nil {
		return session.QueryFilter{}, core.Page{}, err
	}
	if err = pg.Bind(ctx); err != nil {
		return session.QueryFilter{}, core.Page{}, err
	}

	actor, err := getContextActor(ctx)
	if err != nil {
		return session.QueryFilter{}, core.Page{}, errors.Wrap(err, "getting context actor")
	}
	switch {
	case actor.IsAdmin:
	case actor.IsInstructor:
		filter.InstructorID = actor.ID
	default:
		filter.LearnerID = actor.ID
	}
	return filter, pg.Page, nil
}

func (api *sessionApi) page(ctx echo.Context, sessions []session.Session, total int, page core.Page) error {
	// echo the page the service actually served
	size := page.Size
	if size < 1 || size < len(sessions) {
		size = len(sessions)
	}
	number := page.Number
	if number < 1 {
		number = 1
	}
	return ctx.JSON(http.StatusOK, PaginatedResponse{
		Results:  session.NewViews(sessions, viewNow()),
		Count:    total,
		Page:     number,
		PageSize: size,
	})
}

// visibleSession loads the :id session, scoped the same way as listings.
func (api *sessionApi) visibleSession(ctx echo.Context) (session.Session, error) {
	actor, err := getContextActor(ctx)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "getting context actor")
	}
	s, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return session.Session{}, errors.Wrap(err, "finding session")
	}
	return s, nil
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	s, err := api.visibleSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, session.NewView(s, viewNow()))
}

func (api *sessionApi) update(ctx echo.Context) error {
	var data session.UpdateSession
	if err := bindStrict(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if data.IsEmpty() {
		return core.NewValidationError(errors.New("nothing to update"))
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	s, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, session.NewView(s, viewNow()))
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) enroll(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	s, err := api.svc.Enroll(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusOK, session.NewView(s, viewNow()))
}

func (api *sessionApi) unenroll(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	s, err := api.svc.Unenroll(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.JSON(http.StatusOK, session.NewView(s, viewNow()))
}

func (api *sessionApi) markAttendance(ctx echo.Context) error {
	var data session.MarkAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkAttendance")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	s, err := api.svc.MarkAttendance(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, session.NewView(s, viewNow()))
}

func (api *sessionApi) gradeLearner(ctx echo.Context) error {
	var data session.GradeLearner
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeLearner")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	s, err := api.svc.GradeLearner(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("learnerId"), data)
	if err != nil {
		return errors.Wrap(err, "grading learner")
	}
	return ctx.JSON(http.StatusOK, session.NewView(s, viewNow()))
}

func (api *sessionApi) updateStatus(ctx echo.Context) error {
	var data session.Transition
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Transition")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	s, err := api.svc.UpdateStatus(ctx.Request().Context(), actor, ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "updating session status")
	}
	return ctx.JSON(http.StatusOK, session.NewView(s, viewNow()))
}

func (api *sessionApi) statistics(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	stats, err := api.svc.Statistics(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing statistics")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// events streams the live events of a session over a websocket.
func (api *sessionApi) events(ctx echo.Context) error {
	s, err := api.visibleSession(ctx)
	if err != nil {
		return err
	}
	if err = api.hub.Serve(ctx.Response(), ctx.Request(), s.ID); err != nil {
		ctx.Logger().Warn(err)
	}
	return nil
}

// SessionQuery holds the listing filters accepted on the query string.
type SessionQuery struct {
	CourseID     string `query:"course_id"`
	InstructorID string `query:"instructor_id"`
	LearnerID    string `query:"learner_id"`
	Date         string `query:"date"`
	Status       string `query:"status" validate:"omitempty,sessionstatus"`
}

func (sq *SessionQuery) Filter(validate *validator.Validate) (session.QueryFilter, error) {
	sq.CourseID = core.CleanString(sq.CourseID)
	sq.InstructorID = core.CleanString(sq.InstructorID)
	sq.LearnerID = core.CleanString(sq.LearnerID)
	sq.Date = core.CleanString(sq.Date)
	if err := validate.Struct(sq); err != nil {
		return session.QueryFilter{}, err
	}

	filter := session.QueryFilter{
		CourseID:     sq.CourseID,
		InstructorID: sq.InstructorID,
		LearnerID:    sq.LearnerID,
		Status:       session.Status(sq.Status),
	}
	if sq.Date != "" {
		date, err := time.Parse(dateLayout, sq.Date)
		if err != nil {
			return session.QueryFilter{}, core.NewValidationError(nil, core.FieldError{Field: "date", Error: "must be formatted as YYYY-MM-DD"})
		}
		filter.Date = date
	}
	return filter, nil
}
