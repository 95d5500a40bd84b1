package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/course"
	"github.com/coachingcentre/platform/core/user"
)

type (
	// Repository persists sessions. UpdateSession must only succeed when the stored
	// version still equals the version of the given session, and fail with
	// ErrStorageConflict otherwise.
	Repository interface {
		// CreateSessions stores a batch atomically.
		CreateSessions(ctx context.Context, sessions []Session) ([]Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		// QuerySessions returns one page of matching sessions along with the total match count.
		QuerySessions(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Session, int, error)
		UpdateSession(ctx context.Context, s Session) (Session, error)
		DeleteSession(ctx context.Context, id string) error
	}

	Courses interface {
		GetByID(ctx context.Context, id string) (course.Course, error)
	}

	Learners interface {
		Lookup(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo        Repository
		courses     Courses
		learners    Learners
		mailSvc     core.EmailService
		events      EventPublisher
		logger      core.Logger
		transitions TransitionTable
		conf        core.SessionsConfig
	}
)

func NewService(
	repo Repository,
	courses Courses,
	learners Learners,
	mailSvc core.EmailService,
	events EventPublisher,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:        repo,
		courses:     courses,
		learners:    learners,
		mailSvc:     mailSvc,
		events:      events,
		logger:      logger,
		transitions: TransitionsFor(conf.Sessions.StrictTransitions),
		conf:        conf.Sessions,
	}
}

func now() time.Time { return NowFunc().UTC() }

// Create schedules a session, plus its siblings when a recurrence is given.
// The first returned session is the one described by `ns`.
func (svc *Service) Create(ctx context.Context, actor Actor, ns NewSession) ([]Session, error) {
	if !(actor.IsAdmin || actor.IsInstructor) {
		return nil, ErrForbidden
	}
	if err := checkTimeRange(ns.StartTime, ns.EndTime); err != nil {
		return nil, err
	}

	crs, err := svc.courses.GetByID(ctx, ns.CourseID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return nil, ErrCourseNotFound
		}
		return nil, errors.Wrap(err, "finding course")
	}

	instructorID := crs.InstructorID
	if actor.IsAdmin {
		if ns.InstructorID != "" && ns.InstructorID != crs.InstructorID {
			if instructorID, err = svc.resolveInstructor(ctx, ns.InstructorID); err != nil {
				return nil, err
			}
		}
	} else if actor.ID != crs.InstructorID {
		return nil, ErrForbidden
	}

	tstamp := now()
	base := Session{
		CourseID:     crs.ID,
		InstructorID: instructorID,
		Title:        ns.Title,
		Description:  ns.Description,
		StartTime:    ns.StartTime.UTC(),
		EndTime:      ns.EndTime.UTC(),
		MaxStudents:  ns.MaxStudents,
		Status:       StatusScheduled,
		Recurrence:   ns.Recurrence,
		Materials:    ns.Materials,
		Version:      1,
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	}

	starts := []time.Time{base.StartTime}
	if ns.Recurrence != nil {
		starts = ns.Recurrence.Occurrences(base.StartTime, svc.conf.MaxRecurrences)
	}
	length := base.EndTime.Sub(base.StartTime)

	batch := make([]Session, 0, len(starts))
	for _, start := range starts {
		s := base.Clone()
		s.ID = uuid.New().String()
		s.StartTime = start
		s.EndTime = start.Add(length)
		s.Normalize()
		batch = append(batch, s)
	}

	created, err := svc.repo.CreateSessions(ctx, batch)
	if err != nil {
		return nil, errors.Wrap(err, "creating sessions")
	}
	for _, s := range created {
		svc.publish(EventCreated, s, "")
	}
	return created, nil
}

func (svc *Service) resolveInstructor(ctx context.Context, id string) (string, error) {
	usr, err := svc.learners.Lookup(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return "", ErrInstructorNotFound
		}
		return "", errors.Wrap(err, "finding instructor")
	}
	if !usr.IsInstructor() {
		return "", ErrNotAnInstructor
	}
	return usr.ID, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

// Get returns the session if `actor` may see it. See Actor.CanView.
func (svc *Service) Get(ctx context.Context, actor Actor, id string) (Session, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !actor.CanView(s) {
		return Session{}, ErrForbidden
	}
	return s, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Session, int, error) {
	if len(ordering) == 0 {
		ordering = DefaultOrdering
	}
	return svc.repo.QuerySessions(ctx, filter, ordering, svc.cleanPage(page))
}

// Upcoming lists the scheduled sessions that have not started yet, soonest first.
func (svc *Service) Upcoming(ctx context.Context, filter QueryFilter, page core.Page) ([]Session, int, error) {
	filter.UpcomingFrom = now()
	return svc.repo.QuerySessions(ctx, filter, DefaultOrdering, svc.cleanPage(page))
}

func (svc *Service) cleanPage(page core.Page) core.Page {
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Size < 1 {
		page.Size = svc.conf.DefaultPageSize
	}
	if svc.conf.MaxPageSize > 0 && page.Size > svc.conf.MaxPageSize {
		page.Size = svc.conf.MaxPageSize
	}
	return page
}

// mutate loads a session, applies `fn` and saves it with a version check.
// A concurrent write surfaces as ErrStorageConflict.
func (svc *Service) mutate(ctx context.Context, id string, fn func(s *Session, now time.Time) error) (Session, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}

	tstamp := now()
	if err := fn(&s, tstamp); err != nil {
		return Session{}, err
	}
	s.Normalize()
	if err := s.CheckInvariants(); err != nil {
		return Session{}, err
	}
	s.UpdatedAt = tstamp

	updated, err := svc.repo.UpdateSession(ctx, s)
	if err != nil {
		return Session{}, err
	}
	return updated, nil
}

func (svc *Service) Update(ctx context.Context, actor Actor, id string, us UpdateSession) (Session, error) {
	s, err := svc.mutate(ctx, id, func(s *Session, now time.Time) error {
		if !actor.CanManage(*s) {
			return ErrForbidden
		}
		return s.ApplyUpdate(us, now)
	})
	if err != nil {
		return Session{}, err
	}
	svc.publish(EventUpdated, s, "")
	return s, nil
}

func (svc *Service) Delete(ctx context.Context, actor Actor, id string) error {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanManage(s) {
		return ErrForbidden
	}
	if !s.IsDeletable(now()) {
		return ErrMutationAfterStart
	}
	if err := svc.repo.DeleteSession(ctx, id); err != nil {
		return err
	}
	svc.publish(EventDeleted, s, "")
	return nil
}

// Enroll adds the acting learner to the session roster.
func (svc *Service) Enroll(ctx context.Context, actor Actor, id string) (Session, error) {
	learner, err := svc.learners.Lookup(ctx, actor.ID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Session{}, ErrLearnerNotFound
		}
		return Session{}, errors.Wrap(err, "finding learner")
	}
	if !learner.IsLearner() {
		return Session{}, ErrForbidden
	}

	s, err := svc.mutate(ctx, id, func(s *Session, now time.Time) error {
		return s.Enroll(learner.ID, now)
	})
	if err != nil {
		return Session{}, err
	}
	svc.publish(EventEnrolled, s, learner.ID)
	svc.notify(enrollmentConfirmedTmpl, s, learner)
	return s, nil
}

// Unenroll removes the acting learner from the session roster.
func (svc *Service) Unenroll(ctx context.Context, actor Actor, id string) (Session, error) {
	s, err := svc.mutate(ctx, id, func(s *Session, now time.Time) error {
		return s.Unenroll(actor.ID, now)
	})
	if err != nil {
		return Session{}, err
	}
	svc.publish(EventUnenrolled, s, actor.ID)
	return s, nil
}

func (svc *Service) MarkAttendance(ctx context.Context, actor Actor, id string, ma MarkAttendance) (Session, error) {
	s, err := svc.mutate(ctx, id, func(s *Session, now time.Time) error {
		if !actor.CanManage(*s) {
			return ErrForbidden
		}
		if !s.HasParticipated(ma.LearnerID) {
			return ErrNotEnrolled
		}
		s.MarkAttendance(ma, now)
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	svc.publish(EventAttendance, s, ma.LearnerID)
	return s, nil
}

func (svc *Service) GradeLearner(ctx context.Context, actor Actor, id, learnerID string, gl GradeLearner) (Session, error) {
	s, err := svc.mutate(ctx, id, func(s *Session, _ time.Time) error {
		if !actor.CanManage(*s) {
			return ErrForbidden
		}
		return s.Grade(learnerID, gl)
	})
	if err != nil {
		return Session{}, err
	}
	svc.publish(EventUpdated, s, learnerID)
	return s, nil
}

// UpdateStatus moves the session through its lifecycle.
// Learners are notified when the session gets cancelled or postponed.
func (svc *Service) UpdateStatus(ctx context.Context, actor Actor, id string, to Status) (Session, error) {
	var from Status
	s, err := svc.mutate(ctx, id, func(s *Session, _ time.Time) error {
		if !actor.CanManage(*s) {
			return ErrForbidden
		}
		from = s.Status
		return s.Transition(to, svc.transitions)
	})
	if err != nil {
		return Session{}, err
	}

	svc.publish(EventStatusChanged, s, "")
	if from != to {
		switch to {
		case StatusCancelled:
			svc.notifyRoster(ctx, sessionCancelledTmpl, s)
		case StatusPostponed:
			svc.notifyRoster(ctx, sessionPostponedTmpl, s)
		}
	}
	return s, nil
}

func (svc *Service) Statistics(ctx context.Context, actor Actor, id string) (Statistics, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Statistics{}, err
	}
	if !actor.CanManage(s) {
		return Statistics{}, ErrForbidden
	}
	return s.Statistics(), nil
}
