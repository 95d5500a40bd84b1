package session

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/user"
)

const (
	enrollmentConfirmedTmpl = "enrollment_confirmed"
	sessionCancelledTmpl    = "session_cancelled"
	sessionPostponedTmpl    = "session_postponed"
)

var subjects = map[string]string{
	enrollmentConfirmedTmpl: "You are enrolled in %q",
	sessionCancelledTmpl:    "%q has been cancelled",
	sessionPostponedTmpl:    "%q has been postponed",
}

type notificationData struct {
	LearnerName string
	Title       string
	StartTime   string
	Duration    int
	SessionID   string
}

func (svc *Service) newMessage(tmpl string, s Session, learner user.User) *core.EmailMessage {
	name := learner.Name
	if name == "" {
		name = learner.Username
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: learner.Email}},
		Subject:      fmt.Sprintf(subjects[tmpl], s.Title),
		TemplateName: tmpl,
		TemplateData: notificationData{
			LearnerName: name,
			Title:       s.Title,
			StartTime:   s.StartTime.Format("Mon, 02 Jan 2006 15:04 MST"),
			Duration:    s.Duration,
			SessionID:   s.ID,
		},
	}
}

// notify emails a single learner. Sending is fire-and-forget.
func (svc *Service) notify(tmpl string, s Session, learner user.User) {
	if svc.mailSvc == nil || learner.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(svc.newMessage(tmpl, s, learner))
}

// notifyRoster emails every learner on the roster.
func (svc *Service) notifyRoster(ctx context.Context, tmpl string, s Session) {
	if svc.mailSvc == nil {
		return
	}
	msgs := make([]*core.EmailMessage, 0, len(s.Roster))
	for _, e := range s.Roster {
		learner, err := svc.learners.Lookup(ctx, e.LearnerID)
		if err != nil {
			if svc.logger != nil && errors.Cause(err) != user.ErrNotFound {
				svc.logger.Error(fmt.Sprintf("session.notifyRoster(%s): %v", s.ID, err), err)
			}
			continue
		}
		if learner.Email != "" {
			msgs = append(msgs, svc.newMessage(tmpl, s, learner))
		}
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}
