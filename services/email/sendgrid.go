package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/coachingcentre/platform/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"

	maxSendAttempts = 3
)

// sendgridAPI is swapped in tests.
var sendgridAPI = sendgrid.API

type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	retryDelay time.Duration
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	return &sendgridService{
		key:        conf.SendgridApiKey,
		from:       sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		retryDelay: time.Second,
		logger:     logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.TemplateName, err), err)
				return
			}
			if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
				return
			}
			if err := svc.send(*msg); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email %q: %v", msg.Subject, err), err)
			}
		}()
	}
}

// prepare builds the v3 payload. Emails rendered from a template are tagged with its name as category.
func (svc sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	p.AddTos(toSGEmails(msg.To)...)
	p.AddCCs(toSGEmails(msg.Cc)...)
	p.AddBCCs(toSGEmails(msg.Bcc)...)

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}

	for _, at := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     at.Content.String(),
			Type:        at.ContentType,
			Filename:    at.Filename,
			Disposition: "attachment",
		})
	}
	return m
}

func toSGEmails(addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, 0, len(addrs))
	for _, a := range addrs {
		emails = append(emails, sgmail.NewEmail(a.Name, a.Address))
	}
	return emails
}

// send posts `msg`, retrying on rate limiting and server errors.
func (svc sendgridService) send(msg core.EmailMessage) error {
	body := sgmail.GetRequestBody(svc.prepare(msg))

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		req := sendgrid.GetRequest(svc.key, sendgridEndpoint, sendgridHost)
		req.Method = http.MethodPost
		req.Body = body

		res, err := sendgridAPI(req)
		switch {
		case err != nil:
			lastErr = errors.Wrap(err, "calling sendgrid")
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
			lastErr = errors.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
		case res.StatusCode >= http.StatusBadRequest:
			return errors.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
		default:
			return nil
		}
		if attempt < maxSendAttempts {
			time.Sleep(time.Duration(attempt) * svc.retryDelay)
		}
	}
	return lastErr
}
