package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/coachingcentre/platform/apps/api/echo"
	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/course"
	"github.com/coachingcentre/platform/core/session"
	"github.com/coachingcentre/platform/core/user"
	emailsvc "github.com/coachingcentre/platform/services/email"
	eventsvc "github.com/coachingcentre/platform/services/events"
	logsvc "github.com/coachingcentre/platform/services/logger"
	"github.com/coachingcentre/platform/storage/database"
	boiledrepos "github.com/coachingcentre/platform/storage/database/sqlboiler"
	sqlxrepos "github.com/coachingcentre/platform/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, conf.Database.Engine); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newUserServiceInterface(svc *user.Service) user.ServiceInterface { return svc }

func newCourseService(repo course.Repository, usrSvc *user.Service) *course.Service {
	return course.NewService(repo, usrSvc)
}

func newSessionService(
	repo session.Repository,
	crsSvc *course.Service,
	usrSvc *user.Service,
	mailSvc core.EmailService,
	hub *eventsvc.Hub,
	logger core.Logger,
	conf *core.Config,
) *session.Service {
	return session.NewService(repo, crsSvc, usrSvc, mailSvc, hub, logger, conf)
}

type ServerParam struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    user.ServiceInterface
	CourseSvc  *course.Service
	SessionSvc *session.Service
	Hub        *eventsvc.Hub
}

func newServer(p ServerParam) *echoapi.Server {
	return echoapi.NewServer(echoapi.Deps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		UserSvc:    p.UserSvc,
		CourseSvc:  p.CourseSvc,
		SessionSvc: p.SessionSvc,
		Hub:        p.Hub,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(boiledrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewCourseRepository, dig.As(new(course.Repository))))
	must(c.Provide(sqlxrepos.NewSessionRepository, dig.As(new(session.Repository))))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(newUserServiceInterface))
	must(c.Provide(newCourseService))
	must(c.Provide(eventsvc.NewHub))
	must(c.Provide(newSessionService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
