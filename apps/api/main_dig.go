package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	dig_container "github.com/coachingcentre/platform/apps/api/di/dig"
	echoapi "github.com/coachingcentre/platform/apps/api/echo"
	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/session"
	"github.com/coachingcentre/platform/core/user"
)

type app struct {
	conf     *core.Config
	logger   core.Logger
	dbLogger core.Logger
	db       *sqlx.DB
	server   *echoapi.Server
}

func startWithDig() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		db *sqlx.DB,
		validate *validator.Validate,
		translator ut.Translator,
		server *echoapi.Server,
	) {
		a := app{conf: conf, logger: apiLogger, dbLogger: dbLoggerParam.Logger, db: db, server: server}
		a.setup(validate, translator)
		defer a.close()

		a.serveDebug()
		go server.Start()
		a.waitForShutdown()
	}))
}

// setup registers validators and email templates before any request is served.
func (a app) setup(validate *validator.Validate, translator ut.Translator) {
	a.logger.Info(fmt.Sprintf("Application initializing : version %q, db %s", a.conf.Build, a.conf.Database.Engine))

	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	session.InitValidators(validate, translator)

	core.ParseEmailTemplates(a.conf, a.logger)
}

func (a app) close() {
	if err := a.db.Close(); err != nil {
		a.dbLogger.Fatal("Failed to close", err)
	}
	a.logger.Info("Application stopped")
}

// serveDebug exposes /debug/pprof and /debug/vars on the debug host.
func (a app) serveDebug() {
	expvar.NewString("build").Set(a.conf.Build)
	expvar.NewString("env").Set(a.conf.Env)
	expvar.NewString("db_engine").Set(a.conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(a.conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			a.logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}

// waitForShutdown blocks until the server fails or a shutdown signal arrives,
// then gives in-flight requests ShutdownTimeout to complete.
func (a app) waitForShutdown() {
	select {
	case err := <-a.server.Errors():
		a.logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-a.server.ShutdownSignal():
		a.logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		ctx, cancel := context.WithTimeout(context.Background(), a.conf.Server.ShutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			if err = a.server.Close(); err != nil {
				a.logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
