package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/coachingcentre/platform/apps/api/echo"
	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/course"
	"github.com/coachingcentre/platform/core/session"
	"github.com/coachingcentre/platform/core/user"
	emailsvc "github.com/coachingcentre/platform/services/email"
	eventsvc "github.com/coachingcentre/platform/services/events"
	"github.com/coachingcentre/platform/storage/database/sqlboiler"
	"github.com/coachingcentre/platform/storage/database/sqlx"
	"github.com/coachingcentre/platform/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	app     *echoapi.Server
	conf    *core.Config
	usrRepo user.Repository
	crsSvc  *course.Service
	hub     *eventsvc.Hub
}

func newConfig() *core.Config {
	return &core.Config{
		AppName:   "Coaching Centre",
		TestMode:  true,
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			DisableReqLogs:            true,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Sessions: core.SessionsConfig{
			MaxRecurrences:  52,
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
	}
}

func setup(t *testing.T) *env {
	conf := newConfig()
	logger := testutil.Logger{T: t}

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	session.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	// set up DB & repos
	db := testutil.OpenDB(t)
	usrRepo := boiledrepos.NewUserRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo)
	crsSvc := course.NewService(sqlxrepos.NewCourseRepository(db), usrSvc)
	hub := eventsvc.NewHub(logger)
	sessSvc := session.NewService(sqlxrepos.NewSessionRepository(db), crsSvc, usrSvc, mailSvc, hub, logger, conf)

	// set up server
	app := echoapi.NewServer(echoapi.Deps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		UserSvc:    usrSvc,
		CourseSvc:  crsSvc,
		SessionSvc: sessSvc,
		Hub:        hub,
	})
	return &env{app: app, conf: conf, usrRepo: usrRepo, crsSvc: crsSvc, hub: hub}
}

func (e *env) createCourse(t *testing.T, instructor user.User) course.Course {
	crs, err := e.crsSvc.Create(context.Background(), course.NewCourse{Title: "Maths", InstructorID: instructor.ID})
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return crs
}

func (e *env) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(e.conf, echoapi.UserClaims(e.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// do serves a request and returns the recorder.
func (e *env) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	e.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type codedErr struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}
