package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/classroom"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/objstore"
	"github.com/trezcool/shule/tests"
)

const testPwd = "Sh0le!Kubwa"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func TestMain(m *testing.M) {
	conf := core.NewTestConfig()
	core.ParseEmailTemplates(testutil.NewLogger(), conf.Server.FrontendBaseURL, true)
	os.Exit(m.Run())
}

type httpErr struct {
	Error string `json:"error"`
}

type testApp struct {
	t     *testing.T
	srv   *Server
	env   *testutil.Env
	store *objstore.LocalStore
}

func newTestApp(t *testing.T) *testApp {
	env := testutil.NewEnv()
	store := objstore.NewLocalStore(t.TempDir(), env.Conf.Storage.PublicBaseURL)
	srv := NewServer(&Deps{
		Conf:          env.Conf,
		Logger:        env.Logger,
		Validate:      env.Validate,
		Translator:    env.Translator,
		Store:         store,
		UserSvc:       env.UserSvc,
		ClassSvc:      env.ClassSvc,
		StudentSvc:    env.StudentSvc,
		TeacherSvc:    env.TeacherSvc,
		ExamSvc:       env.ExamSvc,
		AttendanceSvc: env.AttendanceSvc,
		FinanceSvc:    env.FinanceSvc,
		ReportSvc:     env.ReportSvc,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testApp{t: t, srv: srv, env: env, store: store}
}

// login creates an active user and returns a token for them.
func (app *testApp) login(email string) string {
	usr := testutil.CreateUser(app.t, app.env.UserRepo, "User", email, testPwd, true)
	return app.token(usr)
}

func (app *testApp) token(usr user.User) string {
	token, err := GenerateToken(app.env.Conf, GetUserClaims(app.env.Conf, usr))
	require.NoError(app.t, err)
	return token
}

// newClass creates a class through the API and returns its ID.
func (app *testApp) newClass(token, name string) string {
	var c classroom.Class
	decode(app.t, app.do(http.MethodPost, "/v1/classes", token, classroom.NewClass{Name: name}), http.StatusCreated, &c)
	return c.ID
}

// newStudent creates a student through the API and returns their ID.
func (app *testApp) newStudent(token, name, classID string) string {
	var s student.Student
	decode(app.t, app.do(http.MethodPost, "/v1/students", token, student.NewStudent{Name: name, ClassID: classID}), http.StatusCreated, &s)
	return s.ID
}

func (app *testApp) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(app.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return app.send(req, token)
}

func (app *testApp) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.srv.ServeHTTP(rec, req)
	return rec
}

// decode checks the status code and unmarshals the body into dst.
func decode(t *testing.T, rec *httptest.ResponseRecorder, wantCode int, dst interface{}) {
	t.Helper()
	require.Equal(t, wantCode, rec.Code, rec.Body.String())
	if dst != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
	}
}
