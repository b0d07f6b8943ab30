package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/classroom"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/inflight"
	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
)

// Deps holds everything the handlers need.
type Deps struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Store      core.ObjectStore

	UserSvc       user.ServiceInterface
	ClassSvc      *classroom.Service
	StudentSvc    *student.Service
	TeacherSvc    *teacher.Service
	ExamSvc       *exam.Service
	AttendanceSvc *attendance.Service
	FinanceSvc    *finance.Service
	ReportSvc     *report.Service
}

type Server struct {
	*http.Server
	app      *echo.Echo
	deps     *Deps
	guard    *inflight.Guard
	shutdown chan os.Signal
	errors   chan error
}

func NewServer(deps *Deps) *Server {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	s := &Server{
		app:      echo.New(),
		deps:     deps,
		guard:    inflight.NewGuard(),
		shutdown: shutdown,
		errors:   make(chan error, 1),
	}
	s.Server = &http.Server{
		Addr:    deps.Conf.Server.Host,
		Handler: s.app,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if conf.Server.FrontendBaseURL != "" {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{conf.Server.FrontendBaseURL},
		}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	if local, ok := s.deps.Store.(interface{ Dir() string }); ok {
		s.app.Static("/media", local.Dir())
	}

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(conf))
	authed := []echo.MiddlewareFunc{jwt, ownerMiddleware}

	registerAuthAPI(v1, authed, s.deps)
	registerRosterAPI(v1.Group("", authed...), s.deps)
	registerExamAPI(v1.Group("/exams", authed...), s.deps, s.guard)
	registerAttendanceAPI(v1.Group("/attendance", authed...), s.deps, s.guard)
	registerFinanceAPI(v1.Group("", authed...), s.deps, s.guard)
	registerReportAPI(v1.Group("/reports", authed...), s.deps)
}

// Start listens until the server is shut down; errors are sent to Errors().
func (s *Server) Start() {
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.Server.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Shule API!")
}

type SuccessResponse struct {
	Success string `json:"success"`
}
