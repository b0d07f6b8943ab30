package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/classroom"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

// NewLogger returns a logger that prints nothing and never reports.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.NewTestConfig())
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	finance.InitValidators(validate, translator)
	return validate, translator
}

// Owner returns a context acting on behalf of email.
func Owner(email string) context.Context {
	return access.WithOwner(context.Background(), access.NewTag(email))
}

// ResetLink returns the uid and token sent in a password reset mail.
func ResetLink(msg core.EmailMessage) (uid, token string) {
	data, _ := msg.TemplateData.(map[string]interface{})
	uid, _ = data["UID"].(string)
	token, _ = data["Token"].(string)
	return uid, token
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// Env wires every service over one in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	DB         *inmemdb.DB
	Mail       *emailsvc.ConsoleService

	UserRepo user.Repository

	UserSvc       *user.Service
	ClassSvc      *classroom.Service
	StudentSvc    *student.Service
	TeacherSvc    *teacher.Service
	ExamSvc       *exam.Service
	AttendanceSvc *attendance.Service
	FinanceSvc    *finance.Service
	ReportSvc     *report.Service
}

func NewEnv() *Env {
	conf := core.NewTestConfig()
	logger := NewLogger()
	validate, translator := NewValidator()
	db := inmemdb.Open()
	mail := emailsvc.NewConsoleServiceMock(logger, conf)

	usrRepo := inmemdb.NewUserRepository(db)
	classRepo := inmemdb.NewClassRepository(db)
	studRepo := inmemdb.NewStudentRepository(db)
	teachRepo := inmemdb.NewTeacherRepository(db)
	examRepo := inmemdb.NewExamRepository(db)
	attRepo := inmemdb.NewAttendanceRepository(db)
	finRepo := inmemdb.NewFinanceRepository(db)

	return &Env{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		DB:            db,
		Mail:          mail,
		UserRepo:      usrRepo,
		UserSvc:       user.NewServiceMock(usrRepo, mail, conf),
		ClassSvc:      classroom.NewService(classRepo, validate),
		StudentSvc:    student.NewService(studRepo, validate),
		TeacherSvc:    teacher.NewService(teachRepo, validate),
		ExamSvc:       exam.NewService(examRepo, studRepo, validate),
		AttendanceSvc: attendance.NewService(attRepo, classRepo, studRepo, teachRepo, validate),
		FinanceSvc:    finance.NewService(finRepo, studRepo, teachRepo, validate),
		ReportSvc:     report.NewService(studRepo, teachRepo, classRepo, examRepo, attRepo, finRepo),
	}
}
