package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
)

var ErrNotFound = errors.New("student not found")

type Student struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	AdmissionNo  string     `json:"admission_no"`
	ClassID      string     `json:"class_id"`
	Gender       string     `json:"gender"`
	DateOfBirth  core.Date  `json:"date_of_birth"`
	GuardianName string     `json:"guardian_name"`
	Phone        string     `json:"phone"`
	Email        string     `json:"email"`
	Address      string     `json:"address"`
	PhotoURL     string     `json:"photo_url"`
	OwnerTag     access.Tag `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (s Student) Owner() access.Tag { return s.OwnerTag }

// NewStudent is the payload used to create or replace a Student.
type NewStudent struct {
	Name         string    `json:"name" validate:"required,notblank"`
	AdmissionNo  string    `json:"admission_no"`
	ClassID      string    `json:"class_id" validate:"omitempty,uuid"`
	Gender       string    `json:"gender" validate:"omitempty,oneof=male female other"`
	DateOfBirth  core.Date `json:"date_of_birth"`
	GuardianName string    `json:"guardian_name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email" validate:"omitempty,email"`
	Address      string    `json:"address"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.AdmissionNo = core.CleanString(ns.AdmissionNo)
	ns.ClassID = core.CleanString(ns.ClassID)
	ns.Gender = core.CleanString(ns.Gender, true /* lower */)
	ns.GuardianName = core.CleanString(ns.GuardianName)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Address = core.CleanString(ns.Address)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.DateOfBirth.After(core.TodayDate()) {
		return core.NewFieldError("date_of_birth", "date of birth cannot be in the future")
	}
	return nil
}

type Filter struct {
	ClassID string
	Search  string // name, admission number or guardian
}

type Repository interface {
	CreateStudent(ctx context.Context, tag access.Tag, s Student) (Student, error)
	GetStudent(ctx context.Context, tag access.Tag, id string) (Student, error)
	QueryStudents(ctx context.Context, tag access.Tag, filter Filter, ordering []core.DBOrdering) ([]Student, error)
	UpdateStudent(ctx context.Context, tag access.Tag, s Student) (Student, error)
	DeleteStudent(ctx context.Context, tag access.Tag, id string) error
}

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Student{}, err
	}
	if err = ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	now := time.Now().UTC()
	s := Student{OwnerTag: tag, CreatedAt: now}
	apply(&s, ns, now)
	return svc.repo.CreateStudent(ctx, tag, s)
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Student{}, err
	}
	return svc.repo.GetStudent(ctx, tag, id)
}

func (svc *Service) Query(ctx context.Context, filter Filter, ordering []core.DBOrdering) ([]Student, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryStudents(ctx, tag, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, ns NewStudent) (Student, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Student{}, err
	}
	if err = ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	s, err := svc.repo.GetStudent(ctx, tag, id)
	if err != nil {
		return Student{}, err
	}
	apply(&s, ns, time.Now().UTC())
	return svc.repo.UpdateStudent(ctx, tag, s)
}

// SetPhoto stores the public URL of the student's normalised photo.
func (svc *Service) SetPhoto(ctx context.Context, id, url string) (Student, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Student{}, err
	}
	s, err := svc.repo.GetStudent(ctx, tag, id)
	if err != nil {
		return Student{}, err
	}
	s.PhotoURL = url
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, tag, s)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	tag, err := access.Require(ctx)
	if err != nil {
		return err
	}
	return svc.repo.DeleteStudent(ctx, tag, id)
}

func apply(s *Student, ns NewStudent, now time.Time) {
	s.Name = ns.Name
	s.AdmissionNo = ns.AdmissionNo
	s.ClassID = ns.ClassID
	s.Gender = ns.Gender
	s.DateOfBirth = ns.DateOfBirth
	s.GuardianName = ns.GuardianName
	s.Phone = ns.Phone
	s.Email = ns.Email
	s.Address = ns.Address
	s.UpdatedAt = now
}
