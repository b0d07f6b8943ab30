package teacher

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
)

var ErrNotFound = errors.New("teacher not found")

type Teacher struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	Subject       string          `json:"subject"`
	Qualification string          `json:"qualification"`
	JoiningDate   core.Date       `json:"joining_date"`
	BaseSalary    decimal.Decimal `json:"base_salary"`
	PhotoURL      string          `json:"photo_url"`
	OwnerTag      access.Tag      `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (t Teacher) Owner() access.Tag { return t.OwnerTag }

// NewTeacher is the payload used to create or replace a Teacher.
type NewTeacher struct {
	Name          string          `json:"name" validate:"required,notblank"`
	Email         string          `json:"email" validate:"omitempty,email"`
	Phone         string          `json:"phone"`
	Subject       string          `json:"subject"`
	Qualification string          `json:"qualification"`
	JoiningDate   core.Date       `json:"joining_date"`
	BaseSalary    decimal.Decimal `json:"base_salary"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Phone = core.CleanString(nt.Phone)
	nt.Subject = core.CleanString(nt.Subject)
	nt.Qualification = core.CleanString(nt.Qualification)
	if err := validate.Struct(nt); err != nil {
		return err
	}
	if nt.BaseSalary.IsNegative() {
		return core.NewFieldError("base_salary", "base salary cannot be negative")
	}
	return nil
}

type Filter struct {
	Search  string // name, email or subject
	Subject string
}

type Repository interface {
	CreateTeacher(ctx context.Context, tag access.Tag, t Teacher) (Teacher, error)
	GetTeacher(ctx context.Context, tag access.Tag, id string) (Teacher, error)
	QueryTeachers(ctx context.Context, tag access.Tag, filter Filter, ordering []core.DBOrdering) ([]Teacher, error)
	UpdateTeacher(ctx context.Context, tag access.Tag, t Teacher) (Teacher, error)
	DeleteTeacher(ctx context.Context, tag access.Tag, id string) error
}

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, nt NewTeacher) (Teacher, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Teacher{}, err
	}
	if err = nt.Validate(svc.validate); err != nil {
		return Teacher{}, err
	}
	now := time.Now().UTC()
	t := Teacher{OwnerTag: tag, CreatedAt: now}
	apply(&t, nt, now)
	return svc.repo.CreateTeacher(ctx, tag, t)
}

func (svc *Service) Get(ctx context.Context, id string) (Teacher, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Teacher{}, err
	}
	return svc.repo.GetTeacher(ctx, tag, id)
}

func (svc *Service) Query(ctx context.Context, filter Filter, ordering []core.DBOrdering) ([]Teacher, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryTeachers(ctx, tag, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, nt NewTeacher) (Teacher, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Teacher{}, err
	}
	if err = nt.Validate(svc.validate); err != nil {
		return Teacher{}, err
	}
	t, err := svc.repo.GetTeacher(ctx, tag, id)
	if err != nil {
		return Teacher{}, err
	}
	apply(&t, nt, time.Now().UTC())
	return svc.repo.UpdateTeacher(ctx, tag, t)
}

func (svc *Service) SetPhoto(ctx context.Context, id, url string) (Teacher, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Teacher{}, err
	}
	t, err := svc.repo.GetTeacher(ctx, tag, id)
	if err != nil {
		return Teacher{}, err
	}
	t.PhotoURL = url
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTeacher(ctx, tag, t)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	tag, err := access.Require(ctx)
	if err != nil {
		return err
	}
	return svc.repo.DeleteTeacher(ctx, tag, id)
}

func apply(t *Teacher, nt NewTeacher, now time.Time) {
	t.Name = nt.Name
	t.Email = nt.Email
	t.Phone = nt.Phone
	t.Subject = nt.Subject
	t.Qualification = nt.Qualification
	t.JoiningDate = nt.JoiningDate
	t.BaseSalary = nt.BaseSalary
	t.UpdatedAt = now
}
