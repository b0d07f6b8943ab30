package classroom

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
)

var ErrNotFound = errors.New("class not found")

// Class is a group of students; student attendance is taken per class.
type Class struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Section        string     `json:"section"`
	ClassTeacherID string     `json:"class_teacher_id"`
	RoomNumber     string     `json:"room_number"`
	Capacity       int        `json:"capacity"`
	OwnerTag       access.Tag `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (c Class) Owner() access.Tag { return c.OwnerTag }

// NewClass is the payload used to create or replace a Class.
type NewClass struct {
	Name           string `json:"name" validate:"required,notblank"`
	Section        string `json:"section"`
	ClassTeacherID string `json:"class_teacher_id" validate:"omitempty,uuid"`
	RoomNumber     string `json:"room_number"`
	Capacity       int    `json:"capacity" validate:"gte=0"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Section = core.CleanString(nc.Section)
	nc.RoomNumber = core.CleanString(nc.RoomNumber)
	nc.ClassTeacherID = core.CleanString(nc.ClassTeacherID)
	return validate.Struct(nc)
}

type Filter struct {
	Search         string
	ClassTeacherID string
}

type Repository interface {
	CreateClass(ctx context.Context, tag access.Tag, c Class) (Class, error)
	GetClass(ctx context.Context, tag access.Tag, id string) (Class, error)
	QueryClasses(ctx context.Context, tag access.Tag, filter Filter, ordering []core.DBOrdering) ([]Class, error)
	UpdateClass(ctx context.Context, tag access.Tag, c Class) (Class, error)
	DeleteClass(ctx context.Context, tag access.Tag, id string) error
}

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, nc NewClass) (Class, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Class{}, err
	}
	if err = nc.Validate(svc.validate); err != nil {
		return Class{}, err
	}
	now := time.Now().UTC()
	c := Class{
		Name:           nc.Name,
		Section:        nc.Section,
		ClassTeacherID: nc.ClassTeacherID,
		RoomNumber:     nc.RoomNumber,
		Capacity:       nc.Capacity,
		OwnerTag:       tag,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateClass(ctx, tag, c)
}

func (svc *Service) Get(ctx context.Context, id string) (Class, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Class{}, err
	}
	return svc.repo.GetClass(ctx, tag, id)
}

func (svc *Service) Query(ctx context.Context, filter Filter, ordering []core.DBOrdering) ([]Class, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryClasses(ctx, tag, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, nc NewClass) (Class, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Class{}, err
	}
	if err = nc.Validate(svc.validate); err != nil {
		return Class{}, err
	}
	c, err := svc.repo.GetClass(ctx, tag, id)
	if err != nil {
		return Class{}, err
	}
	c.Name = nc.Name
	c.Section = nc.Section
	c.ClassTeacherID = nc.ClassTeacherID
	c.RoomNumber = nc.RoomNumber
	c.Capacity = nc.Capacity
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClass(ctx, tag, c)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	tag, err := access.Require(ctx)
	if err != nil {
		return err
	}
	return svc.repo.DeleteClass(ctx, tag, id)
}
