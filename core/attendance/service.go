package attendance

import (
	"context"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/classroom"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
)

var (
	ErrNotFound       = errors.New("attendance record not found")
	ErrUnknownSubject = errors.New("unknown student or teacher")
)

var (
	attStatusTag  = "attstatus"
	attStatusText = "status must be one of present, absent or late"
)

// InitValidators registers the attendance status validator.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(attStatusTag, func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, attStatusTag, attStatusText)
}

type Repository interface {
	// ReplaceForKey makes the stored records of key exactly equal to records, in one transaction:
	// listed subjects are inserted or updated, unlisted ones are deleted.
	ReplaceForKey(ctx context.Context, tag access.Tag, key Key, records []Record) error
	ForKey(ctx context.Context, tag access.Tag, key Key) ([]Record, error)
	QueryRecords(ctx context.Context, tag access.Tag, filter Filter) ([]Record, error)
	DeleteRecord(ctx context.Context, tag access.Tag, id string) error
}

type Service struct {
	repo     Repository
	classes  classroom.Repository
	students student.Repository
	teachers teacher.Repository
	validate *validator.Validate
}

func NewService(
	repo Repository,
	classes classroom.Repository,
	students student.Repository,
	teachers teacher.Repository,
	validate *validator.Validate,
) *Service {
	return &Service{repo: repo, classes: classes, students: students, teachers: teachers, validate: validate}
}

// Reconcile replaces the attendance sheet of the key with the marks of sh and returns the
// sheet as stored afterwards. An empty sheet is rejected rather than wiping the key.
func (svc *Service) Reconcile(ctx context.Context, sh Sheet) ([]Record, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	if err = svc.validateSheet(&sh); err != nil {
		return nil, err
	}
	if err = svc.checkSubjects(ctx, tag, sh); err != nil {
		return nil, err
	}

	key := sh.Key()
	now := time.Now().UTC()
	records := make([]Record, 0, len(sh.Marks))
	for subject, status := range sh.Marks {
		records = append(records, Record{
			Kind:       key.Kind,
			SubjectRef: subject,
			GroupRef:   key.GroupRef,
			Date:       key.Date,
			Status:     status,
			OwnerTag:   tag,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if err = svc.repo.ReplaceForKey(ctx, tag, key, records); err != nil {
		return nil, err
	}
	return svc.repo.ForKey(ctx, tag, key)
}

func (svc *Service) validateSheet(sh *Sheet) error {
	sh.GroupRef = core.CleanString(sh.GroupRef)
	if err := svc.validate.Struct(sh); err != nil {
		return err
	}
	if sh.Date.IsZero() {
		return core.NewFieldError("date", "this field is required")
	}
	switch sh.Kind {
	case KindStudent:
		if sh.GroupRef == "" {
			return core.NewFieldError("group_ref", "a class is required for student attendance")
		}
	case KindTeacher:
		if sh.GroupRef != "" {
			return core.NewFieldError("group_ref", "teacher attendance is not taken per class")
		}
	}
	if len(sh.Marks) == 0 {
		return core.ErrEmptyEntry
	}
	return nil
}

// checkSubjects rejects a sheet whose class is not the owner's, or which marks someone who is
// not a student of that class (or, for teacher sheets, not one of the owner's teachers).
func (svc *Service) checkSubjects(ctx context.Context, tag access.Tag, sh Sheet) error {
	known := make(map[string]bool)
	msg := "teacher not found"
	switch sh.Kind {
	case KindStudent:
		if _, err := svc.classes.GetClass(ctx, tag, sh.GroupRef); err != nil {
			if errors.Cause(err) == classroom.ErrNotFound {
				return core.NewFieldError("group_ref", "class not found")
			}
			return err
		}
		students, err := svc.students.QueryStudents(ctx, tag, student.Filter{ClassID: sh.GroupRef}, nil)
		if err != nil {
			return err
		}
		for _, s := range students {
			known[s.ID] = true
		}
		msg = "student is not in this class"
	case KindTeacher:
		teachers, err := svc.teachers.QueryTeachers(ctx, tag, teacher.Filter{}, nil)
		if err != nil {
			return err
		}
		for _, t := range teachers {
			known[t.ID] = true
		}
	}

	var unknown []core.FieldError
	for subject := range sh.Marks {
		if !known[subject] {
			unknown = append(unknown, core.FieldError{Field: subject, Error: msg})
		}
	}
	if len(unknown) > 0 {
		sort.Slice(unknown, func(i, j int) bool { return unknown[i].Field < unknown[j].Field })
		return core.NewValidationError(ErrUnknownSubject, unknown...)
	}
	return nil
}

// ForKey returns the stored sheet of key.
func (svc *Service) ForKey(ctx context.Context, key Key) ([]Record, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	return svc.repo.ForKey(ctx, tag, key)
}

func (svc *Service) Query(ctx context.Context, filter Filter) ([]Record, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, core.NewFieldError("status", attStatusText)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, core.NewFieldError("to", "end date cannot be before start date")
	}
	return svc.repo.QueryRecords(ctx, tag, filter)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	tag, err := access.Require(ctx)
	if err != nil {
		return err
	}
	return svc.repo.DeleteRecord(ctx, tag, id)
}
