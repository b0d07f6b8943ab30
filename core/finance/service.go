package finance

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
)

var (
	ErrFeeNotFound    = errors.New("fee not found")
	ErrSalaryNotFound = errors.New("salary not found")
	ErrSalaryExists   = errors.New("a salary already exists for this teacher and period")
)

var (
	payStatusTag  = "paystatus"
	payStatusText = "status must be one of paid, unpaid or partial"

	payModeTag  = "paymode"
	payModeText = "payment mode must be one of cash, card, bank_transfer, online or cheque"
)

// InitValidators registers the payment status and mode validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(payStatusTag, func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, payStatusTag, payStatusText)

	_ = validate.RegisterValidation(payModeTag, func(fl validator.FieldLevel) bool {
		return PaymentMode(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, payModeTag, payModeText)
}

type Repository interface {
	CreateFee(ctx context.Context, tag access.Tag, f Fee) (Fee, error)
	GetFee(ctx context.Context, tag access.Tag, id string) (Fee, error)
	QueryFees(ctx context.Context, tag access.Tag, filter FeeFilter, ordering []core.DBOrdering) ([]Fee, error)
	UpdateFee(ctx context.Context, tag access.Tag, f Fee) (Fee, error)
	DeleteFee(ctx context.Context, tag access.Tag, id string) error

	// CreateSalaries inserts salaries in one transaction; ErrSalaryExists if any (teacher, period) is taken.
	CreateSalaries(ctx context.Context, tag access.Tag, salaries ...Salary) ([]Salary, error)
	GetSalary(ctx context.Context, tag access.Tag, id string) (Salary, error)
	QuerySalaries(ctx context.Context, tag access.Tag, filter SalaryFilter, ordering []core.DBOrdering) ([]Salary, error)
	UpdateSalary(ctx context.Context, tag access.Tag, s Salary) (Salary, error)
	DeleteSalary(ctx context.Context, tag access.Tag, id string) error
}

type Service struct {
	repo     Repository
	students student.Repository
	teachers teacher.Repository
	validate *validator.Validate
	today    func() core.Date // mockable
}

func NewService(repo Repository, students student.Repository, teachers teacher.Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, students: students, teachers: teachers, validate: validate, today: core.TodayDate}
}

// Fees

func (svc *Service) CreateFee(ctx context.Context, nf NewFee) (Fee, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Fee{}, err
	}
	if err = nf.Validate(svc.validate); err != nil {
		return Fee{}, err
	}
	if err = svc.checkStudent(ctx, tag, nf.StudentID); err != nil {
		return Fee{}, err
	}
	now := time.Now().UTC()
	f := Fee{OwnerTag: tag, CreatedAt: now}
	if err = svc.applyFee(&f, nf, now); err != nil {
		return Fee{}, err
	}
	return svc.repo.CreateFee(ctx, tag, f)
}

func (svc *Service) GetFee(ctx context.Context, id string) (Fee, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Fee{}, err
	}
	return svc.repo.GetFee(ctx, tag, id)
}

func (svc *Service) QueryFees(ctx context.Context, filter FeeFilter, ordering []core.DBOrdering) ([]Fee, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, core.NewFieldError("status", payStatusText)
	}
	return svc.repo.QueryFees(ctx, tag, filter, ordering)
}

func (svc *Service) UpdateFee(ctx context.Context, id string, nf NewFee) (Fee, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Fee{}, err
	}
	if err = nf.Validate(svc.validate); err != nil {
		return Fee{}, err
	}
	if err = svc.checkStudent(ctx, tag, nf.StudentID); err != nil {
		return Fee{}, err
	}
	f, err := svc.repo.GetFee(ctx, tag, id)
	if err != nil {
		return Fee{}, err
	}
	if err = svc.applyFee(&f, nf, time.Now().UTC()); err != nil {
		return Fee{}, err
	}
	return svc.repo.UpdateFee(ctx, tag, f)
}

// MarkFeePaid settles the whole fee with mode and stamps today's payment date.
func (svc *Service) MarkFeePaid(ctx context.Context, id string, data MarkPaid) (Fee, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Fee{}, err
	}
	if err = svc.validate.Struct(data); err != nil {
		return Fee{}, err
	}
	f, err := svc.repo.GetFee(ctx, tag, id)
	if err != nil {
		return Fee{}, err
	}
	f.Status = StatusPaid
	f.AmountPaid = f.Amount
	f.PaymentMode = data.PaymentMode
	f.PaymentDate = svc.today()
	f.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateFee(ctx, tag, f)
}

// RecordFeePayment adds a payment to a fee, which becomes partial or paid.
func (svc *Service) RecordFeePayment(ctx context.Context, id string, p Payment) (Fee, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Fee{}, err
	}
	if err = svc.validate.Struct(p); err != nil {
		return Fee{}, err
	}
	if !p.Amount.IsPositive() {
		return Fee{}, core.NewFieldError("amount", "amount must be greater than 0")
	}
	f, err := svc.repo.GetFee(ctx, tag, id)
	if err != nil {
		return Fee{}, err
	}
	if p.Amount.GreaterThan(f.Outstanding()) {
		return Fee{}, core.NewFieldError("amount", "payment exceeds the outstanding amount")
	}
	f.AmountPaid = f.AmountPaid.Add(p.Amount)
	f.Status = StatusPartial
	if f.AmountPaid.Equal(f.Amount) {
		f.Status = StatusPaid
	}
	f.PaymentMode = p.PaymentMode
	f.PaymentDate = svc.today()
	f.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateFee(ctx, tag, f)
}

func (svc *Service) DeleteFee(ctx context.Context, id string) error {
	tag, err := access.Require(ctx)
	if err != nil {
		return err
	}
	return svc.repo.DeleteFee(ctx, tag, id)
}

func (svc *Service) checkStudent(ctx context.Context, tag access.Tag, id string) error {
	if _, err := svc.students.GetStudent(ctx, tag, id); err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return core.NewFieldError("student_id", "student not found")
		}
		return err
	}
	return nil
}

func (svc *Service) applyFee(f *Fee, nf NewFee, now time.Time) error {
	f.StudentID = nf.StudentID
	f.FeeType = nf.FeeType
	f.Amount = nf.Amount
	f.DueDate = nf.DueDate
	f.Status = nf.Status
	f.PaymentMode = nf.PaymentMode
	f.PaymentDate = nf.PaymentDate
	f.Remarks = nf.Remarks
	f.UpdatedAt = now

	switch f.Status {
	case StatusUnpaid:
		f.AmountPaid = decimal.Zero
		f.PaymentMode = ""
		f.PaymentDate = core.Date{}
	case StatusPaid:
		f.AmountPaid = f.Amount
		if f.PaymentDate.IsZero() {
			f.PaymentDate = svc.today()
		}
	case StatusPartial:
		f.AmountPaid = nf.AmountPaid
		if !f.AmountPaid.IsPositive() || !f.AmountPaid.LessThan(f.Amount) {
			return core.NewFieldError("amount_paid", "a partial payment must be between 0 and the amount")
		}
		if f.PaymentDate.IsZero() {
			f.PaymentDate = svc.today()
		}
	}
	return nil
}

// Salaries

func (svc *Service) checkTeacher(ctx context.Context, tag access.Tag, id string) error {
	if _, err := svc.teachers.GetTeacher(ctx, tag, id); err != nil {
		if errors.Cause(err) == teacher.ErrNotFound {
			return core.NewFieldError("teacher_id", "teacher not found")
		}
		return err
	}
	return nil
}

func (svc *Service) CreateSalary(ctx context.Context, ns NewSalary) (Salary, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Salary{}, err
	}
	if err = ns.Validate(svc.validate); err != nil {
		return Salary{}, err
	}
	if err = svc.checkTeacher(ctx, tag, ns.TeacherID); err != nil {
		return Salary{}, err
	}
	now := time.Now().UTC()
	s := Salary{OwnerTag: tag, CreatedAt: now}
	svc.applySalary(&s, ns, now)
	created, err := svc.repo.CreateSalaries(ctx, tag, s)
	if err != nil {
		return Salary{}, svc.trapSalaryExists(err)
	}
	return created[0], nil
}

func (svc *Service) GetSalary(ctx context.Context, id string) (Salary, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Salary{}, err
	}
	return svc.repo.GetSalary(ctx, tag, id)
}

func (svc *Service) QuerySalaries(ctx context.Context, filter SalaryFilter, ordering []core.DBOrdering) ([]Salary, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, core.NewFieldError("status", payStatusText)
	}
	return svc.repo.QuerySalaries(ctx, tag, filter, ordering)
}

func (svc *Service) UpdateSalary(ctx context.Context, id string, ns NewSalary) (Salary, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Salary{}, err
	}
	if err = ns.Validate(svc.validate); err != nil {
		return Salary{}, err
	}
	if err = svc.checkTeacher(ctx, tag, ns.TeacherID); err != nil {
		return Salary{}, err
	}
	s, err := svc.repo.GetSalary(ctx, tag, id)
	if err != nil {
		return Salary{}, err
	}
	svc.applySalary(&s, ns, time.Now().UTC())
	s, err = svc.repo.UpdateSalary(ctx, tag, s)
	if err != nil {
		return Salary{}, svc.trapSalaryExists(err)
	}
	return s, nil
}

func (svc *Service) MarkSalaryPaid(ctx context.Context, id string, data MarkPaid) (Salary, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Salary{}, err
	}
	if err = svc.validate.Struct(data); err != nil {
		return Salary{}, err
	}
	s, err := svc.repo.GetSalary(ctx, tag, id)
	if err != nil {
		return Salary{}, err
	}
	s.Status = StatusPaid
	s.PaymentMode = data.PaymentMode
	s.PaymentDate = svc.today()
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSalary(ctx, tag, s)
}

func (svc *Service) DeleteSalary(ctx context.Context, id string) error {
	tag, err := access.Require(ctx)
	if err != nil {
		return err
	}
	return svc.repo.DeleteSalary(ctx, tag, id)
}

// GeneratePayroll creates an unpaid salary for period, at their base salary, for every teacher
// who has none yet. Teachers without a base salary are skipped.
func (svc *Service) GeneratePayroll(ctx context.Context, data Payroll) ([]Salary, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return nil, err
	}
	if err = svc.validate.Struct(data); err != nil {
		return nil, err
	}

	teachers, err := svc.teachers.QueryTeachers(ctx, tag, teacher.Filter{}, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return nil, err
	}
	existing, err := svc.repo.QuerySalaries(ctx, tag, SalaryFilter{Period: data.Period}, nil)
	if err != nil {
		return nil, err
	}
	paid := make(map[string]bool, len(existing))
	for _, s := range existing {
		paid[s.TeacherID] = true
	}

	now := time.Now().UTC()
	salaries := make([]Salary, 0, len(teachers))
	for _, t := range teachers {
		if paid[t.ID] || !t.BaseSalary.IsPositive() {
			continue
		}
		salaries = append(salaries, Salary{
			TeacherID: t.ID,
			Amount:    t.BaseSalary,
			Period:    data.Period,
			Status:    StatusUnpaid,
			OwnerTag:  tag,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if len(salaries) == 0 {
		return []Salary{}, nil
	}
	created, err := svc.repo.CreateSalaries(ctx, tag, salaries...)
	if err != nil {
		return nil, svc.trapSalaryExists(err)
	}
	return created, nil
}

func (svc *Service) applySalary(s *Salary, ns NewSalary, now time.Time) {
	s.TeacherID = ns.TeacherID
	s.Amount = ns.Amount
	s.Period = ns.Period
	s.Status = ns.Status
	s.PaymentMode = ns.PaymentMode
	s.PaymentDate = ns.PaymentDate
	s.UpdatedAt = now
	if s.Status == StatusUnpaid {
		s.PaymentMode = ""
		s.PaymentDate = core.Date{}
	} else if s.PaymentDate.IsZero() {
		s.PaymentDate = svc.today()
	}
}

func (svc *Service) trapSalaryExists(err error) error {
	if errors.Cause(err) == ErrSalaryExists {
		return core.NewValidationError(ErrSalaryExists, core.FieldError{Field: "period", Error: ErrSalaryExists.Error()})
	}
	return err
}
