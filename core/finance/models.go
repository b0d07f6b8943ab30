package finance

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
)

type (
	Status      string
	PaymentMode string
)

const (
	StatusPaid    Status = "paid"
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"

	ModeCash         PaymentMode = "cash"
	ModeCard         PaymentMode = "card"
	ModeBankTransfer PaymentMode = "bank_transfer"
	ModeOnline       PaymentMode = "online"
	ModeCheque       PaymentMode = "cheque"
)

var (
	Statuses     = []Status{StatusPaid, StatusUnpaid, StatusPartial}
	PaymentModes = []PaymentMode{ModeCash, ModeCard, ModeBankTransfer, ModeOnline, ModeCheque}
)

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (m PaymentMode) Valid() bool {
	for _, pm := range PaymentModes {
		if m == pm {
			return true
		}
	}
	return false
}

// Fee is an amount billed to a student.
type Fee struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"student_id"`
	FeeType     string          `json:"fee_type"`
	Amount      decimal.Decimal `json:"amount"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	DueDate     core.Date       `json:"due_date"`
	Status      Status          `json:"status"`
	PaymentMode PaymentMode     `json:"payment_mode"`
	PaymentDate core.Date       `json:"payment_date"`
	Remarks     string          `json:"remarks"`
	OwnerTag    access.Tag      `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (f Fee) Owner() access.Tag { return f.OwnerTag }

// Outstanding is what is left to pay on the fee.
func (f Fee) Outstanding() decimal.Decimal {
	if f.Status == StatusPaid {
		return decimal.Zero
	}
	if out := f.Amount.Sub(f.AmountPaid); out.IsPositive() {
		return out
	}
	return decimal.Zero
}

// Overdue reports whether the fee is not fully paid past its due date.
func (f Fee) Overdue(today core.Date) bool {
	return f.Status != StatusPaid && !f.DueDate.IsZero() && f.DueDate.Before(today)
}

// Salary is a teacher's pay for a month. There is at most one per (teacher, period).
type Salary struct {
	ID          string          `json:"id"`
	TeacherID   string          `json:"teacher_id"`
	Amount      decimal.Decimal `json:"amount"`
	Period      string          `json:"period"` // YYYY-MM
	Status      Status          `json:"status"`
	PaymentMode PaymentMode     `json:"payment_mode"`
	PaymentDate core.Date       `json:"payment_date"`
	OwnerTag    access.Tag      `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (s Salary) Owner() access.Tag { return s.OwnerTag }

// NewFee is the payload used to create or replace a Fee.
type NewFee struct {
	StudentID   string          `json:"student_id" validate:"required,uuid"`
	FeeType     string          `json:"fee_type" validate:"required,notblank"`
	Amount      decimal.Decimal `json:"amount"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	DueDate     core.Date       `json:"due_date"`
	Status      Status          `json:"status" validate:"omitempty,paystatus"`
	PaymentMode PaymentMode     `json:"payment_mode" validate:"omitempty,paymode"`
	PaymentDate core.Date       `json:"payment_date"`
	Remarks     string          `json:"remarks"`
}

func (nf *NewFee) Validate(validate *validator.Validate) error {
	nf.StudentID = core.CleanString(nf.StudentID)
	nf.FeeType = core.CleanString(nf.FeeType)
	nf.Remarks = core.CleanString(nf.Remarks)
	if nf.Status == "" {
		nf.Status = StatusUnpaid
	}
	if err := validate.Struct(nf); err != nil {
		return err
	}
	if nf.DueDate.IsZero() {
		return core.NewFieldError("due_date", "this field is required")
	}
	if !nf.Amount.IsPositive() {
		return core.NewFieldError("amount", "amount must be greater than 0")
	}
	return nil
}

// NewSalary is the payload used to create or replace a Salary.
type NewSalary struct {
	TeacherID   string          `json:"teacher_id" validate:"required,uuid"`
	Amount      decimal.Decimal `json:"amount"`
	Period      string          `json:"period" validate:"required,period"`
	Status      Status          `json:"status" validate:"omitempty,paystatus"`
	PaymentMode PaymentMode     `json:"payment_mode" validate:"omitempty,paymode"`
	PaymentDate core.Date       `json:"payment_date"`
}

func (ns *NewSalary) Validate(validate *validator.Validate) error {
	ns.TeacherID = core.CleanString(ns.TeacherID)
	ns.Period = core.CleanString(ns.Period)
	if ns.Status == "" {
		ns.Status = StatusUnpaid
	}
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if !ns.Amount.IsPositive() {
		return core.NewFieldError("amount", "amount must be greater than 0")
	}
	if ns.Status == StatusPartial {
		return core.NewFieldError("status", "salaries are paid in full")
	}
	return nil
}

// Payment records money received against a fee.
type Payment struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentMode PaymentMode     `json:"payment_mode" validate:"required,paymode"`
}

// MarkPaid is the payload of the "mark as paid" action.
type MarkPaid struct {
	PaymentMode PaymentMode `json:"payment_mode" validate:"required,paymode"`
}

type Payroll struct {
	Period string `json:"period" validate:"required,period"`
}

type FeeFilter struct {
	StudentID string
	Status    Status
	FeeType   string
	From      core.Date // due date
	To        core.Date
}

func (f FeeFilter) Match(fee Fee) bool {
	switch {
	case f.StudentID != "" && fee.StudentID != f.StudentID,
		f.Status != "" && fee.Status != f.Status,
		f.FeeType != "" && fee.FeeType != f.FeeType,
		!f.From.IsZero() && fee.DueDate.Before(f.From),
		!f.To.IsZero() && fee.DueDate.After(f.To):
		return false
	}
	return true
}

type SalaryFilter struct {
	TeacherID string
	Period    string
	Status    Status
}

func (f SalaryFilter) Match(s Salary) bool {
	switch {
	case f.TeacherID != "" && s.TeacherID != f.TeacherID,
		f.Period != "" && s.Period != f.Period,
		f.Status != "" && s.Status != f.Status:
		return false
	}
	return true
}
