package finance_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/tests"
)

func newStudent(t *testing.T, env *testutil.Env, ctx context.Context, name string) student.Student {
	s, err := env.StudentSvc.Create(ctx, student.NewStudent{Name: name})
	require.NoError(t, err)
	return s
}

func TestService_CreateFee(t *testing.T) {
	env := testutil.NewEnv()
	ctx := testutil.Owner("bursar@test.cd")
	studentID := newStudent(t, env, ctx, "Amani").ID
	rivalID := newStudent(t, env, testutil.Owner("rival@test.cd"), "Zuri").ID
	due := core.MustDate("2024-04-01")

	tests := []struct {
		name           string
		nf             finance.NewFee
		wantErr        bool
		wantPaid       string
		wantStatus     finance.Status
		wantPaymentDay bool
	}{
		{name: "no amount", nf: finance.NewFee{StudentID: studentID, FeeType: "tuition", DueDate: due}, wantErr: true},
		{name: "made-up student", nf: finance.NewFee{StudentID: uuid.NewString(), FeeType: "tuition", Amount: decimal.NewFromInt(100), DueDate: due}, wantErr: true},
		{name: "other owner's student", nf: finance.NewFee{StudentID: rivalID, FeeType: "tuition", Amount: decimal.NewFromInt(100), DueDate: due}, wantErr: true},
		{name: "no due date", nf: finance.NewFee{StudentID: studentID, FeeType: "tuition", Amount: decimal.NewFromInt(100)}, wantErr: true},
		{name: "bad status", nf: finance.NewFee{StudentID: studentID, FeeType: "tuition", Amount: decimal.NewFromInt(100), DueDate: due, Status: "lol"}, wantErr: true},
		{name: "bad mode", nf: finance.NewFee{StudentID: studentID, FeeType: "tuition", Amount: decimal.NewFromInt(100), DueDate: due, PaymentMode: "barter"}, wantErr: true},
		{
			name:    "partial above amount",
			nf:      finance.NewFee{StudentID: studentID, FeeType: "tuition", Amount: decimal.NewFromInt(100), AmountPaid: decimal.NewFromInt(100), DueDate: due, Status: finance.StatusPartial},
			wantErr: true,
		},
		{
			name:       "unpaid by default",
			nf:         finance.NewFee{StudentID: studentID, FeeType: "tuition", Amount: decimal.NewFromInt(100), AmountPaid: decimal.NewFromInt(30), DueDate: due, PaymentMode: finance.ModeCash},
			wantPaid:   "0",
			wantStatus: finance.StatusUnpaid,
		},
		{
			name:           "paid",
			nf:             finance.NewFee{StudentID: studentID, FeeType: "tuition", Amount: decimal.NewFromInt(100), DueDate: due, Status: finance.StatusPaid, PaymentMode: finance.ModeCard},
			wantPaid:       "100",
			wantStatus:     finance.StatusPaid,
			wantPaymentDay: true,
		},
		{
			name:           "partial",
			nf:             finance.NewFee{StudentID: studentID, FeeType: "tuition", Amount: decimal.NewFromInt(100), AmountPaid: decimal.NewFromInt(40), DueDate: due, Status: finance.StatusPartial, PaymentMode: finance.ModeCash},
			wantPaid:       "40",
			wantStatus:     finance.StatusPartial,
			wantPaymentDay: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := env.FinanceSvc.CreateFee(ctx, tt.nf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPaid, f.AmountPaid.String())
			assert.Equal(t, tt.wantStatus, f.Status)
			assert.Equal(t, tt.wantPaymentDay, !f.PaymentDate.IsZero())
		})
	}
}

func TestService_RecordFeePayment(t *testing.T) {
	env := testutil.NewEnv()
	ctx := testutil.Owner("bursar@test.cd")

	f, err := env.FinanceSvc.CreateFee(ctx, finance.NewFee{
		StudentID: newStudent(t, env, ctx, "Amani").ID,
		FeeType:   "tuition",
		Amount:    decimal.NewFromInt(300),
		DueDate:   core.MustDate("2024-04-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "300", f.Outstanding().String())

	pay := func(amount int64) (finance.Fee, error) {
		return env.FinanceSvc.RecordFeePayment(ctx, f.ID, finance.Payment{Amount: decimal.NewFromInt(amount), PaymentMode: finance.ModeCash})
	}

	_, err = pay(0)
	assert.True(t, core.IsValidationError(err))
	_, err = pay(301)
	assert.True(t, core.IsValidationError(err))
	_, err = env.FinanceSvc.RecordFeePayment(ctx, f.ID, finance.Payment{Amount: decimal.NewFromInt(10)})
	assert.Error(t, err, "payment mode is required")

	f, err = pay(100)
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPartial, f.Status)
	assert.Equal(t, "200", f.Outstanding().String())
	assert.Equal(t, core.TodayDate(), f.PaymentDate)

	f, err = pay(200)
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPaid, f.Status)
	assert.True(t, f.Outstanding().IsZero())

	_, err = pay(1)
	assert.True(t, core.IsValidationError(err), "nothing left to pay")

	_, err = env.FinanceSvc.RecordFeePayment(testutil.Owner("head@test.cd"), f.ID, finance.Payment{Amount: decimal.NewFromInt(1), PaymentMode: finance.ModeCash})
	assert.Equal(t, finance.ErrFeeNotFound, errors.Cause(err))
}

func TestService_MarkFeePaid(t *testing.T) {
	env := testutil.NewEnv()
	ctx := testutil.Owner("bursar@test.cd")

	f, err := env.FinanceSvc.CreateFee(ctx, finance.NewFee{
		StudentID: newStudent(t, env, ctx, "Baraka").ID,
		FeeType:   "transport",
		Amount:    decimal.RequireFromString("49.99"),
		DueDate:   core.MustDate("2024-01-01"),
	})
	require.NoError(t, err)
	assert.True(t, f.Overdue(core.MustDate("2024-01-02")))

	_, err = env.FinanceSvc.MarkFeePaid(ctx, f.ID, finance.MarkPaid{})
	assert.Error(t, err)

	f, err = env.FinanceSvc.MarkFeePaid(ctx, f.ID, finance.MarkPaid{PaymentMode: finance.ModeOnline})
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPaid, f.Status)
	assert.Equal(t, "49.99", f.AmountPaid.String())
	assert.Equal(t, finance.ModeOnline, f.PaymentMode)
	assert.False(t, f.Overdue(core.MustDate("2024-01-02")))

	// back to unpaid clears the payment
	f, err = env.FinanceSvc.UpdateFee(ctx, f.ID, finance.NewFee{
		StudentID: f.StudentID,
		FeeType:   f.FeeType,
		Amount:    f.Amount,
		DueDate:   f.DueDate,
		Status:    finance.StatusUnpaid,
	})
	require.NoError(t, err)
	assert.True(t, f.AmountPaid.IsZero())
	assert.Equal(t, finance.PaymentMode(""), f.PaymentMode)
	assert.True(t, f.PaymentDate.IsZero())
}

func TestService_GeneratePayroll(t *testing.T) {
	env := testutil.NewEnv()
	ctx := testutil.Owner("bursar@test.cd")

	var teachers []teacher.Teacher
	for _, nt := range []teacher.NewTeacher{
		{Name: "Juma", BaseSalary: decimal.NewFromInt(900)},
		{Name: "Neema", BaseSalary: decimal.NewFromInt(1200)},
		{Name: "Volunteer"},
	} {
		tchr, err := env.TeacherSvc.Create(ctx, nt)
		require.NoError(t, err)
		teachers = append(teachers, tchr)
	}

	_, err := env.FinanceSvc.GeneratePayroll(ctx, finance.Payroll{Period: "2024-13"})
	assert.Error(t, err)

	// a salary already exists for Juma
	_, err = env.FinanceSvc.CreateSalary(ctx, finance.NewSalary{TeacherID: teachers[0].ID, Amount: decimal.NewFromInt(950), Period: "2024-03"})
	require.NoError(t, err)

	created, err := env.FinanceSvc.GeneratePayroll(ctx, finance.Payroll{Period: "2024-03"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, teachers[1].ID, created[0].TeacherID)
	assert.Equal(t, "1200", created[0].Amount.String())
	assert.Equal(t, finance.StatusUnpaid, created[0].Status)

	// nothing left to generate
	created, err = env.FinanceSvc.GeneratePayroll(ctx, finance.Payroll{Period: "2024-03"})
	require.NoError(t, err)
	assert.Empty(t, created)

	salaries, err := env.FinanceSvc.QuerySalaries(ctx, finance.SalaryFilter{Period: "2024-03"}, nil)
	require.NoError(t, err)
	assert.Len(t, salaries, 2)
}

func TestService_Salary(t *testing.T) {
	env := testutil.NewEnv()
	ctx := testutil.Owner("bursar@test.cd")
	juma, err := env.TeacherSvc.Create(ctx, teacher.NewTeacher{Name: "Juma"})
	require.NoError(t, err)
	teacherID := juma.ID

	_, err = env.FinanceSvc.CreateSalary(ctx, finance.NewSalary{TeacherID: uuid.NewString(), Amount: decimal.NewFromInt(900), Period: "2024-03"})
	assert.True(t, core.IsValidationError(err), "made-up teacher")

	_, err = env.FinanceSvc.CreateSalary(ctx, finance.NewSalary{TeacherID: teacherID, Amount: decimal.NewFromInt(900), Period: "2024-03", Status: finance.StatusPartial})
	assert.True(t, core.IsValidationError(err), "salaries are paid in full")

	s, err := env.FinanceSvc.CreateSalary(ctx, finance.NewSalary{TeacherID: teacherID, Amount: decimal.NewFromInt(900), Period: "2024-03"})
	require.NoError(t, err)

	_, err = env.FinanceSvc.CreateSalary(ctx, finance.NewSalary{TeacherID: teacherID, Amount: decimal.NewFromInt(900), Period: "2024-03"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, finance.ErrSalaryExists))

	// another owner cannot pay this owner's teacher
	_, err = env.FinanceSvc.CreateSalary(testutil.Owner("head@test.cd"), finance.NewSalary{TeacherID: teacherID, Amount: decimal.NewFromInt(900), Period: "2024-03"})
	require.Error(t, err)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "teacher_id", verr.Fields[0].Field)

	s, err = env.FinanceSvc.MarkSalaryPaid(ctx, s.ID, finance.MarkPaid{PaymentMode: finance.ModeBankTransfer})
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPaid, s.Status)
	assert.Equal(t, core.TodayDate(), s.PaymentDate)

	require.NoError(t, env.FinanceSvc.DeleteSalary(ctx, s.ID))
	_, err = env.FinanceSvc.GetSalary(ctx, s.ID)
	assert.Equal(t, finance.ErrSalaryNotFound, errors.Cause(err))
}
