package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/aggregate"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/classroom"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/tests"
)

func marks(v float64) *float64 { return &v }

type fixture struct {
	env      *testutil.Env
	ctx      context.Context
	class    classroom.Class
	students []student.Student
	exam     exam.Exam
}

// setup creates class 5A with five students; the first four sat the exam.
func setup(t *testing.T) fixture {
	env := testutil.NewEnv()
	ctx := testutil.Owner("head@test.cd")

	class5A, err := env.ClassSvc.Create(ctx, classroom.NewClass{Name: "5A"})
	require.NoError(t, err)

	var studs []student.Student
	for i, name := range []string{"Amani", "Baraka", "Chiku", "Dalila", "Eshe"} {
		s, err := env.StudentSvc.Create(ctx, student.NewStudent{Name: name, AdmissionNo: string(rune('1' + i)), ClassID: class5A.ID})
		require.NoError(t, err)
		studs = append(studs, s)
	}

	e, err := env.ExamSvc.Create(ctx, exam.NewExam{
		Name:         "Midterm",
		Subject:      "Maths",
		ClassID:      class5A.ID,
		ExamDate:     core.MustDate("2024-03-01"),
		MaxMarks:     100,
		PassingMarks: 40,
	})
	require.NoError(t, err)

	_, err = env.ExamSvc.SaveScores(ctx, e.ID, []exam.ScoreEntry{
		{StudentID: studs[0].ID, Marks: marks(35)},
		{StudentID: studs[1].ID, Marks: marks(40)},
		{StudentID: studs[2].ID, Marks: marks(85)},
		{StudentID: studs[3].ID, Marks: marks(100), Remarks: "top"},
		{StudentID: studs[4].ID},
	})
	require.NoError(t, err)

	return fixture{env: env, ctx: ctx, class: class5A, students: studs, exam: e}
}

func TestService_ExamReport(t *testing.T) {
	fx := setup(t)

	rep, err := fx.env.ReportSvc.ExamReport(fx.ctx, fx.exam.ID)
	require.NoError(t, err)

	assert.Equal(t, aggregate.Summary{
		Count:    4,
		Passed:   3,
		Failed:   1,
		PassRate: 75,
		Average:  65,
		Highest:  100,
		Lowest:   35,
	}, rep.Summary)

	require.Len(t, rep.Rows, 5)
	assert.Equal(t, "Amani", rep.Rows[0].StudentName)
	assert.False(t, rep.Rows[0].Passed)
	assert.Equal(t, "F", rep.Rows[0].Grade)
	assert.True(t, rep.Rows[1].Passed, "passing marks are inclusive")
	assert.Equal(t, "A", rep.Rows[3].Grade)
	assert.Equal(t, "top", rep.Rows[3].Remarks)
	assert.True(t, rep.Rows[4].Absent)
	assert.Nil(t, rep.Rows[4].Marks)

	counts := make(map[string]int)
	for _, b := range rep.Distribution {
		counts[b.Label] = b.Count
	}
	assert.Equal(t, map[string]int{"A": 2, "B": 0, "C": 0, "D": 0, "E": 1, "F": 1}, counts)

	_, err = fx.env.ReportSvc.ExamReport(testutil.Owner("other@test.cd"), fx.exam.ID)
	assert.Equal(t, exam.ErrNotFound, err)
	_, err = fx.env.ReportSvc.ExamReport(context.Background(), fx.exam.ID)
	assert.Equal(t, access.ErrNoOwner, err)
}

func TestService_ExamReport_noScores(t *testing.T) {
	env := testutil.NewEnv()
	ctx := testutil.Owner("head@test.cd")
	e, err := env.ExamSvc.Create(ctx, exam.NewExam{Name: "Quiz", Subject: "Maths", MaxMarks: 10, PassingMarks: 5})
	require.NoError(t, err)

	rep, err := env.ReportSvc.ExamReport(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, rep.Rows)
	assert.Equal(t, aggregate.Summary{}, rep.Summary)
}

func TestWriteExamCSV(t *testing.T) {
	fx := setup(t)
	rep, err := fx.env.ReportSvc.ExamReport(fx.ctx, fx.exam.ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteExamCSV(&buf, rep))
	assert.Equal(t, "exam-midterm-maths.csv", report.ExamCSVName(rep))

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	lines, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"Exam", "Midterm"}, lines[0])
	assert.Equal(t, []string{"Date", "2024-03-01"}, lines[2])
	assert.Equal(t, []string{"1", "Amani", "35", "35", "F", "Fail", ""}, lines[6])
	assert.Equal(t, []string{"4", "Dalila", "100", "100", "A", "Pass", "top"}, lines[9])
	assert.Equal(t, []string{"5", "Eshe", "", "", "", "Absent", ""}, lines[10])
	assert.Equal(t, []string{"Pass rate (%)", "75"}, lines[len(lines)-4])
	assert.Equal(t, []string{"Average", "65"}, lines[len(lines)-3])
}

func TestService_StudentReport(t *testing.T) {
	fx := setup(t)
	amani := fx.students[0]

	e2, err := fx.env.ExamSvc.Create(fx.ctx, exam.NewExam{Name: "Final", Subject: "Maths", ExamDate: core.MustDate("2024-06-01"), MaxMarks: 50, PassingMarks: 20})
	require.NoError(t, err)
	e3, err := fx.env.ExamSvc.Create(fx.ctx, exam.NewExam{Name: "Final", Subject: "Science", ExamDate: core.MustDate("2024-06-02"), MaxMarks: 100, PassingMarks: 40})
	require.NoError(t, err)
	for examID, m := range map[string]float64{e2.ID: 45, e3.ID: 70} {
		_, err = fx.env.ExamSvc.SaveScores(fx.ctx, examID, []exam.ScoreEntry{{StudentID: amani.ID, Marks: marks(m)}})
		require.NoError(t, err)
	}
	_, err = fx.env.AttendanceSvc.Reconcile(fx.ctx, attendance.Sheet{
		Kind:     attendance.KindStudent,
		Date:     core.MustDate("2024-03-01"),
		GroupRef: fx.class.ID,
		Marks:    map[string]attendance.Status{amani.ID: attendance.StatusLate},
	})
	require.NoError(t, err)

	rep, err := fx.env.ReportSvc.StudentReport(fx.ctx, amani.ID)
	require.NoError(t, err)
	assert.Equal(t, "5A", rep.ClassName)
	require.Len(t, rep.Subjects, 2)
	assert.Equal(t, "Maths", rep.Subjects[0].Subject)
	assert.Len(t, rep.Subjects[0].Exams, 2)
	assert.Equal(t, 80.0, rep.Subjects[0].Obtained)
	assert.Equal(t, 150.0, rep.Subjects[0].MaxMarks)
	assert.Equal(t, 53.3, rep.Subjects[0].Percentage)
	assert.Equal(t, "Science", rep.Subjects[1].Subject)
	assert.Equal(t, 150.0, rep.Obtained)
	assert.Equal(t, 250.0, rep.MaxMarks)
	assert.Equal(t, 60.0, rep.Percentage)
	assert.Equal(t, "C", rep.Grade)
	assert.Equal(t, report.AttendanceSummary{Late: 1, Total: 1, Rate: 100}, rep.Attendance)

	_, err = fx.env.ReportSvc.StudentReport(fx.ctx, uuid.NewString())
	assert.Equal(t, student.ErrNotFound, err)
}

func TestService_AttendanceReport(t *testing.T) {
	fx := setup(t)
	studs := fx.students

	for day, sheet := range map[string]map[string]attendance.Status{
		"2024-03-01": {studs[0].ID: attendance.StatusPresent, studs[1].ID: attendance.StatusAbsent},
		"2024-03-02": {studs[0].ID: attendance.StatusLate, studs[1].ID: attendance.StatusPresent},
		"2024-04-01": {studs[0].ID: attendance.StatusAbsent},
	} {
		_, err := fx.env.AttendanceSvc.Reconcile(fx.ctx, attendance.Sheet{Kind: attendance.KindStudent, Date: core.MustDate(day), GroupRef: fx.class.ID, Marks: sheet})
		require.NoError(t, err)
	}

	rep, err := fx.env.ReportSvc.AttendanceReport(fx.ctx, fx.class.ID, core.MustDate("2024-03-01"), core.MustDate("2024-03-31"))
	require.NoError(t, err)
	assert.Equal(t, "5A", rep.ClassName)
	assert.Equal(t, 2, rep.Days)
	assert.Equal(t, report.AttendanceSummary{Present: 2, Absent: 1, Late: 1, Total: 4, Rate: 75}, rep.Overall)
	require.Len(t, rep.Rows, 5)
	assert.Equal(t, report.AttendanceSummary{Present: 1, Late: 1, Total: 2, Rate: 100}, rep.Rows[0].AttendanceSummary)
	assert.Equal(t, report.AttendanceSummary{Present: 1, Absent: 1, Total: 2, Rate: 50}, rep.Rows[1].AttendanceSummary)
	assert.Equal(t, report.AttendanceSummary{}, rep.Rows[2].AttendanceSummary)

	_, err = fx.env.ReportSvc.AttendanceReport(fx.ctx, "", core.Date{}, core.Date{})
	assert.True(t, core.IsValidationError(err))
	_, err = fx.env.ReportSvc.AttendanceReport(fx.ctx, fx.class.ID, core.MustDate("2024-03-31"), core.MustDate("2024-03-01"))
	assert.True(t, core.IsValidationError(err))
}

func TestService_AttendanceReport_deletedStudent(t *testing.T) {
	fx := setup(t)
	studs := fx.students

	_, err := fx.env.AttendanceSvc.Reconcile(fx.ctx, attendance.Sheet{
		Kind:     attendance.KindStudent,
		Date:     core.MustDate("2024-03-01"),
		GroupRef: fx.class.ID,
		Marks:    map[string]attendance.Status{studs[0].ID: attendance.StatusPresent, studs[1].ID: attendance.StatusAbsent},
	})
	require.NoError(t, err)
	require.NoError(t, fx.env.StudentSvc.Delete(fx.ctx, studs[1].ID))

	rep, err := fx.env.ReportSvc.AttendanceReport(fx.ctx, fx.class.ID, core.MustDate("2024-03-01"), core.MustDate("2024-03-31"))
	require.NoError(t, err)
	require.Len(t, rep.Rows, 4)
	assert.Equal(t, report.AttendanceSummary{Present: 1, Total: 1, Rate: 100}, rep.Overall)

	left, err := fx.env.AttendanceSvc.Query(fx.ctx, attendance.Filter{SubjectRef: studs[1].ID})
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestService_FeeReport(t *testing.T) {
	fx := setup(t)
	ctx, svc := fx.ctx, fx.env.FinanceSvc

	newFee := func(studentID string, amount int64, due string) finance.Fee {
		f, err := svc.CreateFee(ctx, finance.NewFee{StudentID: studentID, FeeType: "tuition", Amount: decimal.NewFromInt(amount), DueDate: core.MustDate(due)})
		require.NoError(t, err)
		return f
	}
	f1 := newFee(fx.students[0].ID, 300, "2024-01-10")
	f2 := newFee(fx.students[1].ID, 200, "2024-01-20")
	newFee(fx.students[1].ID, 100, "2024-02-20")
	newFee(fx.students[2].ID, 999, "2025-01-01") // out of range

	_, err := svc.MarkFeePaid(ctx, f1.ID, finance.MarkPaid{PaymentMode: finance.ModeCash})
	require.NoError(t, err)
	_, err = svc.RecordFeePayment(ctx, f2.ID, finance.Payment{Amount: decimal.NewFromInt(50), PaymentMode: finance.ModeCash})
	require.NoError(t, err)

	rep, err := fx.env.ReportSvc.FeeReport(ctx, core.MustDate("2024-01-01"), core.MustDate("2024-12-31"))
	require.NoError(t, err)
	assert.Equal(t, "600", rep.Billed.String())
	assert.Equal(t, "350", rep.Collected.String())
	assert.Equal(t, "250", rep.Outstanding.String())
	assert.Equal(t, 58.3, rep.CollectionRate)
	assert.Equal(t, map[finance.Status]int{finance.StatusPaid: 1, finance.StatusPartial: 1, finance.StatusUnpaid: 1}, rep.ByStatus)
	assert.Equal(t, 2, rep.Overdue)
	require.Len(t, rep.Balances, 1)
	assert.Equal(t, "Baraka", rep.Balances[0].StudentName)
	assert.Equal(t, 2, rep.Balances[0].Fees)
	assert.Equal(t, "250", rep.Balances[0].Outstanding.String())
}

func TestService_SalaryReport(t *testing.T) {
	env := testutil.NewEnv()
	ctx := testutil.Owner("bursar@test.cd")

	for _, nt := range []teacher.NewTeacher{
		{Name: "Juma", BaseSalary: decimal.NewFromInt(900)},
		{Name: "Neema", BaseSalary: decimal.NewFromInt(1200)},
	} {
		_, err := env.TeacherSvc.Create(ctx, nt)
		require.NoError(t, err)
	}
	salaries, err := env.FinanceSvc.GeneratePayroll(ctx, finance.Payroll{Period: "2024-03"})
	require.NoError(t, err)
	require.Len(t, salaries, 2)
	_, err = env.FinanceSvc.MarkSalaryPaid(ctx, salaries[0].ID, finance.MarkPaid{PaymentMode: finance.ModeBankTransfer})
	require.NoError(t, err)

	rep, err := env.ReportSvc.SalaryReport(ctx, "2024-03")
	require.NoError(t, err)
	assert.Len(t, rep.Rows, 2)
	assert.Equal(t, "2100", rep.Total.String())
	assert.Equal(t, "900", rep.Paid.String())
	assert.Equal(t, "1200", rep.Unpaid.String())
	for _, row := range rep.Rows {
		assert.NotEmpty(t, row.TeacherName)
	}

	rep, err = env.ReportSvc.SalaryReport(ctx, "2024-04")
	require.NoError(t, err)
	assert.Empty(t, rep.Rows)
	assert.True(t, rep.Total.IsZero())
}

func TestService_Dashboard(t *testing.T) {
	fx := setup(t)
	today := core.TodayDate()

	_, err := fx.env.AttendanceSvc.Reconcile(fx.ctx, attendance.Sheet{
		Kind:     attendance.KindStudent,
		Date:     today,
		GroupRef: fx.class.ID,
		Marks: map[string]attendance.Status{
			fx.students[0].ID: attendance.StatusPresent,
			fx.students[1].ID: attendance.StatusAbsent,
		},
	})
	require.NoError(t, err)
	_, err = fx.env.FinanceSvc.CreateFee(fx.ctx, finance.NewFee{StudentID: fx.students[0].ID, FeeType: "tuition", Amount: decimal.NewFromInt(120), DueDate: today})
	require.NoError(t, err)

	dash, err := fx.env.ReportSvc.Dashboard(fx.ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, dash.Students)
	assert.Equal(t, 1, dash.Classes)
	assert.Equal(t, 1, dash.Exams)
	assert.Equal(t, 0, dash.Teachers)
	assert.Equal(t, 2, dash.TodayMarked)
	assert.Equal(t, 50.0, dash.TodayAttendanceRate)
	assert.Equal(t, 1, dash.PendingFees)
	assert.Equal(t, "120", dash.PendingAmount.String())

	// nothing leaks to another owner
	dash, err = fx.env.ReportSvc.Dashboard(testutil.Owner("other@test.cd"))
	require.NoError(t, err)
	assert.Equal(t, report.Dashboard{PendingAmount: decimal.Zero}, dash)
}
