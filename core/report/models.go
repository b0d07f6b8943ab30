package report

import (
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/aggregate"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/student"
)

type (
	ExamRow struct {
		StudentID   string   `json:"student_id"`
		StudentName string   `json:"student_name"`
		AdmissionNo string   `json:"admission_no"`
		Absent      bool     `json:"absent"`
		Marks       *float64 `json:"marks"`
		Percentage  *float64 `json:"percentage"`
		Passed      bool     `json:"passed"`
		Grade       string   `json:"grade"`
		Remarks     string   `json:"remarks"`
	}

	ExamReport struct {
		Exam         exam.Exam          `json:"exam"`
		Rows         []ExamRow          `json:"rows"`
		Summary      aggregate.Summary  `json:"summary"`
		Distribution []aggregate.Bucket `json:"distribution"`
	}

	StudentExamRow struct {
		ExamID     string    `json:"exam_id"`
		ExamName   string    `json:"exam_name"`
		ExamDate   core.Date `json:"exam_date"`
		Marks      float64   `json:"marks"`
		MaxMarks   float64   `json:"max_marks"`
		Percentage float64   `json:"percentage"`
		Passed     bool      `json:"passed"`
		Grade      string    `json:"grade"`
	}

	SubjectResult struct {
		Subject    string           `json:"subject"`
		Exams      []StudentExamRow `json:"exams"`
		Obtained   float64          `json:"obtained"`
		MaxMarks   float64          `json:"max_marks"`
		Percentage float64          `json:"percentage"`
		Grade      string           `json:"grade"`
	}

	AttendanceSummary struct {
		Present int     `json:"present"`
		Absent  int     `json:"absent"`
		Late    int     `json:"late"`
		Total   int     `json:"total"`
		Rate    float64 `json:"rate"`
	}

	StudentReport struct {
		Student    student.Student   `json:"student"`
		ClassName  string            `json:"class_name"`
		Subjects   []SubjectResult   `json:"subjects"`
		Obtained   float64           `json:"obtained"`
		MaxMarks   float64           `json:"max_marks"`
		Percentage float64           `json:"percentage"`
		Grade      string            `json:"grade"`
		Attendance AttendanceSummary `json:"attendance"`
	}

	AttendanceRow struct {
		StudentID   string `json:"student_id"`
		StudentName string `json:"student_name"`
		AttendanceSummary
	}

	AttendanceReport struct {
		ClassID   string            `json:"class_id"`
		ClassName string            `json:"class_name"`
		From      core.Date         `json:"from"`
		To        core.Date         `json:"to"`
		Days      int               `json:"days"`
		Rows      []AttendanceRow   `json:"rows"`
		Overall   AttendanceSummary `json:"overall"`
	}

	StudentBalance struct {
		StudentID   string          `json:"student_id"`
		StudentName string          `json:"student_name"`
		Fees        int             `json:"fees"`
		Outstanding decimal.Decimal `json:"outstanding"`
	}

	FeeReport struct {
		From           core.Date              `json:"from"`
		To             core.Date              `json:"to"`
		Billed         decimal.Decimal        `json:"billed"`
		Collected      decimal.Decimal        `json:"collected"`
		Outstanding    decimal.Decimal        `json:"outstanding"`
		CollectionRate float64                `json:"collection_rate"`
		ByStatus       map[finance.Status]int `json:"by_status"`
		Overdue        int                    `json:"overdue"`
		Balances       []StudentBalance       `json:"balances"`
	}

	SalaryRow struct {
		finance.Salary
		TeacherName string `json:"teacher_name"`
	}

	SalaryReport struct {
		Period string          `json:"period"`
		Rows   []SalaryRow     `json:"rows"`
		Total  decimal.Decimal `json:"total"`
		Paid   decimal.Decimal `json:"paid"`
		Unpaid decimal.Decimal `json:"unpaid"`
	}

	Dashboard struct {
		Students            int             `json:"students"`
		Teachers            int             `json:"teachers"`
		Classes             int             `json:"classes"`
		Exams               int             `json:"exams"`
		TodayAttendanceRate float64         `json:"today_attendance_rate"`
		TodayMarked         int             `json:"today_marked"`
		PendingFees         int             `json:"pending_fees"`
		PendingAmount       decimal.Decimal `json:"pending_amount"`
	}
)
