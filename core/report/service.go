// Package report builds the printable reports. Every figure is computed on read from the
// stored records; nothing derived is ever stored.
package report

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/aggregate"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/classroom"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
)

var byName = []core.DBOrdering{{Field: "name", Ascending: true}}

type Service struct {
	students   student.Repository
	teachers   teacher.Repository
	classes    classroom.Repository
	exams      exam.Repository
	attendance attendance.Repository
	finance    finance.Repository
	today      func() core.Date // mockable
}

func NewService(
	students student.Repository,
	teachers teacher.Repository,
	classes classroom.Repository,
	exams exam.Repository,
	att attendance.Repository,
	fin finance.Repository,
) *Service {
	return &Service{
		students:   students,
		teachers:   teachers,
		classes:    classes,
		exams:      exams,
		attendance: att,
		finance:    fin,
		today:      core.TodayDate,
	}
}

// ExamReport lists every student of the exam's class with their marks. Students of the class
// without a score are listed as absent and left out of the summary.
func (svc *Service) ExamReport(ctx context.Context, examID string) (ExamReport, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return ExamReport{}, err
	}
	e, err := svc.exams.GetExam(ctx, tag, examID)
	if err != nil {
		return ExamReport{}, err
	}

	var (
		students []student.Student
		scores   []exam.Score
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if e.ClassID == "" {
			students, err = svc.students.QueryStudents(gctx, tag, student.Filter{}, byName)
			return err
		}
		students, err = svc.students.QueryStudents(gctx, tag, student.Filter{ClassID: e.ClassID}, byName)
		return err
	})
	g.Go(func() (err error) {
		scores, err = svc.exams.ScoresForExam(gctx, tag, e.ID)
		return err
	})
	if err = g.Wait(); err != nil {
		return ExamReport{}, err
	}

	scoreOf := make(map[string]exam.Score, len(scores))
	for _, sc := range scores {
		scoreOf[sc.StudentID] = sc
	}
	listed := make(map[string]bool, len(students))
	rows := make([]ExamRow, 0, len(students))
	marks := make([]float64, 0, len(scores))
	percentages := make([]float64, 0, len(scores))

	addRow := func(row ExamRow, sc exam.Score, scored bool) {
		if !scored {
			if e.ClassID == "" {
				return
			}
			row.Absent = true
			rows = append(rows, row)
			return
		}
		m := sc.MarksObtained
		pct := aggregate.Round1(aggregate.Percentage(m, e.MaxMarks))
		row.Marks = &m
		row.Percentage = &pct
		row.Passed = m >= e.PassingMarks
		row.Grade = aggregate.Classify(pct, aggregate.GradeBands)
		row.Remarks = sc.Remarks
		rows = append(rows, row)
		marks = append(marks, m)
		percentages = append(percentages, aggregate.Percentage(m, e.MaxMarks))
	}

	for _, s := range students {
		listed[s.ID] = true
		sc, ok := scoreOf[s.ID]
		addRow(ExamRow{StudentID: s.ID, StudentName: s.Name, AdmissionNo: s.AdmissionNo}, sc, ok)
	}
	// scored students who have since left the class
	for _, sc := range scores {
		if listed[sc.StudentID] {
			continue
		}
		row := ExamRow{StudentID: sc.StudentID}
		if s, err := svc.students.GetStudent(ctx, tag, sc.StudentID); err == nil {
			row.StudentName, row.AdmissionNo = s.Name, s.AdmissionNo
		}
		addRow(row, sc, true)
	}

	return ExamReport{
		Exam:         e,
		Rows:         rows,
		Summary:      aggregate.Summarize(marks, e.PassingMarks),
		Distribution: aggregate.Distribution(percentages, aggregate.GradeBands),
	}, nil
}

// StudentReport groups a student's results by subject, in the order subjects first appear
// when exams are sorted by date.
func (svc *Service) StudentReport(ctx context.Context, studentID string) (StudentReport, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return StudentReport{}, err
	}
	s, err := svc.students.GetStudent(ctx, tag, studentID)
	if err != nil {
		return StudentReport{}, err
	}

	var (
		scores  []exam.Score
		exams   []exam.Exam
		records []attendance.Record
		class   classroom.Class
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		scores, err = svc.exams.ScoresForStudent(gctx, tag, s.ID)
		return err
	})
	g.Go(func() (err error) {
		exams, err = svc.exams.QueryExams(gctx, tag, exam.Filter{}, []core.DBOrdering{{Field: "exam_date", Ascending: true}})
		return err
	})
	g.Go(func() (err error) {
		records, err = svc.attendance.QueryRecords(gctx, tag, attendance.Filter{Kind: attendance.KindStudent, SubjectRef: s.ID})
		return err
	})
	if s.ClassID != "" {
		g.Go(func() error {
			c, err := svc.classes.GetClass(gctx, tag, s.ClassID)
			if err == nil {
				class = c
			} else if errors.Cause(err) != classroom.ErrNotFound {
				return err
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return StudentReport{}, err
	}

	scoreOf := make(map[string]exam.Score, len(scores))
	for _, sc := range scores {
		scoreOf[sc.ExamID] = sc
	}
	results := make([]StudentExamRow, 0, len(scores))
	subjects := make(map[string]string, len(scores)) // exam ID -> subject
	for _, e := range exams {
		sc, ok := scoreOf[e.ID]
		if !ok {
			continue
		}
		pct := aggregate.Percentage(sc.MarksObtained, e.MaxMarks)
		results = append(results, StudentExamRow{
			ExamID:     e.ID,
			ExamName:   e.Name,
			ExamDate:   e.ExamDate,
			Marks:      sc.MarksObtained,
			MaxMarks:   e.MaxMarks,
			Percentage: aggregate.Round1(pct),
			Passed:     sc.MarksObtained >= e.PassingMarks,
			Grade:      aggregate.Classify(pct, aggregate.GradeBands),
		})
		subjects[e.ID] = e.Subject
	}

	rep := StudentReport{
		Student:    s,
		ClassName:  class.Name,
		Subjects:   make([]SubjectResult, 0),
		Attendance: summarizeAttendance(records),
	}
	for _, grp := range aggregate.GroupBy(results, func(r StudentExamRow) string { return subjects[r.ExamID] }) {
		res := SubjectResult{Subject: grp.Key, Exams: grp.Records}
		for _, r := range grp.Records {
			res.Obtained += r.Marks
			res.MaxMarks += r.MaxMarks
		}
		pct := aggregate.Percentage(res.Obtained, res.MaxMarks)
		res.Percentage = aggregate.Round1(pct)
		res.Grade = aggregate.Classify(pct, aggregate.GradeBands)
		rep.Subjects = append(rep.Subjects, res)
		rep.Obtained += res.Obtained
		rep.MaxMarks += res.MaxMarks
	}
	if rep.MaxMarks > 0 {
		pct := aggregate.Percentage(rep.Obtained, rep.MaxMarks)
		rep.Percentage = aggregate.Round1(pct)
		rep.Grade = aggregate.Classify(pct, aggregate.GradeBands)
	}
	return rep, nil
}

// AttendanceReport counts each student's marks of a class between from and to (inclusive).
func (svc *Service) AttendanceReport(ctx context.Context, classID string, from, to core.Date) (AttendanceReport, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return AttendanceReport{}, err
	}
	if classID == "" {
		return AttendanceReport{}, core.NewFieldError("class_id", "this field is required")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return AttendanceReport{}, core.NewFieldError("to", "end date cannot be before start date")
	}

	var (
		class    classroom.Class
		students []student.Student
		records  []attendance.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		class, err = svc.classes.GetClass(gctx, tag, classID)
		return err
	})
	g.Go(func() (err error) {
		students, err = svc.students.QueryStudents(gctx, tag, student.Filter{ClassID: classID}, byName)
		return err
	})
	g.Go(func() (err error) {
		records, err = svc.attendance.QueryRecords(gctx, tag, attendance.Filter{
			Kind:     attendance.KindStudent,
			GroupRef: classID,
			From:     from,
			To:       to,
		})
		return err
	})
	if err = g.Wait(); err != nil {
		return AttendanceReport{}, err
	}

	bySubject := make(map[string][]attendance.Record)
	days := make(map[string]bool)
	for _, rec := range records {
		bySubject[rec.SubjectRef] = append(bySubject[rec.SubjectRef], rec)
		days[rec.Date.String()] = true
	}
	rep := AttendanceReport{
		ClassID:   class.ID,
		ClassName: class.Name,
		From:      from,
		To:        to,
		Days:      len(days),
		Rows:      make([]AttendanceRow, 0, len(students)),
		Overall:   summarizeAttendance(records),
	}
	for _, s := range students {
		rep.Rows = append(rep.Rows, AttendanceRow{
			StudentID:         s.ID,
			StudentName:       s.Name,
			AttendanceSummary: summarizeAttendance(bySubject[s.ID]),
		})
	}
	return rep, nil
}

// FeeReport totals the fees due between from and to (inclusive).
func (svc *Service) FeeReport(ctx context.Context, from, to core.Date) (FeeReport, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return FeeReport{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return FeeReport{}, core.NewFieldError("to", "end date cannot be before start date")
	}

	var (
		fees     []finance.Fee
		students []student.Student
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fees, err = svc.finance.QueryFees(gctx, tag, finance.FeeFilter{From: from, To: to}, []core.DBOrdering{{Field: "due_date", Ascending: true}})
		return err
	})
	g.Go(func() (err error) {
		students, err = svc.students.QueryStudents(gctx, tag, student.Filter{}, byName)
		return err
	})
	if err = g.Wait(); err != nil {
		return FeeReport{}, err
	}

	names := make(map[string]string, len(students))
	for _, s := range students {
		names[s.ID] = s.Name
	}
	today := svc.today()
	rep := FeeReport{
		From:     from,
		To:       to,
		ByStatus: map[finance.Status]int{finance.StatusPaid: 0, finance.StatusUnpaid: 0, finance.StatusPartial: 0},
		Balances: make([]StudentBalance, 0),
	}
	billed := make([]decimal.Decimal, 0, len(fees))
	collected := make([]decimal.Decimal, 0, len(fees))
	for _, f := range fees {
		billed = append(billed, f.Amount)
		collected = append(collected, f.AmountPaid)
		rep.ByStatus[f.Status]++
		if f.Overdue(today) {
			rep.Overdue++
		}
	}
	rep.Billed = aggregate.SumDecimal(billed...)
	rep.Collected = aggregate.SumDecimal(collected...)
	rep.Outstanding = decimal.Zero

	for _, grp := range aggregate.GroupBy(fees, func(f finance.Fee) string { return f.StudentID }) {
		bal := StudentBalance{StudentID: grp.Key, StudentName: names[grp.Key], Fees: len(grp.Records), Outstanding: decimal.Zero}
		for _, f := range grp.Records {
			bal.Outstanding = bal.Outstanding.Add(f.Outstanding())
		}
		rep.Outstanding = rep.Outstanding.Add(bal.Outstanding)
		if bal.Outstanding.IsPositive() {
			rep.Balances = append(rep.Balances, bal)
		}
	}
	rep.CollectionRate = aggregate.Round1(aggregate.Percentage(rep.Collected.InexactFloat64(), rep.Billed.InexactFloat64()))
	return rep, nil
}

// SalaryReport lists the salaries of a period with their totals.
func (svc *Service) SalaryReport(ctx context.Context, period string) (SalaryReport, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return SalaryReport{}, err
	}
	if period == "" {
		period = svc.today().Format("2006-01")
	}

	var (
		salaries []finance.Salary
		teachers []teacher.Teacher
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		salaries, err = svc.finance.QuerySalaries(gctx, tag, finance.SalaryFilter{Period: period}, nil)
		return err
	})
	g.Go(func() (err error) {
		teachers, err = svc.teachers.QueryTeachers(gctx, tag, teacher.Filter{}, byName)
		return err
	})
	if err = g.Wait(); err != nil {
		return SalaryReport{}, err
	}

	names := make(map[string]string, len(teachers))
	for _, t := range teachers {
		names[t.ID] = t.Name
	}
	rep := SalaryReport{Period: period, Rows: make([]SalaryRow, 0, len(salaries)), Total: decimal.Zero, Paid: decimal.Zero, Unpaid: decimal.Zero}
	for _, s := range salaries {
		rep.Rows = append(rep.Rows, SalaryRow{Salary: s, TeacherName: names[s.TeacherID]})
		rep.Total = rep.Total.Add(s.Amount)
		if s.Status == finance.StatusPaid {
			rep.Paid = rep.Paid.Add(s.Amount)
		} else {
			rep.Unpaid = rep.Unpaid.Add(s.Amount)
		}
	}
	return rep, nil
}

// Dashboard gathers the headline counters of the home screen.
func (svc *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	tag, err := access.Require(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	var (
		dash    Dashboard
		records []attendance.Record
		pending []finance.Fee
	)
	today := svc.today()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		students, err := svc.students.QueryStudents(gctx, tag, student.Filter{}, nil)
		dash.Students = len(students)
		return err
	})
	g.Go(func() error {
		teachers, err := svc.teachers.QueryTeachers(gctx, tag, teacher.Filter{}, nil)
		dash.Teachers = len(teachers)
		return err
	})
	g.Go(func() error {
		classes, err := svc.classes.QueryClasses(gctx, tag, classroom.Filter{}, nil)
		dash.Classes = len(classes)
		return err
	})
	g.Go(func() error {
		exams, err := svc.exams.QueryExams(gctx, tag, exam.Filter{}, nil)
		dash.Exams = len(exams)
		return err
	})
	g.Go(func() (err error) {
		records, err = svc.attendance.QueryRecords(gctx, tag, attendance.Filter{Kind: attendance.KindStudent, From: today, To: today})
		return err
	})
	g.Go(func() (err error) {
		pending, err = svc.finance.QueryFees(gctx, tag, finance.FeeFilter{}, nil)
		return err
	})
	if err = g.Wait(); err != nil {
		return Dashboard{}, err
	}

	att := summarizeAttendance(records)
	dash.TodayAttendanceRate = att.Rate
	dash.TodayMarked = att.Total
	dash.PendingAmount = decimal.Zero
	for _, f := range pending {
		if f.Status == finance.StatusPaid {
			continue
		}
		dash.PendingFees++
		dash.PendingAmount = dash.PendingAmount.Add(f.Outstanding())
	}
	return dash, nil
}

// summarizeAttendance counts marks per status. Late counts as attended.
func summarizeAttendance(records []attendance.Record) AttendanceSummary {
	var sum AttendanceSummary
	for _, rec := range records {
		switch rec.Status {
		case attendance.StatusPresent:
			sum.Present++
		case attendance.StatusAbsent:
			sum.Absent++
		case attendance.StatusLate:
			sum.Late++
		}
	}
	sum.Total = sum.Present + sum.Absent + sum.Late
	if sum.Total > 0 {
		sum.Rate = aggregate.Round1(aggregate.Percentage(float64(sum.Present+sum.Late), float64(sum.Total)))
	}
	return sum
}
