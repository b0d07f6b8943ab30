package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ExamCSVName is the download name of an exam report.
func ExamCSVName(rep ExamReport) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, strings.TrimSpace(rep.Exam.Name+"-"+rep.Exam.Subject))
	return fmt.Sprintf("exam-%s.csv", strings.ToLower(name))
}

// WriteExamCSV renders rep as a printable CSV sheet: one line per student, then the summary.
func WriteExamCSV(w io.Writer, rep ExamReport) error {
	cw := csv.NewWriter(w)
	records := [][]string{
		{"Exam", rep.Exam.Name},
		{"Subject", rep.Exam.Subject},
		{"Date", rep.Exam.ExamDate.String()},
		{"Max marks", formatFloat(rep.Exam.MaxMarks)},
		{"Passing marks", formatFloat(rep.Exam.PassingMarks)},
		{},
		{"Admission no", "Student", "Marks", "Percentage", "Grade", "Result", "Remarks"},
	}
	for _, row := range rep.Rows {
		line := []string{row.AdmissionNo, row.StudentName, "", "", "", "Absent", row.Remarks}
		if !row.Absent && row.Marks != nil {
			line[2] = formatFloat(*row.Marks)
			line[3] = formatFloat(*row.Percentage)
			line[4] = row.Grade
			line[5] = "Fail"
			if row.Passed {
				line[5] = "Pass"
			}
		}
		records = append(records, line)
	}
	records = append(records,
		[]string{},
		[]string{"Students", strconv.Itoa(rep.Summary.Count)},
		[]string{"Passed", strconv.Itoa(rep.Summary.Passed)},
		[]string{"Failed", strconv.Itoa(rep.Summary.Failed)},
		[]string{"Pass rate (%)", formatFloat(rep.Summary.PassRate)},
		[]string{"Average", formatFloat(rep.Summary.Average)},
		[]string{"Highest", formatFloat(rep.Summary.Highest)},
		[]string{"Lowest", formatFloat(rep.Summary.Lowest)},
	)
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
