package echoapi

import (
	"encoding/csv"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/classroom"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/tests"
)

func Test_reportApi(t *testing.T) {
	app := newTestApp(t)
	token := app.login("head@test.cd")
	ctx := testutil.Owner("head@test.cd")

	class5A, err := app.env.ClassSvc.Create(ctx, classroom.NewClass{Name: "5A"})
	require.NoError(t, err)
	var studs []student.Student
	for _, name := range []string{"Amani", "Baraka", "Chiku"} {
		s, err := app.env.StudentSvc.Create(ctx, student.NewStudent{Name: name, ClassID: class5A.ID})
		require.NoError(t, err)
		studs = append(studs, s)
	}
	e, err := app.env.ExamSvc.Create(ctx, exam.NewExam{
		Name: "Midterm", Subject: "Maths", ClassID: class5A.ID, MaxMarks: 100, PassingMarks: 40,
	})
	require.NoError(t, err)
	_, err = app.env.ExamSvc.SaveScores(ctx, e.ID, []exam.ScoreEntry{
		{StudentID: studs[0].ID, Marks: marks(30)},
		{StudentID: studs[1].ID, Marks: marks(90)},
		{StudentID: studs[2].ID},
	})
	require.NoError(t, err)

	t.Run("exam", func(t *testing.T) {
		var rep report.ExamReport
		decode(t, app.do(http.MethodGet, "/v1/reports/exams/"+e.ID, token, nil), http.StatusOK, &rep)
		assert.Len(t, rep.Rows, 3)
		assert.Equal(t, 2, rep.Summary.Count)
		assert.Equal(t, 1, rep.Summary.Passed)
		assert.Equal(t, 60.0, rep.Summary.Average)
	})

	t.Run("exam csv", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/reports/exams/"+e.ID+"/csv", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="exam-midterm-maths.csv"`, rec.Header().Get("Content-Disposition"))

		r := csv.NewReader(strings.NewReader(rec.Body.String()))
		r.FieldsPerRecord = -1
		lines, err := r.ReadAll()
		require.NoError(t, err)
		var names []string
		for _, line := range lines {
			for _, s := range studs {
				if len(line) > 1 && line[1] == s.Name {
					names = append(names, s.Name)
				}
			}
		}
		assert.ElementsMatch(t, []string{"Amani", "Baraka", "Chiku"}, names)
	})

	t.Run("student", func(t *testing.T) {
		var rep report.StudentReport
		decode(t, app.do(http.MethodGet, "/v1/reports/students/"+studs[1].ID, token, nil), http.StatusOK, &rep)
		assert.Equal(t, "5A", rep.ClassName)
		require.Len(t, rep.Subjects, 1)
		assert.Equal(t, 90.0, rep.Percentage)
	})

	t.Run("dashboard", func(t *testing.T) {
		var d report.Dashboard
		decode(t, app.do(http.MethodGet, "/v1/reports/dashboard", token, nil), http.StatusOK, &d)
		assert.Equal(t, 3, d.Students)
		assert.Equal(t, 1, d.Classes)
		assert.Equal(t, 1, d.Exams)
	})

	t.Run("attendance", func(t *testing.T) {
		var rep report.AttendanceReport
		decode(t, app.do(http.MethodGet, "/v1/reports/attendance?class_id="+class5A.ID+"&from=2024-03-01&to=2024-03-31", token, nil), http.StatusOK, &rep)
		assert.Equal(t, core.MustDate("2024-03-01"), rep.From)
		assert.Zero(t, rep.Days)
		decode(t, app.do(http.MethodGet, "/v1/reports/attendance?from=2024-13-01", token, nil), http.StatusBadRequest, nil)
	})

	t.Run("fees and salaries", func(t *testing.T) {
		var fees report.FeeReport
		decode(t, app.do(http.MethodGet, "/v1/reports/fees", token, nil), http.StatusOK, &fees)
		assert.True(t, fees.Billed.IsZero())
		decode(t, app.do(http.MethodGet, "/v1/reports/salaries?period=2024-03", token, nil), http.StatusOK, nil)
	})

	t.Run("other owner", func(t *testing.T) {
		other := app.login("other@test.cd")
		decode(t, app.do(http.MethodGet, "/v1/reports/exams/"+e.ID, other, nil), http.StatusNotFound, nil)
		decode(t, app.do(http.MethodGet, "/v1/reports/students/"+studs[0].ID, other, nil), http.StatusNotFound, nil)

		var d report.Dashboard
		decode(t, app.do(http.MethodGet, "/v1/reports/dashboard", other, nil), http.StatusOK, &d)
		assert.Zero(t, d.Students)
	})
}
