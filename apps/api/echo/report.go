package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/report"
)

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(g *echo.Group, deps *Deps) {
	api := reportApi{svc: deps.ReportSvc}

	g.GET("/dashboard", api.dashboard)
	g.GET("/exams/:id", api.exam)
	g.GET("/exams/:id/csv", api.examCSV)
	g.GET("/students/:id", api.student)
	g.GET("/attendance", api.attendance)
	g.GET("/fees", api.fees)
	g.GET("/salaries", api.salaries)
}

func (api *reportApi) dashboard(ctx echo.Context) error {
	d, err := api.svc.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *reportApi) exam(ctx echo.Context) error {
	rep, err := api.svc.ExamReport(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building exam report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) examCSV(ctx echo.Context) error {
	rep, err := api.svc.ExamReport(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building exam report")
	}
	buf := new(bytes.Buffer)
	if err = report.WriteExamCSV(buf, rep); err != nil {
		return errors.Wrap(err, "writing exam csv")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+report.ExamCSVName(rep)+`"`)
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (api *reportApi) student(ctx echo.Context) error {
	rep, err := api.svc.StudentReport(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building student report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) attendance(ctx echo.Context) error {
	from, to, err := dateRange(ctx)
	if err != nil {
		return err
	}
	rep, err := api.svc.AttendanceReport(ctx.Request().Context(), ctx.QueryParam("class_id"), from, to)
	if err != nil {
		return errors.Wrap(err, "building attendance report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) fees(ctx echo.Context) error {
	from, to, err := dateRange(ctx)
	if err != nil {
		return err
	}
	rep, err := api.svc.FeeReport(ctx.Request().Context(), from, to)
	if err != nil {
		return errors.Wrap(err, "building fee report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) salaries(ctx echo.Context) error {
	rep, err := api.svc.SalaryReport(ctx.Request().Context(), ctx.QueryParam("period"))
	if err != nil {
		return errors.Wrap(err, "building salary report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func dateRange(ctx echo.Context) (from, to core.Date, err error) {
	if from, err = queryDate(ctx, "from"); err != nil {
		return
	}
	to, err = queryDate(ctx, "to")
	return
}
