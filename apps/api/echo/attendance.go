package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/inflight"
)

type attendanceApi struct {
	svc   *attendance.Service
	guard *inflight.Guard
}

func registerAttendanceAPI(g *echo.Group, deps *Deps, guard *inflight.Guard) {
	api := attendanceApi{svc: deps.AttendanceSvc, guard: guard}

	g.GET("", api.query)
	g.PUT("", api.save)
	g.GET("/sheet", api.sheet)
	g.DELETE("/:id", api.destroy)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	from, err := queryDate(ctx, "from")
	if err != nil {
		return err
	}
	to, err := queryDate(ctx, "to")
	if err != nil {
		return err
	}
	filter := attendance.Filter{
		Kind:       attendance.Kind(ctx.QueryParam("kind")),
		GroupRef:   ctx.QueryParam("group_ref"),
		SubjectRef: ctx.QueryParam("subject_ref"),
		Status:     attendance.Status(ctx.QueryParam("status")),
		From:       from,
		To:         to,
	}
	records, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

// sheet returns the stored records of one (kind, date, group) key.
func (api *attendanceApi) sheet(ctx echo.Context) error {
	date, err := queryDate(ctx, "date")
	if err != nil {
		return err
	}
	if date.IsZero() {
		return core.NewFieldError("date", "this field is required")
	}
	key := attendance.Key{
		Kind:     attendance.Kind(ctx.QueryParam("kind")),
		Date:     date,
		GroupRef: ctx.QueryParam("group_ref"),
	}
	if key.Kind == "" {
		key.Kind = attendance.KindStudent
	}
	records, err := api.svc.ForKey(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "getting attendance sheet")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

// save reconciles the stored sheet with the submitted one.
// A second save of the same sheet while one is in flight is rejected.
func (api *attendanceApi) save(ctx echo.Context) error {
	c := ctx.Request().Context()
	tag, err := access.Require(c)
	if err != nil {
		return err
	}
	var sheet attendance.Sheet
	if err = bind(ctx, &sheet); err != nil {
		return err
	}

	key := "attendance:" + tag.String() + ":" + string(sheet.Kind) + ":" + sheet.Date.String() + ":" + sheet.GroupRef
	var records []attendance.Record
	err = api.guard.Do(key, func() error {
		records, err = api.svc.Reconcile(c, sheet)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "saving attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Attendance record deleted."})
}
