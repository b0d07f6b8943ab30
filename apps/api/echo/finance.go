package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/inflight"
)

type financeApi struct {
	svc   *finance.Service
	guard *inflight.Guard
}

func registerFinanceAPI(g *echo.Group, deps *Deps, guard *inflight.Guard) {
	api := financeApi{svc: deps.FinanceSvc, guard: guard}

	fg := g.Group("/fees")
	fg.GET("", api.queryFees)
	fg.POST("", api.createFee)
	fg.GET("/:id", api.retrieveFee)
	fg.PUT("/:id", api.updateFee)
	fg.DELETE("/:id", api.destroyFee)
	fg.POST("/:id/pay", api.markFeePaid)
	fg.POST("/:id/payments", api.recordFeePayment)

	sg := g.Group("/salaries")
	sg.GET("", api.querySalaries)
	sg.POST("", api.createSalary)
	sg.POST("/payroll", api.generatePayroll)
	sg.GET("/:id", api.retrieveSalary)
	sg.PUT("/:id", api.updateSalary)
	sg.DELETE("/:id", api.destroySalary)
	sg.POST("/:id/pay", api.markSalaryPaid)
}

// guarded runs fn unless a payment on the same record is already in flight.
func (api *financeApi) guarded(ctx echo.Context, kind string, fn func() error) error {
	tag, err := access.Require(ctx.Request().Context())
	if err != nil {
		return err
	}
	return api.guard.Do(kind+":"+tag.String()+":"+ctx.Param("id"), fn)
}

// Fees

func (api *financeApi) queryFees(ctx echo.Context) error {
	from, err := queryDate(ctx, "from")
	if err != nil {
		return err
	}
	to, err := queryDate(ctx, "to")
	if err != nil {
		return err
	}
	filter := finance.FeeFilter{
		StudentID: ctx.QueryParam("student_id"),
		Status:    finance.Status(ctx.QueryParam("status")),
		FeeType:   core.CleanString(ctx.QueryParam("fee_type")),
		From:      from,
		To:        to,
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	fees, err := api.svc.QueryFees(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	if fees == nil {
		fees = []finance.Fee{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

func (api *financeApi) createFee(ctx echo.Context) error {
	var data finance.NewFee
	if err := bind(ctx, &data); err != nil {
		return err
	}
	f, err := api.svc.CreateFee(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *financeApi) retrieveFee(ctx echo.Context) error {
	f, err := api.svc.GetFee(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting fee")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *financeApi) updateFee(ctx echo.Context) error {
	var data finance.NewFee
	if err := bind(ctx, &data); err != nil {
		return err
	}
	f, err := api.svc.UpdateFee(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating fee")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *financeApi) destroyFee(ctx echo.Context) error {
	if err := api.svc.DeleteFee(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting fee")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Fee deleted."})
}

func (api *financeApi) markFeePaid(ctx echo.Context) error {
	var data finance.MarkPaid
	if err := bind(ctx, &data); err != nil {
		return err
	}
	var f finance.Fee
	err := api.guarded(ctx, "fee", func() (err error) {
		f, err = api.svc.MarkFeePaid(ctx.Request().Context(), ctx.Param("id"), data)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "marking fee paid")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *financeApi) recordFeePayment(ctx echo.Context) error {
	var data finance.Payment
	if err := bind(ctx, &data); err != nil {
		return err
	}
	var f finance.Fee
	err := api.guarded(ctx, "fee", func() (err error) {
		f, err = api.svc.RecordFeePayment(ctx.Request().Context(), ctx.Param("id"), data)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "recording fee payment")
	}
	return ctx.JSON(http.StatusOK, f)
}

// Salaries

func (api *financeApi) querySalaries(ctx echo.Context) error {
	filter := finance.SalaryFilter{
		TeacherID: ctx.QueryParam("teacher_id"),
		Period:    ctx.QueryParam("period"),
		Status:    finance.Status(ctx.QueryParam("status")),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	salaries, err := api.svc.QuerySalaries(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying salaries")
	}
	if salaries == nil {
		salaries = []finance.Salary{}
	}
	return ctx.JSON(http.StatusOK, salaries)
}

func (api *financeApi) createSalary(ctx echo.Context) error {
	var data finance.NewSalary
	if err := bind(ctx, &data); err != nil {
		return err
	}
	s, err := api.svc.CreateSalary(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating salary")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *financeApi) retrieveSalary(ctx echo.Context) error {
	s, err := api.svc.GetSalary(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting salary")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *financeApi) updateSalary(ctx echo.Context) error {
	var data finance.NewSalary
	if err := bind(ctx, &data); err != nil {
		return err
	}
	s, err := api.svc.UpdateSalary(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating salary")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *financeApi) destroySalary(ctx echo.Context) error {
	if err := api.svc.DeleteSalary(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting salary")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Salary deleted."})
}

func (api *financeApi) markSalaryPaid(ctx echo.Context) error {
	var data finance.MarkPaid
	if err := bind(ctx, &data); err != nil {
		return err
	}
	var s finance.Salary
	err := api.guarded(ctx, "salary", func() (err error) {
		s, err = api.svc.MarkSalaryPaid(ctx.Request().Context(), ctx.Param("id"), data)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "marking salary paid")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *financeApi) generatePayroll(ctx echo.Context) error {
	var data finance.Payroll
	if err := bind(ctx, &data); err != nil {
		return err
	}
	salaries, err := api.svc.GeneratePayroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating payroll")
	}
	if salaries == nil {
		salaries = []finance.Salary{}
	}
	return ctx.JSON(http.StatusCreated, salaries)
}
