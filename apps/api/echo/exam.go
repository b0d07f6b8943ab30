package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/inflight"
)

type examApi struct {
	svc   *exam.Service
	guard *inflight.Guard
}

func registerExamAPI(g *echo.Group, deps *Deps, guard *inflight.Guard) {
	api := examApi{svc: deps.ExamSvc, guard: guard}

	g.GET("", api.query)
	g.POST("", api.create)
	g.GET("/:id", api.retrieve)
	g.PUT("/:id", api.update)
	g.DELETE("/:id", api.destroy)
	g.GET("/:id/scores", api.scores)
	g.PUT("/:id/scores", api.saveScores)
}

func (api *examApi) query(ctx echo.Context) error {
	filter := exam.Filter{
		ClassID: ctx.QueryParam("class_id"),
		Subject: core.CleanString(ctx.QueryParam("subject")),
		Search:  core.CleanString(ctx.QueryParam("search")),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	exams, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	if exams == nil {
		exams = []exam.Exam{}
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewExam
	if err := bind(ctx, &data); err != nil {
		return err
	}
	e, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	e, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) update(ctx echo.Context) error {
	var data exam.NewExam
	if err := bind(ctx, &data); err != nil {
		return err
	}
	e, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Exam deleted."})
}

func (api *examApi) scores(ctx echo.Context) error {
	scores, err := api.svc.Scores(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting scores")
	}
	if scores == nil {
		scores = []exam.Score{}
	}
	return ctx.JSON(http.StatusOK, scores)
}

// saveScores reconciles the exam's scores with the submitted marks form.
// A second save of the same exam while one is in flight is rejected.
func (api *examApi) saveScores(ctx echo.Context) error {
	c := ctx.Request().Context()
	tag, err := access.Require(c)
	if err != nil {
		return err
	}
	var data exam.SaveScores
	if err = bind(ctx, &data); err != nil {
		return err
	}

	var scores []exam.Score
	err = api.guard.Do("scores:"+tag.String()+":"+ctx.Param("id"), func() error {
		scores, err = api.svc.SaveScores(c, ctx.Param("id"), data.Entries)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "saving scores")
	}
	return ctx.JSON(http.StatusOK, scores)
}
