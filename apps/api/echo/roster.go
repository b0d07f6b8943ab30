package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/classroom"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/services/objstore"
)

const photoFormField = "photo"

type rosterApi struct {
	deps *Deps
}

func registerRosterAPI(g *echo.Group, deps *Deps) {
	api := rosterApi{deps: deps}

	sg := g.Group("/students")
	sg.GET("", api.queryStudents)
	sg.POST("", api.createStudent)
	sg.GET("/:id", api.retrieveStudent)
	sg.PUT("/:id", api.updateStudent)
	sg.DELETE("/:id", api.destroyStudent)
	sg.POST("/:id/photo", api.uploadStudentPhoto)

	tg := g.Group("/teachers")
	tg.GET("", api.queryTeachers)
	tg.POST("", api.createTeacher)
	tg.GET("/:id", api.retrieveTeacher)
	tg.PUT("/:id", api.updateTeacher)
	tg.DELETE("/:id", api.destroyTeacher)
	tg.POST("/:id/photo", api.uploadTeacherPhoto)

	cg := g.Group("/classes")
	cg.GET("", api.queryClasses)
	cg.POST("", api.createClass)
	cg.GET("/:id", api.retrieveClass)
	cg.PUT("/:id", api.updateClass)
	cg.DELETE("/:id", api.destroyClass)
}

// Students

func (api *rosterApi) queryStudents(ctx echo.Context) error {
	filter := student.Filter{
		ClassID: ctx.QueryParam("class_id"),
		Search:  core.CleanString(ctx.QueryParam("search")),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.deps.StudentSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *rosterApi) createStudent(ctx echo.Context) error {
	var data student.NewStudent
	if err := bind(ctx, &data); err != nil {
		return err
	}
	s, err := api.deps.StudentSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *rosterApi) retrieveStudent(ctx echo.Context) error {
	s, err := api.deps.StudentSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *rosterApi) updateStudent(ctx echo.Context) error {
	var data student.NewStudent
	if err := bind(ctx, &data); err != nil {
		return err
	}
	s, err := api.deps.StudentSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *rosterApi) destroyStudent(ctx echo.Context) error {
	if err := api.deps.StudentSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Student deleted."})
}

func (api *rosterApi) uploadStudentPhoto(ctx echo.Context) error {
	svc := api.deps.StudentSvc
	c := ctx.Request().Context()
	s, err := svc.Get(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	url, err := api.storePhoto(ctx, "students")
	if err != nil {
		return err
	}
	old := s.PhotoURL
	if s, err = svc.SetPhoto(c, s.ID, url); err != nil {
		return errors.Wrap(err, "setting student photo")
	}
	api.discardPhoto(ctx, old)
	return ctx.JSON(http.StatusOK, s)
}

// Teachers

func (api *rosterApi) queryTeachers(ctx echo.Context) error {
	filter := teacher.Filter{
		Search:  core.CleanString(ctx.QueryParam("search")),
		Subject: core.CleanString(ctx.QueryParam("subject")),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	teachers, err := api.deps.TeacherSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []teacher.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *rosterApi) createTeacher(ctx echo.Context) error {
	var data teacher.NewTeacher
	if err := bind(ctx, &data); err != nil {
		return err
	}
	t, err := api.deps.TeacherSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *rosterApi) retrieveTeacher(ctx echo.Context) error {
	t, err := api.deps.TeacherSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *rosterApi) updateTeacher(ctx echo.Context) error {
	var data teacher.NewTeacher
	if err := bind(ctx, &data); err != nil {
		return err
	}
	t, err := api.deps.TeacherSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *rosterApi) destroyTeacher(ctx echo.Context) error {
	if err := api.deps.TeacherSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Teacher deleted."})
}

func (api *rosterApi) uploadTeacherPhoto(ctx echo.Context) error {
	svc := api.deps.TeacherSvc
	c := ctx.Request().Context()
	t, err := svc.Get(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting teacher")
	}
	url, err := api.storePhoto(ctx, "teachers")
	if err != nil {
		return err
	}
	old := t.PhotoURL
	if t, err = svc.SetPhoto(c, t.ID, url); err != nil {
		return errors.Wrap(err, "setting teacher photo")
	}
	api.discardPhoto(ctx, old)
	return ctx.JSON(http.StatusOK, t)
}

// storePhoto normalizes the uploaded photo and stores it; it returns the public URL.
func (api *rosterApi) storePhoto(ctx echo.Context, kind string) (string, error) {
	tag, err := access.Require(ctx.Request().Context())
	if err != nil {
		return "", err
	}
	fh, err := ctx.FormFile(photoFormField)
	if err != nil {
		return "", core.NewFieldError(photoFormField, "this field is required")
	}
	if max := api.deps.Conf.Storage.PhotoMaxSize; max > 0 && fh.Size > max {
		return "", core.NewFieldError(photoFormField, "the photo is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening photo")
	}
	defer f.Close()

	url, err := objstore.UploadPhoto(ctx.Request().Context(), api.deps.Store, kind, tag, f)
	if err != nil {
		return "", errors.Wrap(err, "uploading photo")
	}
	return url, nil
}

// discardPhoto removes a replaced photo from the store. Failures are only logged.
func (api *rosterApi) discardPhoto(ctx echo.Context, url string) {
	store, ok := api.deps.Store.(interface{ BaseURL() string })
	if url == "" || !ok {
		return
	}
	key, ok := objstore.KeyFromURL(store.BaseURL(), url)
	if !ok {
		return
	}
	if err := api.deps.Store.Delete(ctx.Request().Context(), key); err != nil {
		api.deps.Logger.Warn("deleting replaced photo", errors.Wrap(err, key))
	}
}

// Classes

func (api *rosterApi) queryClasses(ctx echo.Context) error {
	filter := classroom.Filter{
		Search:         core.CleanString(ctx.QueryParam("search")),
		ClassTeacherID: ctx.QueryParam("class_teacher_id"),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	classes, err := api.deps.ClassSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []classroom.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *rosterApi) createClass(ctx echo.Context) error {
	var data classroom.NewClass
	if err := bind(ctx, &data); err != nil {
		return err
	}
	c, err := api.deps.ClassSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *rosterApi) retrieveClass(ctx echo.Context) error {
	c, err := api.deps.ClassSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *rosterApi) updateClass(ctx echo.Context) error {
	var data classroom.NewClass
	if err := bind(ctx, &data); err != nil {
		return err
	}
	c, err := api.deps.ClassSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *rosterApi) destroyClass(ctx echo.Context) error {
	if err := api.deps.ClassSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Class deleted."})
}
