package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/masomo/lms/core/enrollment"
)

type enrollmentApi struct {
	svc      enrollment.Service
	validate *validator.Validate
}

func registerEnrollmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc enrollment.Service,
	validate *validator.Validate,
) {
	api := enrollmentApi{
		svc:      svc,
		validate: validate,
	}

	eg := g.Group("/enrollments", jwt)
	eg.POST("", api.create)
	eg.GET("", api.query)

	// detail endpoints
	eg.GET("/:id", api.retrieve)
	eg.DELETE("/:id", api.destroy, adminMiddleware())
	eg.PATCH("/:id/status", api.updateStatus)
	eg.POST("/:id/drop", api.drop)
	eg.POST("/:id/lessons/complete", api.completeLesson)
	eg.GET("/:id/progress", api.progress)
	eg.POST("/:id/progress/recalculate", api.recalculate)

	sg := g.Group("/students/:id", jwt)
	sg.GET("/enrollments/stats", api.studentStats)
	sg.GET("/courses/:courseId/progress", api.studentCourseProgress)

	cg := g.Group("/courses/:id", jwt)
	cg.GET("/enrollments/stats", api.courseStats)
	cg.POST("/enrollments/recalculate", api.recalculateCourse)
}

// Handlers

func (api *enrollmentApi) create(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var data enrollment.NewEnrollment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var filter enrollment.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}
	ordering := new(Ordering)
	if err = ordering.Bind(ctx, enrollment.OrderingFields...); err != nil {
		return err
	}

	page, err := api.svc.Query(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	enr, err := api.svc.GetByID(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) destroy(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	if err = api.svc.Remove(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing enrollment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *enrollmentApi) updateStatus(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var data enrollment.StatusUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.UpdateStatus(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating enrollment status")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) drop(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	enr, err := api.svc.Drop(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "dropping enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) completeLesson(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	var data enrollment.LessonCompletion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonCompletion")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	summary, err := api.svc.MarkLessonComplete(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "marking lesson complete")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *enrollmentApi) progress(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	summary, err := api.svc.GetProgress(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *enrollmentApi) recalculate(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	summary, err := api.svc.Recalculate(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "recalculating progress")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *enrollmentApi) studentStats(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	stats, err := api.svc.StudentStats(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *enrollmentApi) studentCourseProgress(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	sp, err := api.svc.GetStudentCourseProgress(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "getting student course progress")
	}
	return ctx.JSON(http.StatusOK, sp)
}

func (api *enrollmentApi) courseStats(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	stats, err := api.svc.CourseStats(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *enrollmentApi) recalculateCourse(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}

	n, err := api.svc.RecalculateCourse(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "recalculating course progress")
	}
	return ctx.JSON(http.StatusOK, RecalculationResponse{Recalculated: n})
}

type RecalculationResponse struct {
	Recalculated int `json:"recalculated"`
}
