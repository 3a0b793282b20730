package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/lms"
	"github.com/trezcool/masomo-lms/core/user"
)

type studentApi struct {
	svc      *lms.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, deps ServerDeps) {
	api := studentApi{svc: deps.LMSSvc, validate: deps.Validate}

	sg := g.Group("/student", authMiddleware(deps.Guard, user.RoleStudent))

	sg.GET("/enrollments", api.queryEnrollments)
	sg.POST("/enrollments", api.enroll)
	sg.PUT("/enrollments/:enrollmentId/progress", api.updateProgress)

	sg.GET("/assignments", api.queryAssignments)
	sg.POST("/assignments/:assignmentId/submissions", api.submitAssignment)
	sg.GET("/submissions", api.querySubmissions)

	sg.GET("/quizzes", api.queryQuizzes)
	sg.GET("/quizzes/:quizId/attempts", api.queryAttempts)
	sg.POST("/quizzes/:quizId/attempts", api.attemptQuiz)

	sg.POST("/courses/:courseId/reviews", api.reviewCourse)
}

func (api *studentApi) queryEnrollments(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	enrollments, err := api.svc.StudentEnrollments(ctx.Request().Context(), ident)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *studentApi) enroll(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	var data lms.EnrollData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *studentApi) updateProgress(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "enrollmentId", lms.KindEnrollment)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	e, err := api.svc.OwnedEnrollment(reqCtx, ident, id)
	if err != nil {
		return err
	}

	var data lms.ProgressData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProgressData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	e, err = api.svc.UpdateProgress(reqCtx, e, data)
	if err != nil {
		return errors.Wrap(err, "updating progress")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *studentApi) queryAssignments(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	assignments, err := api.svc.StudentAssignments(ctx.Request().Context(), ident)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *studentApi) submitAssignment(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "assignmentId", lms.KindAssignment)
	if err != nil {
		return err
	}
	var data lms.SubmissionData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmissionData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	sub, err := api.svc.SubmitAssignment(ctx.Request().Context(), ident, id, data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *studentApi) querySubmissions(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.StudentSubmissions(ctx.Request().Context(), ident)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *studentApi) queryQuizzes(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	quizzes, err := api.svc.StudentQuizzes(ctx.Request().Context(), ident)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *studentApi) queryAttempts(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "quizId", lms.KindQuiz)
	if err != nil {
		return err
	}
	attempts, err := api.svc.QuizAttempts(ctx.Request().Context(), ident, id)
	if err != nil {
		return errors.Wrap(err, "querying quiz attempts")
	}
	return ctx.JSON(http.StatusOK, attempts)
}

func (api *studentApi) attemptQuiz(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "quizId", lms.KindQuiz)
	if err != nil {
		return err
	}
	var data lms.AttemptData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttemptData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	attempt, err := api.svc.AttemptQuiz(ctx.Request().Context(), ident, id, data)
	if err != nil {
		return errors.Wrap(err, "attempting quiz")
	}
	return ctx.JSON(http.StatusCreated, attempt)
}

func (api *studentApi) reviewCourse(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "courseId", lms.KindCourse)
	if err != nil {
		return err
	}
	var data lms.ReviewData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	rev, err := api.svc.ReviewCourse(ctx.Request().Context(), ident, id, data)
	if err != nil {
		return errors.Wrap(err, "reviewing course")
	}
	return ctx.JSON(http.StatusOK, rev)
}
