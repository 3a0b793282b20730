package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/lms"
	"github.com/trezcool/masomo-lms/core/user"
)

// teacherApi serves the teacher portal.
// Every resource-scoped handler fetches its resource through the ownership check first:
// a resource of another teacher is reported as not found.
type teacherApi struct {
	svc      *lms.Service
	validate *validator.Validate
}

func registerTeacherAPI(g *echo.Group, deps ServerDeps) {
	api := teacherApi{svc: deps.LMSSvc, validate: deps.Validate}

	tg := g.Group("/teacher", authMiddleware(deps.Guard, user.RoleTeacher))

	tg.GET("/profile/setup", api.retrieveProfile)
	tg.POST("/profile/setup", api.setupProfile)

	tg.GET("/courses", api.queryCourses)
	tg.POST("/courses", api.createCourse)
	tg.GET("/courses/:courseId", api.retrieveCourse)
	tg.PUT("/courses/:courseId", api.updateCourse)
	tg.DELETE("/courses/:courseId", api.destroyCourse)
	tg.GET("/courses/:courseId/lessons", api.queryLessons)

	tg.POST("/lessons", api.createLesson)
	tg.GET("/lessons/:lessonId", api.retrieveLesson)
	tg.PUT("/lessons/:lessonId", api.updateLesson)
	tg.DELETE("/lessons/:lessonId", api.destroyLesson)

	tg.GET("/assignments", api.queryAssignments)
	tg.POST("/assignments", api.createAssignment)
	tg.GET("/assignments/:assignmentId", api.retrieveAssignment)
	tg.PUT("/assignments/:assignmentId", api.updateAssignment)
	tg.DELETE("/assignments/:assignmentId", api.destroyAssignment)

	tg.GET("/submissions", api.querySubmissions)
	tg.GET("/submissions/:submissionId", api.retrieveSubmission)
	tg.PUT("/submissions/:submissionId", api.gradeSubmission)

	tg.GET("/quizzes", api.queryQuizzes)
	tg.POST("/quizzes", api.createQuiz)
	tg.GET("/quizzes/:quizId", api.retrieveQuiz)
	tg.PUT("/quizzes/:quizId", api.updateQuiz)
	tg.DELETE("/quizzes/:quizId", api.destroyQuiz)

	tg.GET("/students", api.queryStudents)
	tg.GET("/payments", api.queryPayments)
	tg.GET("/dashboard", api.dashboard)
	tg.GET("/analytics", api.analytics)
}

// Profile

func (api *teacherApi) retrieveProfile(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	prof, err := api.svc.TeacherProfile(ctx.Request().Context(), ident)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *teacherApi) setupProfile(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	var data lms.TeacherProfileData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeacherProfileData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	prof, err := api.svc.SetupTeacherProfile(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "setting up teacher profile")
	}
	return ctx.JSON(http.StatusOK, prof)
}

// Courses

func (api *teacherApi) ownedCourse(ctx echo.Context) (lms.Course, error) {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return lms.Course{}, err
	}
	id, err := pathID(ctx, "courseId", lms.KindCourse)
	if err != nil {
		return lms.Course{}, err
	}
	return api.svc.OwnedCourse(ctx.Request().Context(), ident, id)
}

func (api *teacherApi) queryCourses(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.TeacherCourses(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *teacherApi) createCourse(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	var data lms.CourseData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	c, err := api.svc.CreateCourse(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *teacherApi) retrieveCourse(ctx echo.Context) error {
	c, err := api.ownedCourse(ctx)
	if err != nil {
		return err
	}
	detail, err := api.svc.CourseDetail(ctx.Request().Context(), c, false)
	if err != nil {
		return errors.Wrap(err, "getting course detail")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *teacherApi) updateCourse(ctx echo.Context) error {
	c, err := api.ownedCourse(ctx)
	if err != nil {
		return err
	}
	var data lms.CourseData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	c, err = api.svc.UpdateCourse(ctx.Request().Context(), c, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *teacherApi) destroyCourse(ctx echo.Context) error {
	c, err := api.ownedCourse(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCourse(ctx.Request().Context(), c); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Lessons

func (api *teacherApi) ownedLesson(ctx echo.Context) (lms.Lesson, error) {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return lms.Lesson{}, err
	}
	id, err := pathID(ctx, "lessonId", lms.KindLesson)
	if err != nil {
		return lms.Lesson{}, err
	}
	return api.svc.OwnedLesson(ctx.Request().Context(), ident, id)
}

func (api *teacherApi) queryLessons(ctx echo.Context) error {
	c, err := api.ownedCourse(ctx)
	if err != nil {
		return err
	}
	lessons, err := api.svc.CourseLessons(ctx.Request().Context(), c)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *teacherApi) createLesson(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	var data lms.LessonData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	l, err := api.svc.CreateLesson(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *teacherApi) retrieveLesson(ctx echo.Context) error {
	l, err := api.ownedLesson(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *teacherApi) updateLesson(ctx echo.Context) error {
	l, err := api.ownedLesson(ctx)
	if err != nil {
		return err
	}
	ident, _ := contextIdentity(ctx)
	var data lms.LessonData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	l, err = api.svc.UpdateLesson(ctx.Request().Context(), ident, l, data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *teacherApi) destroyLesson(ctx echo.Context) error {
	l, err := api.ownedLesson(ctx)
	if err != nil {
		return err
	}
	ident, _ := contextIdentity(ctx)
	if err = api.svc.DeleteLesson(ctx.Request().Context(), ident, l); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Assignments & Submissions

func (api *teacherApi) ownedAssignment(ctx echo.Context) (lms.Assignment, error) {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return lms.Assignment{}, err
	}
	id, err := pathID(ctx, "assignmentId", lms.KindAssignment)
	if err != nil {
		return lms.Assignment{}, err
	}
	return api.svc.OwnedAssignment(ctx.Request().Context(), ident, id)
}

func (api *teacherApi) queryAssignments(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	courseID, err := queryID(ctx, "course_id")
	if err != nil {
		return err
	}
	assignments, err := api.svc.TeacherAssignments(ctx.Request().Context(), ident, courseID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *teacherApi) createAssignment(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	var data lms.AssignmentData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignmentData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	a, err := api.svc.CreateAssignment(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *teacherApi) retrieveAssignment(ctx echo.Context) error {
	a, err := api.ownedAssignment(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *teacherApi) updateAssignment(ctx echo.Context) error {
	a, err := api.ownedAssignment(ctx)
	if err != nil {
		return err
	}
	var data lms.AssignmentData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignmentData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	a, err = api.svc.UpdateAssignment(ctx.Request().Context(), a, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *teacherApi) destroyAssignment(ctx echo.Context) error {
	a, err := api.ownedAssignment(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAssignment(ctx.Request().Context(), a); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teacherApi) ownedSubmission(ctx echo.Context) (lms.SubmissionDetail, error) {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return lms.SubmissionDetail{}, err
	}
	id, err := pathID(ctx, "submissionId", lms.KindSubmission)
	if err != nil {
		return lms.SubmissionDetail{}, err
	}
	return api.svc.OwnedSubmission(ctx.Request().Context(), ident, id)
}

func (api *teacherApi) querySubmissions(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	assignmentID, err := queryID(ctx, "assignment_id")
	if err != nil {
		return err
	}
	subs, err := api.svc.TeacherSubmissions(ctx.Request().Context(), ident, assignmentID)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *teacherApi) retrieveSubmission(ctx echo.Context) error {
	sub, err := api.ownedSubmission(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *teacherApi) gradeSubmission(ctx echo.Context) error {
	sub, err := api.ownedSubmission(ctx)
	if err != nil {
		return err
	}
	var data lms.GradeData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	sub, err = api.svc.GradeSubmission(ctx.Request().Context(), sub, data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// Quizzes

func (api *teacherApi) ownedQuiz(ctx echo.Context) (lms.Quiz, error) {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return lms.Quiz{}, err
	}
	id, err := pathID(ctx, "quizId", lms.KindQuiz)
	if err != nil {
		return lms.Quiz{}, err
	}
	return api.svc.OwnedQuiz(ctx.Request().Context(), ident, id)
}

func (api *teacherApi) queryQuizzes(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	courseID, err := queryID(ctx, "course_id")
	if err != nil {
		return err
	}
	quizzes, err := api.svc.TeacherQuizzes(ctx.Request().Context(), ident, courseID)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *teacherApi) createQuiz(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	var data lms.QuizData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuizData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	q, err := api.svc.CreateQuiz(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *teacherApi) retrieveQuiz(ctx echo.Context) error {
	q, err := api.ownedQuiz(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *teacherApi) updateQuiz(ctx echo.Context) error {
	q, err := api.ownedQuiz(ctx)
	if err != nil {
		return err
	}
	var data lms.QuizData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuizData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	q, err = api.svc.UpdateQuiz(ctx.Request().Context(), q, data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *teacherApi) destroyQuiz(ctx echo.Context) error {
	q, err := api.ownedQuiz(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteQuiz(ctx.Request().Context(), q); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Students, Payments & Stats

func (api *teacherApi) queryStudents(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	courseID, err := queryID(ctx, "course_id")
	if err != nil {
		return err
	}
	students, err := api.svc.TeacherStudents(ctx.Request().Context(), ident, courseID)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *teacherApi) queryPayments(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	courseID, err := queryID(ctx, "course_id")
	if err != nil {
		return err
	}
	payments, err := api.svc.TeacherPayments(ctx.Request().Context(), ident, courseID)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *teacherApi) dashboard(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Dashboard(ctx.Request().Context(), ident)
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *teacherApi) analytics(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	courseID, err := queryID(ctx, "course_id")
	if err != nil {
		return err
	}
	an, err := api.svc.Analytics(ctx.Request().Context(), ident, courseID)
	if err != nil {
		return errors.Wrap(err, "computing analytics")
	}
	return ctx.JSON(http.StatusOK, an)
}
