package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-lms/core/user"
)

type route struct {
	method string
	path   string
}

var (
	teacherRoutes = []route{
		{http.MethodGet, "/api/teacher/profile/setup"},
		{http.MethodPost, "/api/teacher/profile/setup"},
		{http.MethodGet, "/api/teacher/courses"},
		{http.MethodPost, "/api/teacher/courses"},
		{http.MethodGet, "/api/teacher/courses/1"},
		{http.MethodPut, "/api/teacher/courses/1"},
		{http.MethodDelete, "/api/teacher/courses/1"},
		{http.MethodGet, "/api/teacher/courses/1/lessons"},
		{http.MethodPost, "/api/teacher/lessons"},
		{http.MethodGet, "/api/teacher/lessons/1"},
		{http.MethodPut, "/api/teacher/lessons/1"},
		{http.MethodDelete, "/api/teacher/lessons/1"},
		{http.MethodGet, "/api/teacher/assignments"},
		{http.MethodPost, "/api/teacher/assignments"},
		{http.MethodGet, "/api/teacher/assignments/1"},
		{http.MethodPut, "/api/teacher/assignments/1"},
		{http.MethodDelete, "/api/teacher/assignments/1"},
		{http.MethodGet, "/api/teacher/submissions"},
		{http.MethodGet, "/api/teacher/submissions/1"},
		{http.MethodPut, "/api/teacher/submissions/1"},
		{http.MethodGet, "/api/teacher/quizzes"},
		{http.MethodPost, "/api/teacher/quizzes"},
		{http.MethodGet, "/api/teacher/quizzes/1"},
		{http.MethodPut, "/api/teacher/quizzes/1"},
		{http.MethodDelete, "/api/teacher/quizzes/1"},
		{http.MethodGet, "/api/teacher/students"},
		{http.MethodGet, "/api/teacher/payments"},
		{http.MethodGet, "/api/teacher/dashboard"},
		{http.MethodGet, "/api/teacher/analytics"},
	}

	studentRoutes = []route{
		{http.MethodGet, "/api/student/enrollments"},
		{http.MethodPost, "/api/student/enrollments"},
		{http.MethodPut, "/api/student/enrollments/1/progress"},
		{http.MethodGet, "/api/student/assignments"},
		{http.MethodPost, "/api/student/assignments/1/submissions"},
		{http.MethodGet, "/api/student/submissions"},
		{http.MethodGet, "/api/student/quizzes"},
		{http.MethodGet, "/api/student/quizzes/1/attempts"},
		{http.MethodPost, "/api/student/quizzes/1/attempts"},
		{http.MethodPost, "/api/student/courses/1/reviews"},
	}

	adminRoutes = []route{
		{http.MethodGet, "/api/admin/users"},
		{http.MethodGet, "/api/admin/users/roles"},
		{http.MethodGet, "/api/admin/users/1"},
		{http.MethodPut, "/api/admin/users/1/active"},
	}

	anyRoleRoutes = []route{
		{http.MethodPost, "/api/auth/logout"},
		{http.MethodPost, "/api/auth/token-refresh"},
		{http.MethodGet, "/api/profile"},
		{http.MethodPut, "/api/profile"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodGet, "/api/notifications/ws"},
		{http.MethodPut, "/api/notifications/1/read"},
	}
)

func TestAuthMiddleware_Unauthenticated(t *testing.T) {
	env := setup(t)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	inactive := env.createUser(t, "Inactive", "inactive@test.cd", user.RoleTeacher, false)

	expired := func() string {
		defer func(now func() time.Time) { env.tokens.NowFunc = now }(env.tokens.NowFunc)
		env.tokens.NowFunc = func() time.Time { return time.Now().Add(-time.Hour) }
		return env.getToken(t, teacher)
	}()

	// same user, role changed since login
	promoted := teacher
	promoted.Role = user.RoleAdmin

	tokens := map[string]string{
		"no token":        "",
		"malformed token": "not-a-jwt",
		"expired token":   expired,
		"inactive user":   env.getToken(t, inactive),
		"role changed":    env.getToken(t, promoted),
	}

	var routes []route
	routes = append(routes, teacherRoutes...)
	routes = append(routes, studentRoutes...)
	routes = append(routes, adminRoutes...)
	routes = append(routes, anyRoleRoutes...)

	var tests []httpTest
	for name, token := range tokens {
		for _, r := range routes {
			tests = append(tests, httpTest{
				name:     name + " " + r.method + " " + r.path,
				method:   r.method,
				path:     r.path,
				body:     []byte(`{"title":"Physics","description":"Mechanics","category":"Science"}`),
				token:    token,
				wantCode: http.StatusUnauthorized,
				wantData: marshallObj(t, errMissingToken),
			})
		}
	}
	runHttpTests(t, env, tests)

	// no mutation
	assert.Zero(t, env.db.CourseCount())
	assert.Zero(t, env.db.TeacherProfileCount(teacher.ID))
}

func TestAuthMiddleware_Cookie(t *testing.T) {
	env := setup(t)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)

	req, rec := newRequest(http.MethodGet, "/api/teacher/courses")
	req.AddCookie(&http.Cookie{Name: env.conf.Server.AuthCookieName, Value: env.getToken(t, teacher)})
	env.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	// the header wins over the cookie
	req, rec = newAuthRequest(http.MethodGet, "/api/teacher/courses", "not-a-jwt")
	req.AddCookie(&http.Cookie{Name: env.conf.Server.AuthCookieName, Value: env.getToken(t, teacher)})
	env.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_WrongRole(t *testing.T) {
	env := setup(t)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Student", "student@test.cd", user.RoleStudent, true)
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)

	cases := []struct {
		caller user.User
		routes []route
	}{
		{student, teacherRoutes},
		{admin, teacherRoutes},
		{teacher, studentRoutes},
		{admin, studentRoutes},
		{teacher, adminRoutes},
		{student, adminRoutes},
	}

	var tests []httpTest
	for _, c := range cases {
		token := env.getToken(t, c.caller)
		for _, r := range c.routes {
			tests = append(tests, httpTest{
				name:     string(c.caller.Role) + " " + r.method + " " + r.path,
				method:   r.method,
				path:     r.path,
				body:     []byte(`{"title":"Physics","description":"Mechanics","category":"Science"}`),
				token:    token,
				wantCode: http.StatusForbidden,
				wantData: marshallObj(t, errForbidden),
			})
		}
	}
	runHttpTests(t, env, tests)

	// no mutation
	assert.Zero(t, env.db.CourseCount())
	assert.Zero(t, env.db.TeacherProfileCount(student.ID))
	assert.Zero(t, env.db.TeacherProfileCount(admin.ID))
}
