package echoapi

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-lms/core/lms"
	"github.com/trezcool/masomo-lms/core/user"
)

func registerBody(name, email, role string) []byte {
	return []byte(fmt.Sprintf(
		`{"name":%q,"email":%q,"password":%q,"password_confirm":%q,"role":%q}`,
		name, email, testPassword, testPassword, role,
	))
}

func TestUserAPI_Register(t *testing.T) {
	env := setup(t)
	env.createUser(t, "Existing", "existing@test.cd", user.RoleStudent, true)

	runHttpTests(t, env, []httpTest{
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/api/auth/register",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"name": "this field is required",
				"email": "this field is required",
				"password": "this field is required",
				"password_confirm": "this field is required"
			}`),
		},
		{
			name:     "duplicate email",
			method:   http.MethodPost,
			path:     "/api/auth/register",
			body:     registerBody("Someone", "EXISTING@test.cd", "STUDENT"),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email":"a user with this email already exists"}`),
		},
		{
			name:     "admin",
			method:   http.MethodPost,
			path:     "/api/auth/register",
			body:     registerBody("Admin", "admin@test.cd", "ADMIN"),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"role":"admins cannot register themselves"}`),
		},
	})

	rec := env.do(http.MethodPost, "/api/auth/register", "", registerBody("Teacher", "teacher@test.cd", "TEACHER"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "password")
	var usr user.User
	unmarshallObj(t, rec, &usr)
	assert.Equal(t, user.RoleTeacher, usr.Role)
	assert.True(t, usr.IsActive)
	assert.Equal(t, 1, env.db.TeacherProfileCount(usr.ID))

	// defaults to student
	rec = env.do(http.MethodPost, "/api/auth/register", "", registerBody("Student", "student@test.cd", ""))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	unmarshallObj(t, rec, &usr)
	assert.Equal(t, user.RoleStudent, usr.Role)
}

func TestUserAPI_LoginLogout(t *testing.T) {
	env := setup(t)
	env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	env.createUser(t, "Inactive", "inactive@test.cd", user.RoleTeacher, false)

	login := func(email, password string) []byte {
		return []byte(fmt.Sprintf(`{"email":%q,"password":%q}`, email, password))
	}

	runHttpTests(t, env, []httpTest{
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     login("teacher@test.cd", "wrong"),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error":"authentication failed"}`),
		},
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     login("nobody@test.cd", testPassword),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error":"authentication failed"}`),
		},
		{
			name:     "deactivated",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     login("inactive@test.cd", testPassword),
			wantCode: http.StatusForbidden,
			wantData: []byte(`{"error":"account deactivated"}`),
		},
	})

	rec := env.do(http.MethodPost, "/api/auth/login", "", login("Teacher@Test.cd", testPassword))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "password")
	var resp LoginResponse
	unmarshallObj(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "teacher@test.cd", resp.User.Email)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == env.conf.Server.AuthCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	rec = env.do(http.MethodGet, "/api/profile", resp.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "password")

	// refreshing keeps the session alive
	rec = env.do(http.MethodPost, "/api/auth/token-refresh", resp.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refreshed LoginResponse
	unmarshallObj(t, rec, &refreshed)
	require.NotEmpty(t, refreshed.Token)

	rec = env.do(http.MethodPost, "/api/auth/logout", resp.Token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/api/profile", resp.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, string(marshallObj(t, errMissingToken)), rec.Body.String())
}

func TestUserAPI_Profile(t *testing.T) {
	env := setup(t)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Student", "student@test.cd", user.RoleStudent, true)
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)

	rec := env.do(http.MethodPut, "/api/profile", env.getToken(t, teacher), []byte(`{"name":"Dr Teacher","bio":"Physicist","experience":3}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tResp struct {
		User    user.User          `json:"user"`
		Profile lms.TeacherProfile `json:"profile"`
	}
	unmarshallObj(t, rec, &tResp)
	assert.Equal(t, "Dr Teacher", tResp.User.Name)
	assert.Equal(t, "Physicist", tResp.Profile.Bio)
	assert.Equal(t, 3, tResp.Profile.Experience)
	assert.Equal(t, 1, env.db.TeacherProfileCount(teacher.ID))

	rec = env.do(http.MethodPut, "/api/profile", env.getToken(t, student), []byte(`{"grade_level":"Year 12","interests":["physics"," maths "]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sResp struct {
		User    user.User          `json:"user"`
		Profile lms.StudentProfile `json:"profile"`
	}
	unmarshallObj(t, rec, &sResp)
	assert.Equal(t, "Student", sResp.User.Name)
	assert.Equal(t, "Year 12", sResp.Profile.GradeLevel)
	assert.Equal(t, []string{"physics", "maths"}, sResp.Profile.Interests)

	rec = env.do(http.MethodGet, "/api/profile", env.getToken(t, admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var aResp map[string]interface{}
	unmarshallObj(t, rec, &aResp)
	assert.Nil(t, aResp["profile"])

	rec = env.do(http.MethodPut, "/api/profile", env.getToken(t, student), []byte(`{"name":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserAPI_PasswordReset(t *testing.T) {
	env := setup(t)
	env.createUser(t, "Student", "student@test.cd", user.RoleStudent, true)
	want := marshallObj(t, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	runHttpTests(t, env, []httpTest{
		{
			name:     "known email",
			method:   http.MethodPost,
			path:     "/api/auth/password-reset",
			body:     []byte(`{"email":"student@test.cd"}`),
			wantCode: http.StatusOK,
			wantData: want,
		},
		{
			name:     "unknown email looks the same",
			method:   http.MethodPost,
			path:     "/api/auth/password-reset",
			body:     []byte(`{"email":"nobody@test.cd"}`),
			wantCode: http.StatusOK,
			wantData: want,
		},
		{
			name:     "invalid token",
			method:   http.MethodPost,
			path:     "/api/auth/password-reset-confirm",
			body:     []byte(fmt.Sprintf(`{"uid":"MQ","token":"bad-token","password":%q,"password_confirm":%q}`, testPassword, testPassword)),
			wantCode: http.StatusBadRequest,
		},
	})
}

func TestAdminAPI_Users(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	env.createUser(t, "Student", "student@test.cd", user.RoleStudent, true)
	adminToken, teacherToken := env.getToken(t, admin), env.getToken(t, teacher)

	rec := env.do(http.MethodGet, "/api/admin/users?role=TEACHER&role=STUDENT&ordering=name", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "password")
	var users []user.User
	unmarshallObj(t, rec, &users)
	require.Len(t, users, 2)
	assert.Equal(t, "Student", users[0].Name)
	assert.Equal(t, "Teacher", users[1].Name)

	runHttpTests(t, env, []httpTest{
		{
			name:     "unknown user",
			method:   http.MethodGet,
			path:     "/api/admin/users/9999",
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, errNotFound),
		},
		{
			name:     "invalid is_active",
			method:   http.MethodGet,
			path:     "/api/admin/users?is_active=maybe",
			token:    adminToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing is_active",
			method:   http.MethodPut,
			path:     fmt.Sprintf("/api/admin/users/%d/active", teacher.ID),
			body:     []byte(`{}`),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"is_active":"this field is required"}`),
		},
		{
			name:     "deactivate self",
			method:   http.MethodPut,
			path:     fmt.Sprintf("/api/admin/users/%d/active", admin.ID),
			body:     []byte(`{"is_active":false}`),
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, errForbidden),
		},
	})

	rec = env.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d/active", teacher.ID), adminToken, []byte(`{"is_active":false}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var usr user.User
	unmarshallObj(t, rec, &usr)
	assert.False(t, usr.IsActive)

	// the deactivated teacher's token no longer works
	rec = env.do(http.MethodGet, "/api/teacher/courses", teacherToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/api/admin/users?is_active=false", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	unmarshallObj(t, rec, &users)
	require.Len(t, users, 1)
	assert.Equal(t, teacher.ID, users[0].ID)
}
