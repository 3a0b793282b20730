package echoapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/auth"
	"github.com/trezcool/masomo-lms/core/lms"
	"github.com/trezcool/masomo-lms/core/user"
)

var errNoSelfRegisterAdmin = "admins cannot register themselves"

type userApi struct {
	conf     *core.Config
	logger   core.Logger
	tokens   *auth.Tokens
	guard    *auth.Guard
	svc      *user.Service
	lmsSvc   *lms.Service
	validate *validator.Validate
}

func newUserApi(deps ServerDeps) *userApi {
	return &userApi{
		conf:     deps.Conf,
		logger:   deps.Logger,
		tokens:   deps.Tokens,
		guard:    deps.Guard,
		svc:      deps.UserSvc,
		lmsSvc:   deps.LMSSvc,
		validate: deps.Validate,
	}
}

func registerAccountAPI(g *echo.Group, deps ServerDeps) {
	api := newUserApi(deps)

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	authed := authMiddleware(deps.Guard)
	ag.POST("/logout", api.logout, authed)
	ag.POST("/token-refresh", api.refreshToken, authed)

	pg := g.Group("/profile", authed)
	pg.GET("", api.retrieveProfile)
	pg.PUT("", api.updateProfile)
}

func registerAdminAPI(g *echo.Group, deps ServerDeps) {
	api := newUserApi(deps)

	ug := g.Group("/admin/users", authMiddleware(deps.Guard, user.RoleAdmin))
	ug.GET("", api.query)
	ug.GET("/roles", api.queryRoles)
	ug.GET("/:id", api.retrieve)
	ug.PUT("/:id/active", api.setActive)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}
	if data.Role == user.RoleAdmin {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoSelfRegisterAdmin})
	}

	reqCtx := ctx.Request().Context()
	usr, err := api.svc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}

	ident := auth.IdentityFromUser(usr)
	switch usr.Role {
	case user.RoleTeacher:
		_, err = api.lmsSvc.TeacherProfile(reqCtx, ident)
	case user.RoleStudent:
		_, err = api.lmsSvc.StudentProfile(reqCtx, ident)
	case user.RoleAdmin:
	}
	if err != nil {
		// provisioned again on first use
		api.logger.Error(fmt.Sprintf("creating profile: %v", err), err, ident)
	}

	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidCredentials:
			return errAuthenticationFailed
		case user.ErrAccountDeactivated:
			return errAccountDeactivated
		default:
			return errors.Wrap(err, "authenticating")
		}
	}

	claims := api.tokens.UserClaims(usr)
	token, err := api.tokens.Sign(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	setAuthCookie(ctx, api.conf, token, claims.ExpiresAt.Time)
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *userApi) logout(ctx echo.Context) error {
	sess, ok := contextSession(ctx)
	if !ok {
		return errUnauthorized
	}
	if err := api.guard.Revoke(ctx.Request().Context(), sess); err != nil {
		return errors.Wrap(err, "revoking session")
	}
	clearAuthCookie(ctx, api.conf)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	sess, ok := contextSession(ctx)
	if !ok {
		return errUnauthorized
	}
	// the guard already checked that the user is still active
	usr, err := api.svc.GetByID(ctx.Request().Context(), sess.ID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	token, err := api.tokens.Refresh(sess.Claims, usr)
	if err != nil {
		if errors.Cause(err) == auth.ErrRefreshExpired {
			return errRefreshExpired
		}
		return errors.Wrap(err, "refreshing token")
	}
	setAuthCookie(ctx, api.conf, token, api.tokens.NowFunc().Add(api.conf.Server.JWTExpirationDelta))
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error(fmt.Sprintf("requesting password reset: %v", err), err)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) retrieveProfile(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	usr, err := api.svc.GetByID(reqCtx, ident.ID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	resp := ProfileResponse{User: usr}
	switch ident.Role {
	case user.RoleTeacher:
		resp.Profile, err = api.lmsSvc.TeacherProfile(reqCtx, ident)
	case user.RoleStudent:
		resp.Profile, err = api.lmsSvc.StudentProfile(reqCtx, ident)
	case user.RoleAdmin:
	}
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, resp)
}

// updateProfile updates the user's name along with the fields of their role's profile.
func (api *userApi) updateProfile(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading body")
	}
	unmarshal := func(v interface{}) error {
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body").SetInternal(err)
		}
		return nil
	}

	reqCtx := ctx.Request().Context()
	usr, err := api.svc.GetByID(reqCtx, ident.ID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	var uu user.UpdateUser
	if err = unmarshal(&uu); err != nil {
		return err
	}
	if err = uu.Validate(usr, api.validate); err != nil {
		return err
	}

	resp := ProfileResponse{}
	switch ident.Role {
	case user.RoleTeacher:
		var data lms.TeacherProfileData
		if err = unmarshal(&data); err != nil {
			return err
		}
		if err = data.Validate(api.validate); err != nil {
			return err
		}
		resp.Profile, err = api.lmsSvc.SetupTeacherProfile(reqCtx, ident, data)
	case user.RoleStudent:
		var data lms.StudentProfileData
		if err = unmarshal(&data); err != nil {
			return err
		}
		if err = data.Validate(api.validate); err != nil {
			return err
		}
		resp.Profile, err = api.lmsSvc.UpdateStudentProfile(reqCtx, ident, data)
	case user.RoleAdmin:
	}
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}

	resp.User, err = api.svc.Update(reqCtx, usr, uu)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	var roles []string
	err := echo.QueryParamsBinder(ctx).
		String("search", &filter.Search).
		Strings("role", &roles).
		CustomFunc("is_active", func(values []string) []error {
			isActive, err := strconv.ParseBool(values[0])
			if err != nil {
				return []error{err}
			}
			filter.IsActive = &isActive
			return nil
		}).
		BindError()
	if err != nil {
		return err
	}
	for _, r := range roles {
		filter.Roles = append(filter.Roles, user.Role(strings.ToUpper(r)))
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Filter(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) getUser(ctx echo.Context) (user.User, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return user.User{}, core.NewNotFoundError("user", 0)
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, core.NewNotFoundError("user", id)
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	return usr, nil
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.getUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) setActive(ctx echo.Context) error {
	usr, err := api.getUser(ctx)
	if err != nil {
		return err
	}

	var data SetActiveRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetActiveRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	// Say No to Suicide! admins cannot deactivate themselves
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ident.ID {
		return errHttpForbidden
	}

	usr, err = api.svc.SetActive(ctx.Request().Context(), usr, *data.IsActive)
	if err != nil {
		return errors.Wrap(err, "setting user active")
	}
	return ctx.JSON(http.StatusOK, usr)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	ProfileResponse struct {
		User    user.User   `json:"user"`
		Profile interface{} `json:"profile"` // null for admins
	}

	SetActiveRequest struct {
		IsActive *bool `json:"is_active" validate:"required"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
