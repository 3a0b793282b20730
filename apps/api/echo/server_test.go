package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-lms/assets"
	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/auth"
	"github.com/trezcool/masomo-lms/core/lms"
	"github.com/trezcool/masomo-lms/core/user"
	emailsvc "github.com/trezcool/masomo-lms/services/email"
	logsvc "github.com/trezcool/masomo-lms/services/logger"
	"github.com/trezcool/masomo-lms/services/notify"
	"github.com/trezcool/masomo-lms/services/revocation"
	inmemdb "github.com/trezcool/masomo-lms/storage/database/inmem"
)

const testPassword = "Qz7#vK!w2Tr"

var (
	errMissingToken = httpErr{Error: "user not authenticated"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type testEnv struct {
	conf    *core.Config
	db      *inmemdb.DB
	srv     Server
	tokens  *auth.Tokens
	usrRepo user.Repository
	lmsSvc  *lms.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := &core.Config{
		AppName:   "Masomo",
		SecretKey: "secret",
		TestMode:  true,
		Server: core.ServerConfig{
			AuthCookieName:            "auth-token",
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
	logger := logsvc.NewDiscardLogger()
	core.ParseEmailTemplates(assets.FS, conf, logger)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	hub := notify.NewHub(logger)
	lmsSvc := lms.NewService(inmemdb.NewLMSRepository(db), mailSvc, hub, logger)
	tokens := auth.NewTokens(conf)
	guard := auth.NewGuard(tokens, usrSvc, revocation.NewMemoryStore(), conf.Server.AuthCookieName)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up server
	srv := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		DisableReqLogs: true,
		Tokens:         tokens,
		Guard:          guard,
		UserSvc:        usrSvc,
		LMSSvc:         lmsSvc,
		Hub:            hub,
		Validate:       validate,
		Translator:     translator,
	})
	return &testEnv{conf: conf, db: db, srv: srv, tokens: tokens, usrRepo: usrRepo, lmsSvc: lmsSvc}
}

func (env *testEnv) createUser(t *testing.T, name, email string, role user.Role, isActive bool) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{Name: name, Email: email, Role: role, IsActive: isActive, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, usr.SetPassword(testPassword))
	usr, err := env.usrRepo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := env.tokens.Sign(env.tokens.UserClaims(usr))
	require.NoError(t, err)
	return token
}

// do serves the request and returns the recorded response.
func (env *testEnv) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	env.srv.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func unmarshallObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), obj), rec.Body.String())
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func runHttpTests(t *testing.T, env *testEnv, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, env.do(tt.method, tt.path, tt.token, tt.body))
		})
	}
}

func TestHome(t *testing.T) {
	env := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	env.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Masomo API!", rec.Body.String())
}
