package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/api"
	"github.com/pinkypartner/pinkypartner/internal/app"
	iauth "github.com/pinkypartner/pinkypartner/internal/auth"
	sharedtestutil "github.com/pinkypartner/pinkypartner/internal/database/testutil"
	"github.com/pinkypartner/pinkypartner/internal/models"
	"github.com/pinkypartner/pinkypartner/internal/realtime"
	"github.com/pinkypartner/pinkypartner/pkg/response"
)

// WebhookSecret is the billing secret configured in every test environment.
const WebhookSecret = "test-webhook-secret"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Hub      *realtime.Hub
	Services *api.Services
}

// NewEnv provisions a fresh handler test environment with migrations applied.
// Rate limiting is disabled.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Billing: app.BillingConfig{
			FreeMemberLimit:    1,
			PremiumMemberLimit: 999,
			WebhookSecret:      WebhookSecret,
		},
		Notifications: app.NotificationConfig{Enabled: true},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	hub := realtime.NewHub()
	svc, err := api.NewServices(db, cfg, nil)
	require.NoError(t, err)

	router, err := api.NewRouter(api.RouterDeps{
		DB:       db,
		Config:   cfg,
		JWT:      jwtSvc,
		Services: svc,
		Hub:      hub,
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Hub:      hub,
		Services: svc,
	}
}

// UserPayload captures the subset of user fields returned from auth endpoints.
type UserPayload struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	Tier         string `json:"tier"`
	ReferralCode string `json:"referral_code"`
}

// SessionResult bundles the JSON response from the sign-up and login endpoints.
type SessionResult struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        UserPayload `json:"user"`
	Referral    struct {
		ReferralCode string `json:"referral_code"`
		ContractID   string `json:"contract_id"`
	} `json:"referral"`
	// Cookies holds the Set-Cookie headers of the response.
	Cookies []*http.Cookie `json:"-"`
}

// SignUp registers a new account and returns the issued session.
func (e *Env) SignUp(email, password string, cookies ...*http.Cookie) SessionResult {
	e.T.Helper()

	w := e.RequestWithCookies(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":    email,
		"password": password,
	}, "", cookies...)
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var result SessionResult
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	result.Cookies = w.Result().Cookies()
	return result
}

// Login authenticates with credentials and returns the issued session.
func (e *Env) Login(email, password string, cookies ...*http.Cookie) SessionResult {
	e.T.Helper()

	w := e.RequestWithCookies(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "", cookies...)
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var result SessionResult
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	result.Cookies = w.Result().Cookies()
	return result
}

// SetTier changes the stored tier of a user directly.
func (e *Env) SetTier(userID string, tier models.PaidTier) {
	e.T.Helper()
	require.NoError(e.T, e.DB.Model(&models.User{}).Where("id = ?", userID).Update("tier", tier).Error)
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// ErrorCode returns the error code of a failed response.
func ErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := DecodeResponse(t, w)
	require.False(t, resp.Success, w.Body.String())
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.RequestWithCookies(method, path, body, token)
}

// RequestWithCookies is Request with extra cookies attached.
func (e *Env) RequestWithCookies(method, path string, body any, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.RequestWithHeaders(method, path, body, token, nil, cookies...)
}

// RequestWithHeaders is Request with extra headers and cookies attached.
func (e *Env) RequestWithHeaders(method, path string, body any, token string, headers map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
