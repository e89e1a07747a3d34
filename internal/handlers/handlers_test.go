package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/untibullet/bug-bounty/internal/auth"
	"github.com/untibullet/bug-bounty/internal/metrics"
	"github.com/untibullet/bug-bounty/internal/models"
	"github.com/untibullet/bug-bounty/internal/repository"
	"github.com/untibullet/bug-bounty/internal/workflow"
	"go.uber.org/zap"
)

type testServer struct {
	t *testing.T
	e *echo.Echo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := repository.NewMemory()
	logger := zap.NewNop()
	svc := workflow.New(store, metrics.New(prometheus.NewRegistry()), logger)
	tokens := auth.NewManager("test-secret", time.Hour, 24*time.Hour, "bug-bounty")

	e := echo.New()
	New(svc, store, tokens, logger).RegisterRoutes(e)
	return &testServer{t: t, e: e}
}

func (s *testServer) do(method, path, token string, body interface{}, out interface{}) int {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()

	s.e.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

// signUp регистрирует пользователя и возвращает его токен
func (s *testServer) signUp(name string) (string, models.User) {
	s.t.Helper()

	password := "Secret123"
	code := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": name,
		"email":    name + "@example.com",
		"password": password,
	}, nil)
	require.Equal(s.t, http.StatusCreated, code)

	var resp struct {
		User        models.User `json:"user"`
		AccessToken string      `json:"access_token"`
	}
	code = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    name + "@example.com",
		"password": password,
	}, &resp)
	require.Equal(s.t, http.StatusOK, code)
	require.NotEmpty(s.t, resp.AccessToken)
	return resp.AccessToken, resp.User
}

func (s *testServer) createBug(token string, bounty int64) models.Bug {
	s.t.Helper()

	var resp struct {
		Bug models.Bug `json:"bug"`
	}
	code := s.do(http.MethodPost, "/api/v1/bugs", token, map[string]interface{}{
		"title":         "XSS in comments",
		"description":   "Script tags are rendered unescaped",
		"bounty_amount": bounty,
	}, &resp)
	require.Equal(s.t, http.StatusCreated, code)
	return resp.Bug
}

func (s *testServer) submit(token string, bug models.Bug) (int, workflow.SubmitResult) {
	s.t.Helper()

	var resp workflow.SubmitResult
	code := s.do(http.MethodPost, "/api/v1/submissions/"+bug.ID.String(), token, map[string]string{
		"description": "Escape output in template",
		"proof_link":  "https://github.com/example/site/pull/3",
	}, &resp)
	return code, resp
}

func (s *testServer) rewards(token string) int64 {
	s.t.Helper()

	var resp struct {
		User models.User `json:"user"`
	}
	require.Equal(s.t, http.StatusOK, s.do(http.MethodGet, "/api/v1/auth/me", token, nil, &resp))
	return resp.User.TotalRewards
}

func TestApprovalFlow(t *testing.T) {
	s := newTestServer(t)
	aliceToken, alice := s.signUp("alice")
	bobToken, bob := s.signUp("bob")
	carolToken, _ := s.signUp("carol")

	bug := s.createBug(aliceToken, 500)
	assert.Equal(t, models.BugStatusOpen, bug.Status)
	assert.Equal(t, alice.ID, bug.CreatorID)

	code, bobSub := s.submit(bobToken, bug)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, models.BugStatusInReview, bobSub.BugStatus)
	code, carolSub := s.submit(carolToken, bug)
	require.Equal(t, http.StatusCreated, code)

	var approved struct {
		Bug      models.Bug `json:"bug"`
		Rejected int        `json:"rejected"`
		Awarded  int64      `json:"awarded"`
	}
	code = s.do(http.MethodPatch, "/api/v1/submissions/"+bobSub.Submission.ID.String()+"/approve", aliceToken, nil, &approved)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.BugStatusClosed, approved.Bug.Status)
	assert.Equal(t, 1, approved.Rejected)
	assert.Equal(t, int64(500), approved.Awarded)

	var details models.BugDetails
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/bugs/"+bug.ID.String(), "", nil, &details))
	assert.Equal(t, models.BugStatusClosed, details.Bug.Status)
	require.NotNil(t, details.Bug.Winner)
	assert.Equal(t, bob.ID, details.Bug.Winner.ID)
	for _, sub := range details.Submissions {
		require.NotNil(t, sub.Submitter)
		if sub.ID == carolSub.Submission.ID {
			assert.Equal(t, models.SubmissionStatusRejected, sub.Status)
		} else {
			assert.Equal(t, models.SubmissionStatusApproved, sub.Status)
		}
	}

	var errResp ErrorResponse
	code = s.do(http.MethodPatch, "/api/v1/submissions/"+carolSub.Submission.ID.String()+"/approve", aliceToken, nil, &errResp)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, ErrCodeInvalidState, errResp.Error.Code)

	assert.Equal(t, int64(500), s.rewards(bobToken))
	assert.Equal(t, int64(0), s.rewards(carolToken))

	var mine struct {
		Submissions []models.Submission `json:"submissions"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/submissions/my", bobToken, nil, &mine))
	require.Len(t, mine.Submissions, 1)
	assert.Equal(t, models.SubmissionStatusApproved, mine.Submissions[0].Status)
	require.NotNil(t, mine.Submissions[0].Bug)
	assert.Equal(t, int64(500), mine.Submissions[0].Bug.BountyAmount)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signUp("alice")
	bobToken, _ := s.signUp("bob")
	bug := s.createBug(aliceToken, 100)

	code, sub := s.submit(bobToken, bug)
	require.Equal(t, http.StatusCreated, code)

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"no token", http.MethodPost, "/api/v1/bugs", "", map[string]interface{}{}, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"invalid bounty", http.MethodPost, "/api/v1/bugs", aliceToken,
			map[string]interface{}{"title": "t", "description": "d", "bounty_amount": 0}, http.StatusBadRequest, ErrCodeValidation},
		{"malformed bug id", http.MethodGet, "/api/v1/bugs/xyz", "", nil, http.StatusBadRequest, ErrCodeValidation},
		{"unknown bug", http.MethodGet, "/api/v1/bugs/00000000-0000-0000-0000-000000000001", "", nil, http.StatusNotFound, ErrCodeNotFound},
		{"duplicate submission", http.MethodPost, "/api/v1/submissions/" + bug.ID.String(), bobToken,
			map[string]string{"description": "again", "proof_link": "https://example.com/x"}, http.StatusConflict, ErrCodeConflict},
		{"creator submits", http.MethodPost, "/api/v1/submissions/" + bug.ID.String(), aliceToken,
			map[string]string{"description": "mine", "proof_link": "https://example.com/x"}, http.StatusForbidden, ErrCodeForbidden},
		{"non-creator approves", http.MethodPatch, "/api/v1/submissions/" + sub.Submission.ID.String() + "/approve", bobToken,
			nil, http.StatusForbidden, ErrCodeForbidden},
		{"non-creator deletes", http.MethodDelete, "/api/v1/bugs/" + bug.ID.String(), bobToken, nil, http.StatusForbidden, ErrCodeForbidden},
		{"unknown status filter", http.MethodGet, "/api/v1/bugs?status=done", "", nil, http.StatusBadRequest, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			code := s.do(tt.method, tt.path, tt.token, tt.body, &resp)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestDeleteBug(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signUp("alice")
	bobToken, _ := s.signUp("bob")

	open := s.createBug(aliceToken, 100)
	code, _ := s.submit(bobToken, open)
	require.Equal(t, http.StatusCreated, code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/v1/bugs/"+open.ID.String(), aliceToken, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/bugs/"+open.ID.String(), "", nil, nil))

	var mine struct {
		Submissions []models.Submission `json:"submissions"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/submissions/my", bobToken, nil, &mine))
	assert.Empty(t, mine.Submissions)

	closed := s.createBug(aliceToken, 100)
	code, sub := s.submit(bobToken, closed)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPatch, "/api/v1/submissions/"+sub.Submission.ID.String()+"/approve", aliceToken, nil, nil))

	var errResp ErrorResponse
	code = s.do(http.MethodDelete, "/api/v1/bugs/"+closed.ID.String(), aliceToken, nil, &errResp)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "cannot delete a closed bug with a declared winner", errResp.Error.Message)
}

func TestListAndMyBugs(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signUp("alice")
	bobToken, _ := s.signUp("bob")
	s.createBug(aliceToken, 10)
	s.createBug(aliceToken, 20)
	s.createBug(bobToken, 30)

	var page models.BugPage
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/bugs?page=1&limit=2&search=xss", "", nil, &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Bugs, 2)

	var mine struct {
		Bugs []models.Bug `json:"bugs"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/bugs/my-bugs", aliceToken, nil, &mine))
	assert.Len(t, mine.Bugs, 2)

	page = models.BugPage{}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/bugs?page=9223372036854775807&limit=10", "", nil, &page))
	assert.Equal(t, 3, page.Total)
	assert.Empty(t, page.Bugs)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	s.signUp("alice")

	var errResp ErrorResponse
	code := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice2",
		"email":    "ALICE@example.com",
		"password": "Secret123",
	}, &errResp)
	assert.Equal(t, http.StatusConflict, code)

	invalid := []struct {
		name    string
		body    map[string]string
		message string
	}{
		{"weak password", map[string]string{"username": "dave", "email": "dave@example.com", "password": "weak"},
			"password must be at least 6 characters with uppercase, lowercase, and number"},
		{"no digit", map[string]string{"username": "dave", "email": "dave@example.com", "password": "Secretish"},
			"password must be at least 6 characters with uppercase, lowercase, and number"},
		{"short username", map[string]string{"username": " d ", "email": "dave@example.com", "password": "Secret123"},
			"username must be at least 2 characters"},
		{"long username", map[string]string{"username": "abcdefghijklmnopqrstu", "email": "dave@example.com", "password": "Secret123"},
			"username must be at most 20 characters"},
		{"bad email", map[string]string{"username": "dave", "email": "dave-at-example", "password": "Secret123"},
			"valid email is required"},
		{"missing fields", map[string]string{},
			"username is required; email is required; password is required"},
	}
	for _, tt := range invalid {
		var resp ErrorResponse
		code := s.do(http.MethodPost, "/api/v1/auth/register", "", tt.body, &resp)
		assert.Equal(t, http.StatusBadRequest, code, tt.name)
		assert.Equal(t, ErrCodeValidation, resp.Error.Code, tt.name)
		assert.Equal(t, tt.message, resp.Error.Message, tt.name)
	}

	code = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "not-an-email",
		"password": "Secret123",
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, ErrCodeValidation, errResp.Error.Code)

	code = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "Wrong123",
	}, &errResp)
	assert.Equal(t, http.StatusUnauthorized, code)

	code = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "Secret123",
	}, &errResp)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRefreshToken(t *testing.T) {
	s := newTestServer(t)
	s.signUp("alice")

	login := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"alice@example.com","password":"Secret123"}`))
	login.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, login)
	require.Equal(t, http.StatusOK, rec.Code)

	var session struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.RefreshToken)

	var refreshCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.RefreshCookieName {
			refreshCookie = c
		}
	}
	require.NotNil(t, refreshCookie)
	assert.True(t, refreshCookie.HttpOnly)

	// токен обновления в теле запроса
	var refreshed struct {
		User        models.User `json:"user"`
		AccessToken string      `json:"access_token"`
	}
	code := s.do(http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{
		"refresh_token": session.RefreshToken,
	}, &refreshed)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", refreshed.User.Username)
	assert.Equal(t, int64(0), s.rewards(refreshed.AccessToken))

	// токен обновления в cookie
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: auth.RefreshCookieName, Value: session.RefreshToken})
	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var errResp ErrorResponse
	code = s.do(http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{
		"refresh_token": session.AccessToken,
	}, &errResp)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, ErrCodeUnauthorized, errResp.Error.Code)

	code = s.do(http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{}, &errResp)
	assert.Equal(t, http.StatusUnauthorized, code)

	// токен обновления не открывает защищенные маршруты
	code = s.do(http.MethodGet, "/api/v1/auth/me", session.RefreshToken, nil, &errResp)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLogoutClearsCookies(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signUp("alice")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	cleared := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		cleared[c.Name] = c.MaxAge < 0 && c.Value == ""
	}
	assert.True(t, cleared[auth.CookieName])
	assert.True(t, cleared[auth.RefreshCookieName])
}
