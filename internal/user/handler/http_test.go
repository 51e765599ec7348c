package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"client-connect/backend/internal/policy/engine"
	"client-connect/backend/internal/security"
	"client-connect/backend/internal/server/interceptors"
	"client-connect/backend/internal/user/domain"
	"client-connect/backend/internal/user/repository"
	"client-connect/backend/internal/user/service"
)

type testEnv struct {
	router http.Handler
	repo   *repository.MemoryRepository
	tokens *security.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := repository.NewMemoryRepository()
	svc := service.NewService(repo, security.NewHasher(4), nil, nil, nil)
	eval, err := engine.NewOPAEvaluator(context.Background(), "")
	require.NoError(t, err)
	tokens := security.NewTestTokenIssuer()

	h := NewHandler(svc, repo, eval, nil)
	r := chi.NewRouter()
	h.MountPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(interceptors.RequireBearer(tokens, nil))
		h.MountProtected(r)
	})
	return &testEnv{router: r, repo: repo, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, subject, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if subject != "" {
		token, _, err := e.tokens.IssueAccess(context.Background(), subject)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func code(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var p struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p.Code
}

const (
	rootBody  = `{"username":"root","email":"root@example.com","password":"Rootpass1!","roles":["ADMIN"]}`
	aliceBody = `{"username":"alice","email":"alice@example.com","password":"Secret1!","roles":["USER"]}`
)

func TestAddAdmin_OneShot(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/addAdmin", "", rootBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"User created successfully"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/addAdmin", "",
		`{"username":"root2","email":"root2@example.com","password":"Rootpass1!","roles":["ADMIN"]}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ADMIN_ALREADY_EXISTS", code(t, rec))
}

func TestAddAdmin_Rejections(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"non admin role", aliceBody, "ADMIN_ROLE_REQUIRED"},
		{"weak password", `{"username":"root","email":"root@example.com","password":"password","roles":["ADMIN"]}`, "VALIDATION_FAILED"},
		{"bad email", `{"username":"root","email":"root","password":"Rootpass1!","roles":["ADMIN"]}`, "VALIDATION_FAILED"},
		{"no roles", `{"username":"root","email":"root@example.com","password":"Rootpass1!","roles":[]}`, "VALIDATION_FAILED"},
		{"unknown role", `{"username":"root","email":"root@example.com","password":"Rootpass1!","roles":["ADMIN","AUDITOR"]}`, "ROLE_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/addAdmin", "", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, code(t, rec))
		})
	}
	exists, err := env.repo.ExistsWithRole(context.Background(), domain.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, exists, "no admin may be created by a rejected request")
}

func TestAddUser(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/addAdmin", "", rootBody).Code)

	rec := env.do(t, http.MethodPost, "/admin/adduser", "", aliceBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/adduser", "root", aliceBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/adduser", "root", aliceBody)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_USERNAME", code(t, rec))

	rec = env.do(t, http.MethodPost, "/admin/adduser", "alice",
		`{"username":"bob","email":"bob@example.com","password":"Secret1!","roles":["USER"]}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", code(t, rec))
}

func TestUpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/addAdmin", "", rootBody).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/admin/adduser", "root", aliceBody).Code)

	tests := []struct {
		name       string
		subject    string
		target     string
		wantStatus int
	}{
		{"self", "alice", "alice", http.StatusOK},
		{"other user", "alice", "root", http.StatusForbidden},
		{"admin for other", "root", "alice", http.StatusOK},
		{"admin for unknown", "root", "ghost", http.StatusNotFound},
		{"deleted caller", "ghost", "ghost", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"username":"` + tt.target + `","new_password":"Newpass1!"}`
			rec := env.do(t, http.MethodPut, "/user/update-password", tt.subject, body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"message":"Password updated successfully."}`, rec.Body.String())
			}
		})
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/addAdmin", "", rootBody).Code)

	rec := env.do(t, http.MethodGet, "/user/me", "root", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body PrincipalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "root", body.Username)
	assert.Equal(t, []string{"ADMIN"}, body.Roles)
	assert.NotNil(t, body.PasswordLastSet)
	assert.NotContains(t, rec.Body.String(), "hash")

	rec = env.do(t, http.MethodGet, "/user/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
