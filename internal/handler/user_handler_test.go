package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/community-class-api/internal/models"
	appErrors "github.com/noah-isme/community-class-api/pkg/errors"
)

type userServiceStub struct {
	meta   models.LoginRequest
	filter models.UserFilter
	err    error
}

func (s *userServiceStub) Register(_ context.Context, req models.RegisterUserRequest, meta models.LoginRequest) (*models.AuthResponse, error) {
	s.meta = meta
	if s.err != nil {
		return nil, s.err
	}
	return &models.AuthResponse{AccessToken: "token", User: models.User{Email: req.Email}}, nil
}

func (s *userServiceStub) Profile(_ context.Context, principal models.Principal) (*models.User, error) {
	return &models.User{ID: principal.UserID}, s.err
}

func (s *userServiceStub) UpdateProfile(_ context.Context, principal models.Principal, _ models.UpdateProfileRequest) (*models.User, error) {
	return &models.User{ID: principal.UserID}, s.err
}

func (s *userServiceStub) List(_ context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	s.filter = filter
	return []models.User{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 0}, s.err
}

func (s *userServiceStub) ExportStudents(_ context.Context, filter models.UserFilter) ([]byte, error) {
	s.filter = filter
	return []byte("First Name\n"), s.err
}

type loginServiceStub struct {
	req models.LoginRequest
	err error
}

func (s *loginServiceStub) Login(_ context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.AuthResponse{AccessToken: "token"}, nil
}

func TestUserHandlerRegisterCapturesClientMeta(t *testing.T) {
	users := &userServiceStub{}
	h := NewUserHandler(users, &loginServiceStub{})
	c, w := testContext(http.MethodPost, "/users", map[string]interface{}{"email": "ada@example.com"}, nil)
	c.Request.Header.Set("User-Agent", "browser")

	h.Register(c)

	requireStatus(t, w, http.StatusCreated)
	assert.Equal(t, "browser", users.meta.UserAgent)
	assert.Contains(t, w.Body.String(), `"token":"token"`)
}

func TestUserHandlerLoginFailure(t *testing.T) {
	login := &loginServiceStub{err: appErrors.ErrInvalidCredentials}
	h := NewUserHandler(&userServiceStub{}, login)
	c, w := testContext(http.MethodPost, "/users/login", map[string]string{"email": "ada@example.com", "password": "nope"}, nil)

	h.Login(c)

	requireStatus(t, w, http.StatusUnauthorized)
	assert.Equal(t, "ada@example.com", login.req.Email)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, w).Error.Code)
}

func TestUserHandlerProfileRequiresPrincipal(t *testing.T) {
	h := NewUserHandler(&userServiceStub{}, &loginServiceStub{})
	c, w := testContext(http.MethodGet, "/users/profile", nil, nil)

	h.Profile(c)

	requireStatus(t, w, http.StatusUnauthorized)
}

func TestUserHandlerListPagination(t *testing.T) {
	users := &userServiceStub{}
	h := NewUserHandler(users, &loginServiceStub{})
	c, w := testContext(http.MethodGet, "/users?page=2&pageSize=5&gender=female&minAge=18&search=ada", nil, adminPrincipal)

	h.List(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, 2, users.filter.Page)
	assert.Equal(t, 5, users.filter.PageSize)
	require.NotNil(t, users.filter.Gender)
	assert.Equal(t, models.GenderFemale, *users.filter.Gender)
	assert.Equal(t, 18, *users.filter.MinAge)
	assert.Equal(t, "ada", users.filter.Search)

	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.Page)
}

func TestUserHandlerExport(t *testing.T) {
	h := NewUserHandler(&userServiceStub{}, &loginServiceStub{})
	c, w := testContext(http.MethodGet, "/users/export?city=Austin", nil, adminPrincipal)

	h.Export(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, `attachment; filename="students.csv"`, w.Header().Get("Content-Disposition"))
}
