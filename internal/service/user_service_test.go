package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/community-class-api/internal/models"
	appErrors "github.com/noah-isme/community-class-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	lastFilter models.UserFilter
	auditLogs  []*models.AuditLog
	createErr  error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{}}
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	var out []models.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) ListAll(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	m.lastFilter = filter
	var out []models.User
	for _, u := range m.users {
		if filter.Role == nil || u.Role == *filter.Role {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newUserFixture() (*UserService, *mockUserRepo) {
	repo := newMockUserRepo()
	auth := NewAuthService(&mockAuthRepo{}, nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "s", AccessTokenExpiry: time.Hour})
	return NewUserService(repo, auth, nil, zap.NewNop()), repo
}

func signUp() models.RegisterUserRequest {
	return models.RegisterUserRequest{
		FirstName: "Jo",
		LastName:  "Park",
		Email:     "Jo.Park@Example.com",
		Password:  "hunter2",
		Age:       34,
		Gender:    models.GenderNonBinary,
	}
}

func TestUserRegisterCreatesStudent(t *testing.T) {
	svc, repo := newUserFixture()

	resp, err := svc.Register(context.Background(), signUp(), models.LoginRequest{IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "jo.park@example.com", resp.User.Email)
	assert.Equal(t, models.RoleStudent, resp.User.Role)

	stored := repo.users[resp.User.ID]
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter2")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserRegister, repo.auditLogs[0].Action)
}

func TestUserRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, repo := newUserFixture()
	_, err := svc.Register(context.Background(), signUp(), models.LoginRequest{})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), signUp(), models.LoginRequest{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	other := signUp()
	other.Email = "race@example.com"
	repo.createErr = models.ErrEmailTaken
	_, err = svc.Register(context.Background(), other, models.LoginRequest{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserRegisterValidation(t *testing.T) {
	svc, _ := newUserFixture()

	short := signUp()
	short.Password = "12345"
	_, err := svc.Register(context.Background(), short, models.LoginRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	odd := signUp()
	odd.Gender = "robot"
	_, err = svc.Register(context.Background(), odd, models.LoginRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserUpdateProfile(t *testing.T) {
	svc, repo := newUserFixture()
	resp, err := svc.Register(context.Background(), signUp(), models.LoginRequest{})
	require.NoError(t, err)
	other := signUp()
	other.Email = "taken@example.com"
	_, err = svc.Register(context.Background(), other, models.LoginRequest{})
	require.NoError(t, err)

	me := models.Principal{UserID: resp.User.ID, Role: models.RoleStudent}

	taken := "TAKEN@example.com"
	_, err = svc.UpdateProfile(context.Background(), me, models.UpdateProfileRequest{Email: &taken})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	city := "Denver"
	password := "newpass"
	updated, err := svc.UpdateProfile(context.Background(), me, models.UpdateProfileRequest{City: &city, Password: &password})
	require.NoError(t, err)
	assert.Equal(t, "Denver", *updated.City)
	assert.Equal(t, "jo.park@example.com", updated.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[me.UserID].PasswordHash), []byte("newpass")))

	weak := "123"
	_, err = svc.UpdateProfile(context.Background(), me, models.UpdateProfileRequest{Password: &weak})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserListPagination(t *testing.T) {
	svc, _ := newUserFixture()
	_, err := svc.Register(context.Background(), signUp(), models.LoginRequest{})
	require.NoError(t, err)

	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, pagination)

	bad := models.UserRole("owner")
	_, _, err = svc.List(context.Background(), models.UserFilter{Role: &bad})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserExportStudents(t *testing.T) {
	svc, repo := newUserFixture()
	_, err := svc.Register(context.Background(), signUp(), models.LoginRequest{})
	require.NoError(t, err)
	repo.users["admin"] = &models.User{ID: "admin", FirstName: "Ad", LastName: "Min", Email: "admin@example.com", Role: models.RoleAdmin}

	body, err := svc.ExportStudents(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "First Name,Last Name,Email,Age,Gender,Phone,City,Joined", lines[0])
	assert.Equal(t, "Jo,Park,jo.park@example.com,34,non-binary,,,2026-02-01", lines[1])
	require.NotNil(t, repo.lastFilter.Role)
	assert.Equal(t, models.RoleStudent, *repo.lastFilter.Role)
}
