package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/community-class-api/internal/models"
	appErrors "github.com/noah-isme/community-class-api/pkg/errors"
	"github.com/noah-isme/community-class-api/pkg/export"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	ListAll(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type tokenIssuer interface {
	IssueToken(user *models.User) (*models.AuthResponse, error)
}

// UserService handles sign-up, profiles and the admin user directory.
type UserService struct {
	repo      userRepository
	tokens    tokenIssuer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, tokens tokenIssuer, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, tokens: tokens, validator: ensureValidator(validate), logger: logger}
}

// Register creates a student account and signs the caller in.
func (s *UserService) Register(ctx context.Context, req models.RegisterUserRequest, meta models.LoginRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		PasswordHash: string(passwordHash),
		Age:          req.Age,
		Gender:       req.Gender,
		Phone:        req.Phone,
		City:         req.City,
		Role:         models.RoleStudent,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, appErrors.Store(err, "failed to create user")
	}

	payload, _ := json.Marshal(map[string]interface{}{"id": user.ID, "email": user.Email, "role": user.Role})
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionUserRegister,
		Resource:   "users",
		ResourceID: &user.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record registration audit log", zap.Error(err))
	}

	return s.tokens.IssueToken(user)
}

// Profile returns the principal's account.
func (s *UserService) Profile(ctx context.Context, principal models.Principal) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, principal.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("user not found")
		}
		return nil, appErrors.Store(err, "failed to load user")
	}
	return user, nil
}

// UpdateProfile applies the provided fields to the principal's account.
func (s *UserService) UpdateProfile(ctx context.Context, principal models.Principal, req models.UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid profile payload")
	}
	user, err := s.Profile(ctx, principal)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Age != nil {
		user.Age = *req.Age
	}
	if req.Gender != nil {
		user.Gender = *req.Gender
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.City != nil {
		user.City = req.City
	}

	if err := s.repo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, models.ErrEmailTaken):
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		case isNotFound(err):
			return nil, notFound("user not found")
		default:
			return nil, appErrors.Store(err, "failed to update profile")
		}
	}
	return user, nil
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, badRequest("role must be student or admin")
	}
	if filter.Gender != nil && !filter.Gender.Valid() {
		return nil, nil, badRequest("unsupported gender filter")
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ExportStudents renders every student matching filter as CSV.
func (s *UserService) ExportStudents(ctx context.Context, filter models.UserFilter) ([]byte, error) {
	role := models.RoleStudent
	filter.Role = &role

	users, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list students")
	}

	dataset := export.Dataset{
		Title:   "Students",
		Headers: []string{"First Name", "Last Name", "Email", "Age", "Gender", "Phone", "City", "Joined"},
	}
	for _, u := range users {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"First Name": u.FirstName,
			"Last Name":  u.LastName,
			"Email":      u.Email,
			"Age":        strconv.Itoa(u.Age),
			"Gender":     string(u.Gender),
			"Phone":      deref(u.Phone),
			"City":       deref(u.City),
			"Joined":     u.CreatedAt.Format("2006-01-02"),
		})
	}

	body, err := export.NewCSVExporter().Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return body, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return appErrors.Clone(appErrors.ErrConflict, "email already exists")
	case isNotFound(err):
		return nil
	default:
		return appErrors.Store(err, "failed to check email uniqueness")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
