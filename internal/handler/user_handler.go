package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-class-api/internal/models"
	"github.com/noah-isme/community-class-api/pkg/response"
)

type userService interface {
	Register(ctx context.Context, req models.RegisterUserRequest, meta models.LoginRequest) (*models.AuthResponse, error)
	Profile(ctx context.Context, principal models.Principal) (*models.User, error)
	UpdateProfile(ctx context.Context, principal models.Principal, req models.UpdateProfileRequest) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	ExportStudents(ctx context.Context, filter models.UserFilter) ([]byte, error)
}

type loginService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
}

// UserHandler handles accounts, sign-in and the admin student directory.
type UserHandler struct {
	users userService
	auth  loginService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users userService, auth loginService) *UserHandler {
	return &UserHandler{users: users, auth: auth}
}

// Register godoc
// @Summary Sign up
// @Description Create a student account and return an access token
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.RegisterUserRequest true "Account details"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req models.RegisterUserRequest
	if !bindJSON(c, &req) {
		return
	}
	meta := models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	result, err := h.users.Register(c.Request.Context(), req, meta)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Login godoc
// @Summary Login
// @Description Authenticate with email and password
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /users/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	result, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Profile godoc
// @Summary Current profile
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /users/profile [get]
func (h *UserHandler) Profile(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	user, err := h.users.Profile(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// UpdateProfile godoc
// @Summary Update current profile
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.UpdateProfileRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /users/profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// List godoc
// @Summary List users
// @Description List users with pagination and filtering
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Param role query string false "Role filter"
// @Param gender query string false "Gender filter"
// @Param city query string false "City filter"
// @Param minAge query int false "Minimum age"
// @Param maxAge query int false "Maximum age"
// @Param search query string false "Name or email"
// @Param sortBy query string false "Sort by"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	filter, err := userFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("pageSize", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sortBy")
	filter.SortOrder = c.Query("sortOrder")

	users, pagination, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// Export godoc
// @Summary Export students
// @Tags Users
// @Produce text/csv
// @Param gender query string false "Gender filter"
// @Param city query string false "City filter"
// @Param minAge query int false "Minimum age"
// @Param maxAge query int false "Maximum age"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /users/export [get]
func (h *UserHandler) Export(c *gin.Context) {
	filter, err := userFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := h.users.ExportStudents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "text/csv", "students.csv", body)
}

func userFilterFromQuery(c *gin.Context) (models.UserFilter, error) {
	filter := models.UserFilter{
		City:   c.Query("city"),
		Search: c.Query("search"),
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filter.Role = &r
	}
	if gender := c.Query("gender"); gender != "" {
		g := models.Gender(gender)
		filter.Gender = &g
	}

	var err error
	if filter.MinAge, err = queryInt(c, "minAge"); err != nil {
		return filter, err
	}
	if filter.MaxAge, err = queryInt(c, "maxAge"); err != nil {
		return filter, err
	}
	return filter, nil
}
