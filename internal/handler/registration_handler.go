package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-class-api/internal/models"
	"github.com/noah-isme/community-class-api/internal/service"
	"github.com/noah-isme/community-class-api/pkg/response"
)

type registrationService interface {
	Create(ctx context.Context, principal models.Principal, req service.CreateRegistrationRequest) (*models.Registration, error)
	CancelMine(ctx context.Context, principal models.Principal, id string) (*models.Registration, error)
	Update(ctx context.Context, principal models.Principal, id string, req service.UpdateRegistrationRequest) (*models.Registration, error)
	Delete(ctx context.Context, principal models.Principal, id string) error
	ListByClass(ctx context.Context, classID string) ([]models.ClassRegistration, error)
	ListMine(ctx context.Context, principal models.Principal) ([]models.UserRegistration, error)
}

// RegistrationHandler manages class seats.
type RegistrationHandler struct {
	service registrationService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc registrationService) *RegistrationHandler {
	return &RegistrationHandler{service: svc}
}

// Create godoc
// @Summary Register for a class
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.CreateRegistrationRequest true "Class to join"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req service.CreateRegistrationRequest
	if !bindJSON(c, &req) {
		return
	}
	h.create(c, principal, req)
}

// RegisterForClass godoc
// @Summary Register for a class by path
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id}/register [post]
func (h *RegistrationHandler) RegisterForClass(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	h.create(c, principal, service.CreateRegistrationRequest{ClassID: c.Param("id")})
}

func (h *RegistrationHandler) create(c *gin.Context, principal models.Principal, req service.CreateRegistrationRequest) {
	registration, err := h.service.Create(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, registration)
}

// ListMine godoc
// @Summary List my registrations
// @Tags Registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/my [get]
func (h *RegistrationHandler) ListMine(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	registrations, err := h.service.ListMine(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, registrations)
}

// ListByClass godoc
// @Summary List a class roster
// @Tags Registrations
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/class/{classId} [get]
func (h *RegistrationHandler) ListByClass(c *gin.Context) {
	registrations, err := h.service.ListByClass(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, registrations)
}

// Update godoc
// @Summary Change a registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param registrationId path string true "Registration ID"
// @Param payload body service.UpdateRegistrationRequest true "Status and notes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{registrationId} [put]
func (h *RegistrationHandler) Update(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateRegistrationRequest
	if !bindJSON(c, &req) {
		return
	}
	registration, err := h.service.Update(c.Request.Context(), principal, c.Param("registrationId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, registration)
}

// Cancel godoc
// @Summary Cancel my registration
// @Tags Registrations
// @Produce json
// @Param registrationId path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{registrationId}/cancel [put]
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	registration, err := h.service.CancelMine(c.Request.Context(), principal, c.Param("registrationId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, registration)
}

// Delete godoc
// @Summary Delete a registration
// @Tags Registrations
// @Param registrationId path string true "Registration ID"
// @Success 204
// @Security BearerAuth
// @Router /registrations/{registrationId} [delete]
func (h *RegistrationHandler) Delete(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), principal, c.Param("registrationId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
