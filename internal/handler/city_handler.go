package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-class-api/internal/models"
	"github.com/noah-isme/community-class-api/internal/service"
	"github.com/noah-isme/community-class-api/pkg/response"
)

type cityService interface {
	List(ctx context.Context) ([]models.City, bool, error)
	Create(ctx context.Context, req service.CityRequest) (*models.City, error)
	Update(ctx context.Context, id string, req service.CityRequest) (*models.City, error)
	Delete(ctx context.Context, id string) error
}

// CityHandler manages featured cities.
type CityHandler struct {
	service cityService
}

// NewCityHandler constructs a CityHandler.
func NewCityHandler(svc cityService) *CityHandler {
	return &CityHandler{service: svc}
}

// List godoc
// @Summary List cities
// @Tags Cities
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cities [get]
func (h *CityHandler) List(c *gin.Context) {
	cities, hit, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, cities, hit)
}

// Create godoc
// @Summary Create city
// @Tags Cities
// @Accept json
// @Produce json
// @Param payload body service.CityRequest true "City"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /cities [post]
func (h *CityHandler) Create(c *gin.Context) {
	var req service.CityRequest
	if !bindJSON(c, &req) {
		return
	}
	city, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, city)
}

// Update godoc
// @Summary Update city
// @Tags Cities
// @Accept json
// @Produce json
// @Param id path string true "City ID"
// @Param payload body service.CityRequest true "City"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /cities/{id} [put]
func (h *CityHandler) Update(c *gin.Context) {
	var req service.CityRequest
	if !bindJSON(c, &req) {
		return
	}
	city, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, city)
}

// Delete godoc
// @Summary Delete city
// @Tags Cities
// @Param id path string true "City ID"
// @Success 204
// @Security BearerAuth
// @Router /cities/{id} [delete]
func (h *CityHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
