package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-class-api/internal/models"
	"github.com/noah-isme/community-class-api/internal/service"
	"github.com/noah-isme/community-class-api/pkg/response"
)

type classService interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassOffering, bool, error)
	ListByCity(ctx context.Context, city string) ([]models.ClassOffering, bool, error)
	Cities(ctx context.Context) ([]string, bool, error)
	Get(ctx context.Context, id string) (*models.ClassOffering, error)
	Create(ctx context.Context, req service.CreateClassRequest) (*models.ClassOffering, error)
	Update(ctx context.Context, id string, req service.UpdateClassRequest) (*models.ClassOffering, error)
	Delete(ctx context.Context, id string) error
}

// ClassHandler exposes the class catalog.
type ClassHandler struct {
	service classService
}

// NewClassHandler constructs a ClassHandler.
func NewClassHandler(svc classService) *ClassHandler {
	return &ClassHandler{service: svc}
}

// List godoc
// @Summary List classes
// @Description Search the catalog. Age bounds match classes whose target range overlaps the requested one.
// @Tags Classes
// @Produce json
// @Param city query string false "City (case-insensitive)"
// @Param gender query string false "Target gender; classes open to any gender always match"
// @Param minAge query int false "Lower age bound"
// @Param maxAge query int false "Upper age bound"
// @Param maxCost query number false "Maximum cost"
// @Param type query string false "one-time or ongoing"
// @Param time query string false "morning, afternoon or evening"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	filter := models.ClassFilter{
		City:      c.Query("city"),
		Gender:    c.Query("gender"),
		Type:      models.ClassType(c.Query("type")),
		TimeOfDay: models.TimeOfDay(c.Query("time")),
	}

	var err error
	if filter.MinAge, err = queryInt(c, "minAge"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.MaxAge, err = queryInt(c, "maxAge"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.MaxCost, err = queryFloat(c, "maxCost"); err != nil {
		response.Error(c, err)
		return
	}

	classes, hit, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, classes, hit)
}

// Cities godoc
// @Summary List class cities
// @Tags Classes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /classes/cities [get]
func (h *ClassHandler) Cities(c *gin.Context) {
	cities, hit, err := h.service.Cities(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, cities, hit)
}

// ListByCity godoc
// @Summary List classes in a city
// @Tags Classes
// @Produce json
// @Param city path string true "City"
// @Success 200 {object} response.Envelope
// @Router /classes/cities/{city} [get]
func (h *ClassHandler) ListByCity(c *gin.Context) {
	classes, hit, err := h.service.ListByCity(c.Request.Context(), c.Param("city"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, classes, hit)
}

// Get godoc
// @Summary Get class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, class)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.CreateClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.UpdateClassRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	var req service.UpdateClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete class
// @Tags Classes
// @Param id path string true "Class ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
