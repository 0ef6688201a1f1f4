package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-class-api/internal/models"
	"github.com/noah-isme/community-class-api/internal/service"
	"github.com/noah-isme/community-class-api/pkg/response"
)

type attendanceService interface {
	CreateRecord(ctx context.Context, req service.CreateAttendanceRequest) (*models.AttendanceRecord, error)
	CheckIn(ctx context.Context, principal models.Principal, attendanceID string) (*models.Attendee, error)
	UpdateStatus(ctx context.Context, attendanceID string, req service.UpdateAttendanceStatusRequest) (*models.Attendee, error)
	Get(ctx context.Context, attendanceID string) (*models.AttendanceDetail, error)
	ListByClass(ctx context.Context, classID string) ([]models.AttendanceRecord, error)
	Stats(ctx context.Context, classID string) (*models.AttendanceStats, error)
	ExportStats(ctx context.Context, classID, format string) ([]byte, string, string, error)
}

// AttendanceHandler records and reports class attendance.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs an AttendanceHandler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Create godoc
// @Summary Open an attendance record for a session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.CreateAttendanceRequest true "Class and session date"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [post]
func (h *AttendanceHandler) Create(c *gin.Context) {
	var req service.CreateAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.service.CreateRecord(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Get godoc
// @Summary Get attendance record
// @Tags Attendance
// @Produce json
// @Param attendanceId path string true "Attendance ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/{attendanceId} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("attendanceId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// ListByClass godoc
// @Summary List attendance records of a class
// @Tags Attendance
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/class/{classId} [get]
func (h *AttendanceHandler) ListByClass(c *gin.Context) {
	records, err := h.service.ListByClass(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// Stats godoc
// @Summary Attendance statistics for a class
// @Tags Attendance
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/stats/{classId} [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// ExportStats godoc
// @Summary Download attendance statistics
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Param classId path string true "Class ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/stats/{classId}/export [get]
func (h *AttendanceHandler) ExportStats(c *gin.Context) {
	body, contentType, filename, err := h.service.ExportStats(c.Request.Context(), c.Param("classId"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, contentType, filename, body)
}

// CheckIn godoc
// @Summary Check in to a session
// @Tags Attendance
// @Produce json
// @Param attendanceId path string true "Attendance ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/{attendanceId}/checkin [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	attendee, err := h.service.CheckIn(c.Request.Context(), principal, c.Param("attendanceId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, attendee)
}

// UpdateStatus godoc
// @Summary Set a student's attendance status
// @Tags Attendance
// @Accept json
// @Produce json
// @Param attendanceId path string true "Attendance ID"
// @Param payload body service.UpdateAttendanceStatusRequest true "Student and status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/{attendanceId}/status [put]
func (h *AttendanceHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateAttendanceStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	attendee, err := h.service.UpdateStatus(c.Request.Context(), c.Param("attendanceId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, attendee)
}
