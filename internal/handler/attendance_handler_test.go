package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/community-class-api/internal/models"
	"github.com/noah-isme/community-class-api/internal/service"
	appErrors "github.com/noah-isme/community-class-api/pkg/errors"
)

type attendanceServiceStub struct {
	err    error
	format string
	status service.UpdateAttendanceStatusRequest
}

func (s *attendanceServiceStub) CreateRecord(_ context.Context, req service.CreateAttendanceRequest) (*models.AttendanceRecord, error) {
	return &models.AttendanceRecord{ID: "a1", ClassID: req.ClassID}, s.err
}

func (s *attendanceServiceStub) CheckIn(_ context.Context, principal models.Principal, _ string) (*models.Attendee, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Attendee{StudentID: principal.UserID, Status: models.AttendancePresent}, nil
}

func (s *attendanceServiceStub) UpdateStatus(_ context.Context, _ string, req service.UpdateAttendanceStatusRequest) (*models.Attendee, error) {
	s.status = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Attendee{StudentID: req.StudentID, Status: req.Status}, nil
}

func (s *attendanceServiceStub) Get(_ context.Context, id string) (*models.AttendanceDetail, error) {
	return &models.AttendanceDetail{AttendanceRecord: models.AttendanceRecord{ID: id}}, s.err
}

func (s *attendanceServiceStub) ListByClass(context.Context, string) ([]models.AttendanceRecord, error) {
	return []models.AttendanceRecord{}, s.err
}

func (s *attendanceServiceStub) Stats(_ context.Context, classID string) (*models.AttendanceStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.AttendanceStats{ClassID: classID, TotalSessions: 2}, nil
}

func (s *attendanceServiceStub) ExportStats(_ context.Context, _ string, format string) ([]byte, string, string, error) {
	s.format = format
	if s.err != nil {
		return nil, "", "", s.err
	}
	return []byte("Student,Email\n"), "text/csv", "attendance.csv", nil
}

func TestAttendanceHandlerCheckInForbidden(t *testing.T) {
	h := NewAttendanceHandler(&attendanceServiceStub{err: appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this class")})
	c, w := testContext(http.MethodPost, "/attendance/a1/checkin", nil, studentPrincipal)
	c.Params = gin.Params{{Key: "attendanceId", Value: "a1"}}

	h.CheckIn(c)

	requireStatus(t, w, http.StatusForbidden)
}

func TestAttendanceHandlerCheckIn(t *testing.T) {
	h := NewAttendanceHandler(&attendanceServiceStub{})
	c, w := testContext(http.MethodPost, "/attendance/a1/checkin", nil, studentPrincipal)
	c.Params = gin.Params{{Key: "attendanceId", Value: "a1"}}

	h.CheckIn(c)

	requireStatus(t, w, http.StatusOK)
	assert.Contains(t, w.Body.String(), studentPrincipal.UserID)
}

func TestAttendanceHandlerUpdateStatusBindsBody(t *testing.T) {
	stub := &attendanceServiceStub{}
	h := NewAttendanceHandler(stub)
	c, w := testContext(http.MethodPut, "/attendance/a1/status", map[string]string{"studentId": "s1", "status": "late"}, adminPrincipal)
	c.Params = gin.Params{{Key: "attendanceId", Value: "a1"}}

	h.UpdateStatus(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "s1", stub.status.StudentID)
	assert.Equal(t, models.AttendanceLate, stub.status.Status)
}

func TestAttendanceHandlerExportDefaultsToCSV(t *testing.T) {
	stub := &attendanceServiceStub{}
	h := NewAttendanceHandler(stub)
	c, w := testContext(http.MethodGet, "/attendance/stats/c1/export", nil, adminPrincipal)
	c.Params = gin.Params{{Key: "classId", Value: "c1"}}

	h.ExportStats(c)

	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "csv", stub.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="attendance.csv"`, w.Header().Get("Content-Disposition"))
}

func TestAttendanceHandlerStatsNotFound(t *testing.T) {
	h := NewAttendanceHandler(&attendanceServiceStub{err: appErrors.Clone(appErrors.ErrNotFound, "class not found")})
	c, w := testContext(http.MethodGet, "/attendance/stats/c1", nil, adminPrincipal)
	c.Params = gin.Params{{Key: "classId", Value: "c1"}}

	h.Stats(c)

	requireStatus(t, w, http.StatusNotFound)
}
