package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/community-class-api/internal/models"
	appErrors "github.com/noah-isme/community-class-api/pkg/errors"
	"github.com/noah-isme/community-class-api/pkg/export"
)

type attendanceRepository interface {
	ExistsForSession(ctx context.Context, classID string, sessionDate time.Time) (bool, error)
	Create(ctx context.Context, record *models.AttendanceRecord) error
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	FindDetail(ctx context.Context, id string) (*models.AttendanceDetail, error)
	ListByClass(ctx context.Context, classID string) ([]models.AttendanceRecord, error)
	AddAttendee(ctx context.Context, attendee *models.Attendee) error
	FindAttendee(ctx context.Context, attendanceID, studentID string) (*models.Attendee, error)
	UpdateAttendee(ctx context.Context, attendee *models.Attendee) error
}

type rosterRepository interface {
	FindActive(ctx context.Context, userID, classID string) (*models.Registration, error)
	ActiveRoster(ctx context.Context, classID string) ([]models.ClassRegistration, error)
}

// CreateAttendanceRequest opens a session for a class.
type CreateAttendanceRequest struct {
	ClassID     string `json:"classId" validate:"required"`
	SessionDate string `json:"sessionDate" validate:"required"`
}

// UpdateAttendanceStatusRequest sets one student's status for a session.
type UpdateAttendanceStatusRequest struct {
	StudentID string                  `json:"studentId" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required,attendance_status"`
}

// AttendanceServiceConfig controls session keying.
type AttendanceServiceConfig struct {
	NormalizeSessionDate bool
}

// AttendanceService records check-ins and derives attendance statistics.
type AttendanceService struct {
	repo          attendanceRepository
	registrations rosterRepository
	classes       classLookup
	events        EventPublisher
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	config        AttendanceServiceConfig
	now           func() time.Time
}

// NewAttendanceService constructs the service.
func NewAttendanceService(
	repo attendanceRepository,
	registrations rosterRepository,
	classes classLookup,
	events EventPublisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config AttendanceServiceConfig,
) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = nopEvents{}
	}
	return &AttendanceService{
		repo:          repo,
		registrations: registrations,
		classes:       classes,
		events:        events,
		metrics:       metrics,
		validator:     ensureValidator(validate),
		logger:        logger,
		config:        config,
		now:           time.Now,
	}
}

// CreateRecord opens an empty attendance record for one session of a class.
func (s *AttendanceService) CreateRecord(ctx context.Context, req CreateAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "classId and sessionDate are required")
	}
	if err := requireID(req.ClassID, "class id"); err != nil {
		return nil, err
	}
	sessionDate, err := parseSessionDate(req.SessionDate)
	if err != nil {
		return nil, validationError(err, "sessionDate must be RFC3339 or YYYY-MM-DD")
	}
	if s.config.NormalizeSessionDate {
		sessionDate = truncateToDay(sessionDate)
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if isNotFound(err) {
			return nil, notFound("class not found")
		}
		return nil, appErrors.Store(err, "failed to load class")
	}

	exists, err := s.repo.ExistsForSession(ctx, req.ClassID, sessionDate)
	if err != nil {
		return nil, appErrors.Store(err, "failed to check attendance session")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance record already exists for this session")
	}

	record := &models.AttendanceRecord{ClassID: req.ClassID, SessionDate: sessionDate}
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, models.ErrAttendanceSessionExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance record already exists for this session")
		}
		return nil, appErrors.Store(err, "failed to create attendance record")
	}
	return record, nil
}

// CheckIn marks the principal present for a session. Only enrolled students may check in.
func (s *AttendanceService) CheckIn(ctx context.Context, principal models.Principal, attendanceID string) (*models.Attendee, error) {
	record, err := s.loadRecord(ctx, attendanceID)
	if err != nil {
		return nil, err
	}

	reg, err := s.registrations.FindActive(ctx, principal.UserID, record.ClassID)
	if err != nil && !isNotFound(err) {
		return nil, appErrors.Store(err, "failed to load registration")
	}
	if reg == nil || reg.Status != models.RegistrationEnrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this class")
	}

	now := s.now().UTC()
	attendee := &models.Attendee{
		AttendanceID: record.ID,
		StudentID:    principal.UserID,
		CheckInTime:  &now,
		Status:       models.AttendancePresent,
	}
	if err := s.repo.AddAttendee(ctx, attendee); err != nil {
		if errors.Is(err, models.ErrAlreadyCheckedIn) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "already checked in for this session")
		}
		return nil, appErrors.Store(err, "failed to record check-in")
	}

	s.metrics.RecordCheckIn()
	s.events.Publish(ctx, models.DomainEvent{
		Type:      models.EventAttendanceCheckedIn,
		ActorID:   principal.UserID,
		ClassID:   record.ClassID,
		SubjectID: record.ID,
		Data:      map[string]interface{}{"studentId": principal.UserID},
	})
	return attendee, nil
}

// UpdateStatus overwrites or inserts a student's entry. The status is validated before
// anything is read or written.
func (s *AttendanceService) UpdateStatus(ctx context.Context, attendanceID string, req UpdateAttendanceStatusRequest) (*models.Attendee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "status must be one of present, absent, late")
	}
	if err := requireID(req.StudentID, "student id"); err != nil {
		return nil, err
	}
	record, err := s.loadRecord(ctx, attendanceID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindAttendee(ctx, record.ID, req.StudentID)
	switch {
	case err == nil:
		existing.Status = req.Status
		if req.Status.Attended() && existing.CheckInTime == nil {
			now := s.now().UTC()
			existing.CheckInTime = &now
		}
		if err := s.repo.UpdateAttendee(ctx, existing); err != nil {
			if isNotFound(err) {
				return nil, notFound("attendee not found")
			}
			return nil, appErrors.Store(err, "failed to update attendance status")
		}
		return existing, nil
	case !isNotFound(err):
		return nil, appErrors.Store(err, "failed to load attendee")
	}

	if _, err := s.registrations.FindActive(ctx, req.StudentID, record.ClassID); err != nil {
		if isNotFound(err) {
			return nil, badRequest("student is not registered for this class")
		}
		return nil, appErrors.Store(err, "failed to load registration")
	}

	attendee := &models.Attendee{AttendanceID: record.ID, StudentID: req.StudentID, Status: req.Status}
	if req.Status.Attended() {
		now := s.now().UTC()
		attendee.CheckInTime = &now
	}
	if err := s.repo.AddAttendee(ctx, attendee); err != nil {
		if errors.Is(err, models.ErrAlreadyCheckedIn) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendee was added concurrently")
		}
		return nil, appErrors.Store(err, "failed to add attendee")
	}
	return attendee, nil
}

// Get returns a record with attendee names and the class title.
func (s *AttendanceService) Get(ctx context.Context, attendanceID string) (*models.AttendanceDetail, error) {
	if err := requireID(attendanceID, "attendance id"); err != nil {
		return nil, err
	}
	detail, err := s.repo.FindDetail(ctx, attendanceID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("attendance record not found")
		}
		return nil, appErrors.Store(err, "failed to load attendance record")
	}
	return detail, nil
}

// ListByClass returns the sessions of a class, most recent first.
func (s *AttendanceService) ListByClass(ctx context.Context, classID string) ([]models.AttendanceRecord, error) {
	if err := requireID(classID, "class id"); err != nil {
		return nil, err
	}
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if isNotFound(err) {
			return nil, notFound("class not found")
		}
		return nil, appErrors.Store(err, "failed to load class")
	}
	records, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list attendance records")
	}
	return records, nil
}

// Stats loads the class, its active roster and its sessions concurrently and aggregates them.
func (s *AttendanceService) Stats(ctx context.Context, classID string) (*models.AttendanceStats, error) {
	if err := requireID(classID, "class id"); err != nil {
		return nil, err
	}

	var (
		class   *models.ClassOffering
		roster  []models.ClassRegistration
		records []models.AttendanceRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		class, err = s.classes.FindByID(gctx, classID)
		return err
	})
	g.Go(func() error {
		var err error
		roster, err = s.registrations.ActiveRoster(gctx, classID)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = s.repo.ListByClass(gctx, classID)
		return err
	})
	if err := g.Wait(); err != nil {
		if isNotFound(err) {
			return nil, notFound("class not found")
		}
		return nil, appErrors.Store(err, "failed to load attendance statistics")
	}

	stats := computeAttendanceStats(*class, roster, records)
	return &stats, nil
}

// ExportStats renders per-student statistics as CSV or PDF.
func (s *AttendanceService) ExportStats(ctx context.Context, classID, format string) ([]byte, string, string, error) {
	exporter, err := export.ForFormat(format)
	if err != nil {
		return nil, "", "", validationError(err, "format must be csv or pdf")
	}
	stats, err := s.Stats(ctx, classID)
	if err != nil {
		return nil, "", "", err
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("Attendance - %s", stats.ClassName),
		Headers: []string{"Student", "Email", "Present", "Late", "Absent", "Attendance %"},
	}
	for _, st := range stats.StudentStats {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":      st.Name,
			"Email":        st.Email,
			"Present":      strconv.Itoa(st.SessionsPresent),
			"Late":         strconv.Itoa(st.SessionsLate),
			"Absent":       strconv.Itoa(st.SessionsAbsent),
			"Attendance %": strconv.FormatFloat(st.AttendanceRate, 'f', 1, 64),
		})
	}

	body, err := exporter.Render(dataset)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	filename := fmt.Sprintf("attendance-%s.%s", stats.ClassID, exporter.Extension())
	return body, exporter.ContentType(), filename, nil
}

func (s *AttendanceService) loadRecord(ctx context.Context, attendanceID string) (*models.AttendanceRecord, error) {
	if err := requireID(attendanceID, "attendance id"); err != nil {
		return nil, err
	}
	record, err := s.repo.FindByID(ctx, attendanceID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("attendance record not found")
		}
		return nil, appErrors.Store(err, "failed to load attendance record")
	}
	return record, nil
}

// computeAttendanceStats is pure: the same inputs always yield the same output.
// absentCount is relative to the registered population, not to explicit absent entries.
func computeAttendanceStats(class models.ClassOffering, roster []models.ClassRegistration, records []models.AttendanceRecord) models.AttendanceStats {
	totalStudents := len(roster)
	totalSessions := len(records)

	sorted := make([]models.AttendanceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SessionDate.Before(sorted[j].SessionDate) })

	sessions := make([]models.SessionStats, 0, totalSessions)
	for _, record := range sorted {
		present := 0
		for _, a := range record.Attendees {
			if a.Status.Attended() {
				present++
			}
		}
		sessions = append(sessions, models.SessionStats{
			AttendanceRecordID: record.ID,
			SessionDate:        record.SessionDate,
			PresentCount:       present,
			AbsentCount:        totalStudents - present,
			AttendanceRate:     percentage(present, totalStudents),
		})
	}

	students := make([]models.StudentStats, 0, totalStudents)
	for _, reg := range roster {
		st := models.StudentStats{StudentID: reg.UserID, Name: reg.DisplayName(), Email: reg.Email}
		for _, record := range records {
			for _, a := range record.Attendees {
				if a.StudentID != reg.UserID {
					continue
				}
				if a.Status.Attended() {
					st.SessionsPresent++
				}
				if a.Status == models.AttendanceLate {
					st.SessionsLate++
				}
			}
		}
		st.SessionsAbsent = totalSessions - st.SessionsPresent
		st.AttendanceRate = percentage(st.SessionsPresent, totalSessions)
		students = append(students, st)
	}
	sort.SliceStable(students, func(i, j int) bool {
		ni, nj := strings.ToLower(students[i].Name), strings.ToLower(students[j].Name)
		if ni != nj {
			return ni < nj
		}
		return students[i].StudentID < students[j].StudentID
	})

	return models.AttendanceStats{
		ClassID:                 class.ID,
		ClassName:               class.Title,
		TotalSessions:           totalSessions,
		TotalRegisteredStudents: totalStudents,
		Sessions:                sessions,
		StudentStats:            students,
	}
}

// percentage returns part/whole*100 rounded to one decimal, or 0 when whole is 0.
func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}

func parseSessionDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
