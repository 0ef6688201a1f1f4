package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/community-class-api/internal/models"
	"github.com/noah-isme/community-class-api/pkg/database"
)

const attendanceSessionKey = "attendance_records_class_session_key"

const attendeeSelect = `SELECT a.attendance_id, a.student_id, a.check_in_time, a.status,
        COALESCE(u.first_name, '') AS first_name, COALESCE(u.last_name, '') AS last_name, COALESCE(u.email, '') AS email
        FROM attendance_attendees a
        LEFT JOIN users u ON u.id = a.student_id`

// AttendanceRepository persists attendance records and their attendees.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ExistsForSession reports whether the class already has a record at sessionDate.
func (r *AttendanceRepository) ExistsForSession(ctx context.Context, classID string, sessionDate time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM attendance_records WHERE class_id = $1 AND session_date = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, classID, sessionDate); err != nil {
		return false, fmt.Errorf("check attendance session: %w", err)
	}
	return exists, nil
}

// Create inserts an empty attendance record.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Attendees == nil {
		record.Attendees = []models.Attendee{}
	}

	const query = `INSERT INTO attendance_records (id, class_id, session_date, created_at, updated_at)
        VALUES (:id, :class_id, :session_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		if database.IsUniqueViolation(err, attendanceSessionKey) {
			return models.ErrAttendanceSessionExists
		}
		return fmt.Errorf("create attendance record: %w", err)
	}
	return nil
}

// FindByID returns a record with its attendees.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	const query = `SELECT id, class_id, session_date, created_at, updated_at FROM attendance_records WHERE id = $1`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}

	attendees := []models.Attendee{}
	if err := r.db.SelectContext(ctx, &attendees, attendeeSelect+` WHERE a.attendance_id = $1 ORDER BY a.check_in_time NULLS LAST`, id); err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	record.Attendees = attendees
	return &record, nil
}

// FindDetail returns a record with attendees and the class title.
func (r *AttendanceRepository) FindDetail(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	record, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := models.AttendanceDetail{AttendanceRecord: *record}
	const query = `SELECT title, description FROM classes WHERE id = $1`
	row := struct {
		Title       string `db:"title"`
		Description string `db:"description"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, record.ClassID); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("find attendance class: %w", err)
	}
	detail.ClassTitle = row.Title
	detail.ClassDescription = row.Description
	return &detail, nil
}

// ListByClass returns every record of a class with attendees, most recent session first.
func (r *AttendanceRepository) ListByClass(ctx context.Context, classID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, class_id, session_date, created_at, updated_at FROM attendance_records
        WHERE class_id = $1 ORDER BY session_date DESC`
	records := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &records, query, classID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	var attendees []models.Attendee
	listAttendees := attendeeSelect + `
        JOIN attendance_records ar ON ar.id = a.attendance_id
        WHERE ar.class_id = $1`
	if err := r.db.SelectContext(ctx, &attendees, listAttendees, classID); err != nil {
		return nil, fmt.Errorf("list class attendees: %w", err)
	}

	byRecord := make(map[string][]models.Attendee, len(records))
	for _, a := range attendees {
		byRecord[a.AttendanceID] = append(byRecord[a.AttendanceID], a)
	}
	for i := range records {
		records[i].Attendees = byRecord[records[i].ID]
		if records[i].Attendees == nil {
			records[i].Attendees = []models.Attendee{}
		}
	}
	return records, nil
}

// AddAttendee appends an entry. An existing entry for the student is left untouched and
// models.ErrAlreadyCheckedIn is returned.
func (r *AttendanceRepository) AddAttendee(ctx context.Context, attendee *models.Attendee) error {
	const query = `INSERT INTO attendance_attendees (attendance_id, student_id, check_in_time, status)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (attendance_id, student_id) DO NOTHING
        RETURNING student_id`
	var inserted string
	err := r.db.GetContext(ctx, &inserted, query, attendee.AttendanceID, attendee.StudentID, attendee.CheckInTime, attendee.Status)
	if err == sql.ErrNoRows {
		return models.ErrAlreadyCheckedIn
	}
	if err != nil {
		return fmt.Errorf("add attendee: %w", err)
	}
	return r.touch(ctx, attendee.AttendanceID)
}

// FindAttendee returns the student's entry in a record.
func (r *AttendanceRepository) FindAttendee(ctx context.Context, attendanceID, studentID string) (*models.Attendee, error) {
	var attendee models.Attendee
	if err := r.db.GetContext(ctx, &attendee, attendeeSelect+` WHERE a.attendance_id = $1 AND a.student_id = $2`, attendanceID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendee: %w", err)
	}
	return &attendee, nil
}

// UpdateAttendee overwrites status and check-in time of an existing entry.
func (r *AttendanceRepository) UpdateAttendee(ctx context.Context, attendee *models.Attendee) error {
	const query = `UPDATE attendance_attendees SET status = $3, check_in_time = $4
        WHERE attendance_id = $1 AND student_id = $2`
	res, err := r.db.ExecContext(ctx, query, attendee.AttendanceID, attendee.StudentID, attendee.Status, attendee.CheckInTime)
	if err != nil {
		return fmt.Errorf("update attendee: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	return r.touch(ctx, attendee.AttendanceID)
}

func (r *AttendanceRepository) touch(ctx context.Context, attendanceID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE attendance_records SET updated_at = $2 WHERE id = $1`, attendanceID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch attendance record: %w", err)
	}
	return nil
}
