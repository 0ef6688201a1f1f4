package models

import (
	"errors"
	"time"
)

// Errors reported by the attendance store.
var (
	ErrAttendanceSessionExists = errors.New("attendance record already exists for session")
	ErrAlreadyCheckedIn        = errors.New("student already checked in")
)

// AttendanceStatus is the recorded state of an attendee for one session.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	default:
		return false
	}
}

// Attended reports whether the status counts towards attendance.
func (s AttendanceStatus) Attended() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// AttendanceRecord tracks one session of a class.
type AttendanceRecord struct {
	ID          string     `db:"id" json:"id"`
	ClassID     string     `db:"class_id" json:"classId"`
	SessionDate time.Time  `db:"session_date" json:"sessionDate"`
	Attendees   []Attendee `db:"-" json:"attendees"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// AttendanceDetail adds the class title for single-record views.
type AttendanceDetail struct {
	AttendanceRecord
	ClassTitle       string `db:"class_title" json:"classTitle"`
	ClassDescription string `db:"class_description" json:"classDescription"`
}

// Attendee is one student's entry in a session.
type Attendee struct {
	AttendanceID string           `db:"attendance_id" json:"-"`
	StudentID    string           `db:"student_id" json:"studentId"`
	CheckInTime  *time.Time       `db:"check_in_time" json:"checkInTime,omitempty"`
	Status       AttendanceStatus `db:"status" json:"status"`
	FirstName    string           `db:"first_name" json:"firstName,omitempty"`
	LastName     string           `db:"last_name" json:"lastName,omitempty"`
	Email        string           `db:"email" json:"email,omitempty"`
}

// SessionStats summarises one attendance record.
type SessionStats struct {
	AttendanceRecordID string    `json:"attendanceRecordId"`
	SessionDate        time.Time `json:"sessionDate"`
	PresentCount       int       `json:"presentCount"`
	AbsentCount        int       `json:"absentCount"`
	AttendanceRate     float64   `json:"attendanceRate"`
}

// StudentStats summarises one registered student across all sessions.
type StudentStats struct {
	StudentID       string  `json:"studentId"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	SessionsPresent int     `json:"sessionsPresent"`
	SessionsAbsent  int     `json:"sessionsAbsent"`
	SessionsLate    int     `json:"sessionsLate"`
	AttendanceRate  float64 `json:"attendanceRate"`
}

// AttendanceStats aggregates attendance for a class.
type AttendanceStats struct {
	ClassID                 string         `json:"classId"`
	ClassName               string         `json:"className"`
	TotalSessions           int            `json:"totalSessions"`
	TotalRegisteredStudents int            `json:"totalRegisteredStudents"`
	Sessions                []SessionStats `json:"sessions"`
	StudentStats            []StudentStats `json:"studentStats"`
}
